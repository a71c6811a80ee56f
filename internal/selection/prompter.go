package selection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"bd3d/internal/services"
)

// ErrNoInput reports that no answer could be read.
var ErrNoInput = errors.New("no input available")

// Prompter asks questions on a line-oriented terminal.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	assumeYes   bool
	interactive bool
}

// Option customizes a Prompter.
type Option func(*Prompter)

// WithAssumeYes answers every yes/no question with yes.
func WithAssumeYes(assume bool) Option {
	return func(p *Prompter) { p.assumeYes = assume }
}

// WithInteractive overrides terminal detection.
func WithInteractive(interactive bool) Option {
	return func(p *Prompter) { p.interactive = interactive }
}

// New builds a Prompter reading from in and writing to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	if out == nil {
		out = io.Discard
	}
	p := &Prompter{
		in:          LineReader(in),
		out:         out,
		interactive: IsTerminal(in),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LineReader returns r as a *bufio.Reader, wrapping it only when needed so
// that buffered input is never split between readers.
func LineReader(r io.Reader) *bufio.Reader {
	if r == nil {
		r = strings.NewReader("")
	}
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// IsTerminal reports whether v is an *os.File attached to a terminal.
func IsTerminal(v any) bool {
	file, ok := v.(*os.File)
	if !ok || file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// In exposes the shared input reader.
func (p *Prompter) In() *bufio.Reader { return p.in }

// Out exposes the prompt writer.
func (p *Prompter) Out() io.Writer { return p.out }

// Interactive reports whether questions are actually asked.
func (p *Prompter) Interactive() bool { return p.interactive }

// AssumeYes reports whether confirmations are answered automatically.
func (p *Prompter) AssumeYes() bool { return p.assumeYes }

// ReadLine prints prompt and returns the trimmed answer. It returns
// ErrNoInput when the prompter is not interactive or input is exhausted.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	if !p.interactive {
		return "", ErrNoInput
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// AskYesNo asks a yes/no question. Empty input selects def. With assume-yes
// the answer is yes; without a terminal the answer is def.
func (p *Prompter) AskYesNo(title, message string, def bool) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	if !p.interactive {
		return def, nil
	}
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(p.out, "\n%s\n", title)
	}
	if message = strings.TrimSpace(message); message != "" {
		fmt.Fprintln(p.out, message)
	}
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		answer, err := p.ReadLine(hint + ": ")
		if errors.Is(err, ErrNoInput) {
			return def, nil
		}
		if err != nil {
			return false, err
		}
		if value, ok := ParseYesNo(answer, def); ok {
			return value, nil
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}

// ParseYesNo interprets an answer. ok is false for unrecognised input.
func ParseYesNo(answer string, def bool) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def, true
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// AskOutputType asks whether to write an ISO image or a BDMV folder.
// Without a terminal a BDMV folder is chosen.
func (p *Prompter) AskOutputType() (OutputType, error) {
	if !p.interactive {
		return OutputBDMV, nil
	}
	fmt.Fprintln(p.out, "\nHow would you like to save the final Blu-ray?")
	fmt.Fprintln(p.out, "  [i] a single .iso image")
	fmt.Fprintln(p.out, "  [b] a BDMV folder structure")
	fmt.Fprintln(p.out, "  [c] cancel")
	for {
		answer, err := p.ReadLine("Choice [b]: ")
		if errors.Is(err, ErrNoInput) {
			return "", services.Wrap(services.ErrCancelled, "select", "output type", "no output type chosen", nil)
		}
		if err != nil {
			return "", err
		}
		switch strings.ToLower(answer) {
		case "i", "iso":
			return OutputISO, nil
		case "", "b", "bdmv":
			return OutputBDMV, nil
		case "c", "cancel":
			return "", services.Wrap(services.ErrCancelled, "select", "output type", "output selection cancelled", nil)
		}
		fmt.Fprintln(p.out, "Please answer i, b, or c.")
	}
}

// AskPath asks for a path, offering def. An empty answer with no default is
// a cancellation.
func (p *Prompter) AskPath(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	answer, err := p.ReadLine(prompt)
	if err != nil && !errors.Is(err, ErrNoInput) {
		return "", err
	}
	if answer == "" {
		answer = def
	}
	if answer == "" {
		return "", services.Wrap(services.ErrCancelled, "select", strings.ToLower(label), "no path given", nil)
	}
	return ExpandHome(answer), nil
}
