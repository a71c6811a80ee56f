package selection

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"bd3d/internal/services"
)

func newTestPrompter(input string, opts ...Option) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	opts = append([]Option{WithInteractive(true)}, opts...)
	return New(strings.NewReader(input), &out, opts...), &out
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"explicit yes", "yes\n", false, true},
		{"short no", "n\n", true, false},
		{"empty takes default", "\n", true, true},
		{"retries on garbage", "maybe\nY\n", false, true},
		{"eof takes default", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.AskYesNo("Confirm", "Continue?", tt.def)
			if err != nil {
				t.Fatalf("AskYesNo: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAskYesNoRepromptsOnInvalid(t *testing.T) {
	p, out := newTestPrompter("perhaps\nno\n")
	if got, _ := p.AskYesNo("", "Continue?", true); got {
		t.Fatal("expected no")
	}
	if !strings.Contains(out.String(), "Please answer yes or no.") {
		t.Fatalf("missing re-prompt in %q", out.String())
	}
}

func TestAskYesNoNonInteractive(t *testing.T) {
	p := New(strings.NewReader("no\n"), nil, WithInteractive(false))
	got, err := p.AskYesNo("t", "m", true)
	if err != nil || !got {
		t.Fatalf("expected default true, got %v %v", got, err)
	}
	p = New(strings.NewReader("no\n"), nil, WithInteractive(true), WithAssumeYes(true))
	if got, _ := p.AskYesNo("t", "m", false); !got {
		t.Fatal("assume-yes must answer yes")
	}
}

func TestAskOutputType(t *testing.T) {
	p, _ := newTestPrompter("x\niso\n")
	kind, err := p.AskOutputType()
	if err != nil || kind != OutputISO {
		t.Fatalf("expected iso, got %q %v", kind, err)
	}

	p, _ = newTestPrompter("\n")
	if kind, _ := p.AskOutputType(); kind != OutputBDMV {
		t.Fatalf("expected bdmv default, got %q", kind)
	}

	p, _ = newTestPrompter("c\n")
	if _, err := p.AskOutputType(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestAskPath(t *testing.T) {
	p, _ := newTestPrompter("\n")
	got, err := p.AskPath("Work directory", "/tmp/work")
	if err != nil || got != "/tmp/work" {
		t.Fatalf("expected default, got %q %v", got, err)
	}

	p, _ = newTestPrompter("/data/out\n")
	if got, _ := p.AskPath("Output", "/tmp/out"); got != "/data/out" {
		t.Fatalf("expected typed path, got %q", got)
	}

	p, _ = newTestPrompter("")
	if _, err := p.AskPath("Source", ""); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSharedReaderKeepsBufferedLines(t *testing.T) {
	p, _ := newTestPrompter("first\nsecond\n")
	reader := LineReader(p.In())
	if reader != p.In() {
		t.Fatal("LineReader must reuse an existing bufio.Reader")
	}
	if line, _ := p.ReadLine("> "); line != "first" {
		t.Fatalf("unexpected first line %q", line)
	}
	if line, _ := p.ReadLine("> "); line != "second" {
		t.Fatalf("unexpected second line %q", line)
	}
}
