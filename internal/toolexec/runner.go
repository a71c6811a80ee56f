package toolexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Runner abstracts external command execution for testability.
type Runner interface {
	// Run executes binary with args, forwarding every output line (stdout and
	// stderr) to onLine when it is non-nil.
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
	// Output executes binary with args and returns stdout and stderr separately.
	Output(ctx context.Context, binary string, args []string) (stdout []byte, stderr []byte, err error)
}

// ExitError reports a non-zero exit from an external tool along with the
// trailing output lines it produced.
type ExitError struct {
	Binary string
	Code   int
	Tail   []string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Binary, e.Code)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

const tailLines = 8

// Exec runs commands with os/exec.
type Exec struct{}

// Run streams output line by line and returns an ExitError on failure.
func (Exec) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	tail := newTailBuffer(tailLines)
	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	var mu sync.Mutex

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		scanner.Split(scanLinesOrCarriage)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			tail.add(line)
			if onLine != nil {
				onLine(line)
			}
			mu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan %s output: %w", binary, scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return exitError(ctx, binary, err, tail.lines())
	}
	return nil
}

// Output captures stdout and stderr separately.
func (Exec) Output(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), stderr.Bytes(), exitError(ctx, binary, err, lastLines(stderr.String(), tailLines))
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

func exitError(ctx context.Context, binary string, err error, tail []string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", binary, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Binary: binary, Code: exitErr.ExitCode(), Tail: tail, Err: err}
	}
	return fmt.Errorf("run %s: %w", binary, err)
}

// scanLinesOrCarriage splits on \n and on bare \r so progress lines that
// rewrite themselves in place are delivered individually.
func scanLinesOrCarriage(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			line := bytes.TrimRight(data[:i], "\r")
			return i + 1, line, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type tailBuffer struct {
	max  int
	data []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.data = append(t.data, line)
	if len(t.data) > t.max {
		t.data = t.data[len(t.data)-t.max:]
	}
}

func (t *tailBuffer) lines() []string {
	return append([]string(nil), t.data...)
}

func lastLines(text string, n int) []string {
	tail := newTailBuffer(n)
	for _, line := range strings.Split(text, "\n") {
		tail.add(line)
	}
	return tail.lines()
}
