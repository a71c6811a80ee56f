package testsupport

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// Call records one invocation of an external tool.
type Call struct {
	Binary string
	Args   []string
}

// Tool returns the base name of the invoked binary.
func (c Call) Tool() string {
	return filepath.Base(c.Binary)
}

// Joined renders the arguments as one space-separated string.
func (c Call) Joined() string {
	return strings.Join(c.Args, " ")
}

// Handler simulates a tool. It returns the text the tool prints and an
// error to report as the exit status.
type Handler func(ctx context.Context, call Call) (string, error)

// FakeRunner is a toolexec.Runner that dispatches to per-tool handlers and
// records every call. Tools without a handler succeed silently.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []Call
	handlers map[string]Handler
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]Handler)}
}

// Handle registers a handler for the tool with the given base name.
func (f *FakeRunner) Handle(tool string, handler Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[tool] = handler
	return f
}

// Run implements toolexec.Runner.
func (f *FakeRunner) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	out, err := f.dispatch(ctx, binary, args)
	if onLine != nil {
		for _, line := range strings.Split(out, "\n") {
			if line != "" {
				onLine(line)
			}
		}
	}
	return err
}

// Output implements toolexec.Runner.
func (f *FakeRunner) Output(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	out, err := f.dispatch(ctx, binary, args)
	return []byte(out), nil, err
}

func (f *FakeRunner) dispatch(ctx context.Context, binary string, args []string) (string, error) {
	call := Call{Binary: binary, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	handler := f.handlers[call.Tool()]
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if handler == nil {
		return "", nil
	}
	return handler(ctx, call)
}

// Calls returns every recorded call.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls to the given tool.
func (f *FakeRunner) CallsTo(tool string) []Call {
	var out []Call
	for _, call := range f.Calls() {
		if call.Tool() == tool {
			out = append(out, call)
		}
	}
	return out
}

// ArgAfter returns the argument following flag, or "" when absent.
func ArgAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
