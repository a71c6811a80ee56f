package bench_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bd3d/internal/bench"
	"bd3d/internal/services"
	"bd3d/internal/testsupport"
	"bd3d/internal/toolexec"
)

func writeLastArgHandler(size int64) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		out := call.Args[len(call.Args)-1]
		return "", os.WriteFile(out, make([]byte, size), 0o644)
	}
}

func x264Handler(size int64) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		out := testsupport.ArgAfter(call.Args, "--output")
		return "encoded 119 frames", os.WriteFile(out, make([]byte, size), 0o644)
	}
}

func TestRunPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := testsupport.NewFakeRunner().
		Handle("ffmpeg", writeLastArgHandler(16)).
		Handle("x264", x264Handler(4096))
	parent := t.TempDir()

	result, err := bench.New(cfg, runner).Run(context.Background(), parent)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Passed || result.BaseBytes != 4096 || result.DepBytes != 4096 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(result.Dir); !os.IsNotExist(err) {
		t.Fatal("benchmark directory should be removed")
	}

	ffmpeg := runner.CallsTo("ffmpeg")
	if len(ffmpeg) != 2 || !strings.HasPrefix(testsupport.ArgAfter(ffmpeg[0].Args, "-i"), "testsrc=duration=5:size=1920x1080:rate=24000/1001") ||
		!strings.HasPrefix(testsupport.ArgAfter(ffmpeg[1].Args, "-i"), "smptebars=") {
		t.Fatalf("unexpected pattern calls: %+v", ffmpeg)
	}
	x264 := runner.CallsTo("x264")
	if len(x264) != 2 {
		t.Fatalf("expected two x264 passes, got %d", len(x264))
	}
	if testsupport.ArgAfter(x264[0].Args, "--pass") != "1" || strings.Contains(x264[0].Joined(), "--stereo-mode") {
		t.Fatalf("unexpected pass 1 args: %s", x264[0].Joined())
	}
	if testsupport.ArgAfter(x264[1].Args, "--pass") != "2" || testsupport.ArgAfter(x264[1].Args, "--stereo-mode") != "right" {
		t.Fatalf("unexpected pass 2 args: %s", x264[1].Joined())
	}
	if filepath.Base(x264[1].Args[len(x264[1].Args)-1]) != "dummy_right.yuv" {
		t.Fatalf("pass 2 should read the right view: %s", x264[1].Joined())
	}
}

func TestRunSmallOutputFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := testsupport.NewFakeRunner().
		Handle("ffmpeg", writeLastArgHandler(16)).
		Handle("x264", x264Handler(1000))

	result, err := bench.New(cfg, runner).Run(context.Background(), t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if result.Passed {
		t.Fatal("1000-byte outputs must not pass")
	}
}

func TestRunStereoModeHint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := testsupport.NewFakeRunner().
		Handle("ffmpeg", writeLastArgHandler(16)).
		Handle("x264", func(_ context.Context, call testsupport.Call) (string, error) {
			if testsupport.ArgAfter(call.Args, "--pass") == "2" {
				return "", &toolexec.ExitError{Binary: "x264", Code: 1, Tail: []string{"x264: unknown option -- stereo-mode"}}
			}
			return "", os.WriteFile(testsupport.ArgAfter(call.Args, "--output"), make([]byte, 4096), 0o644)
		})

	result, err := bench.New(cfg, runner).Run(context.Background(), t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if result.Hint != bench.StereoHint {
		t.Fatalf("expected stereo hint, got %q", result.Hint)
	}
	if _, statErr := os.Stat(result.Dir); !os.IsNotExist(statErr) {
		t.Fatal("benchmark directory should be removed after failure")
	}
}

func TestRunGenerateFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := testsupport.NewFakeRunner().Handle("ffmpeg", func(context.Context, testsupport.Call) (string, error) {
		return "", errors.New("lavfi missing")
	})
	result, err := bench.New(cfg, runner).Run(context.Background(), t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) || result.Hint != "" {
		t.Fatalf("unexpected outcome: %v %+v", err, result)
	}
	if len(runner.CallsTo("x264")) != 0 {
		t.Fatal("x264 must not run without test views")
	}
}
