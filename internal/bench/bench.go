// Package bench checks that the installed x264 can produce a two-view
// stereo stream. It encodes short synthetic left and right views and
// verifies both outputs, then removes every file it created.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"bd3d/internal/config"
	"bd3d/internal/fileutil"
	"bd3d/internal/logging"
	"bd3d/internal/services"
	"bd3d/internal/toolexec"
	"bd3d/internal/workdir"
)

const (
	stageName = "bench"

	testSeconds    = 5
	testRate       = "24000/1001"
	testResolution = "1920x1080"
	minOutputBytes = 1000

	leftName  = "dummy_left.yuv"
	rightName = "dummy_right.yuv"
	baseName  = "test_output_base.264"
	depName   = "test_output_dep.264"
	statsName = "x264_stats.log"
)

// StereoHint explains the most common failure.
const StereoHint = "this x264 build does not support --stereo-mode; install a feature-complete build (for example a kMod build)"

// Result summarizes a benchmark run.
type Result struct {
	Dir       string
	BaseBytes int64
	DepBytes  int64
	Elapsed   time.Duration
	Passed    bool
	Hint      string
	Cleanup   workdir.CleanupResult
}

// Runner executes the benchmark.
type Runner struct {
	ffmpeg   string
	x264     string
	runner   toolexec.Runner
	attempts int
	logger   *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger overrides the benchmark logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "bench")
		}
	}
}

// New builds a benchmark Runner.
func New(cfg *config.Config, runner toolexec.Runner, opts ...Option) *Runner {
	if runner == nil {
		runner = toolexec.Exec{}
	}
	r := &Runner{
		ffmpeg:   cfg.Tools.FFmpeg,
		x264:     cfg.Tools.X264,
		runner:   runner,
		attempts: cfg.Muxing.CleanupAttempts,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PatternArgs builds the ffmpeg command rendering a lavfi test pattern to
// raw yuv420p.
func PatternArgs(pattern, output string) []string {
	source := fmt.Sprintf("%s=duration=%d:size=%s:rate=%s", pattern, testSeconds, testResolution, testRate)
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "lavfi", "-i", source, "-pix_fmt", "yuv420p", output}
}

// X264Args builds one pass of the two-view encode. Pass 2 encodes the
// dependent view with --stereo-mode right.
func X264Args(pass int, stats, output, input string) []string {
	args := []string{"--input-res", testResolution, "--fps", testRate, "--pass", fmt.Sprint(pass), "--stats", stats}
	if pass == 2 {
		args = append(args, "--stereo-mode", "right")
	}
	args = append(args,
		"--bluray-compat", "--level", "4.1", "--preset", "slow",
		"--crf", "22", "--vbv-maxrate", "40000", "--vbv-bufsize", "30000",
		"--open-gop", "--slices", "4", "--nal-hrd", "vbr",
		"--sar", "1:1", "--output", output,
	)
	return append(args, input)
}

// Run performs the benchmark inside a fresh directory under parent. The
// directory is removed afterwards. A failed encode is reported through the
// error; Result.Hint is set when the failure looks like missing stereo
// support.
func (r *Runner) Run(ctx context.Context, parent string) (result *Result, err error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, r.logger)

	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "prepare", "", err)
	}
	dir, err := os.MkdirTemp(parent, "bd3d-bench-")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "prepare", "", err)
	}
	result = &Result{Dir: dir}
	defer func() {
		result.Cleanup = workdir.RemoveDir(context.WithoutCancel(ctx), dir, r.attempts, 0, logger)
	}()
	path := func(name string) string { return filepath.Join(dir, name) }

	logger.Info("generating test views", logging.String("dir", dir))
	for _, view := range []struct{ pattern, name string }{{"testsrc", leftName}, {"smptebars", rightName}} {
		if err := r.runner.Run(ctx, r.ffmpeg, PatternArgs(view.pattern, path(view.name)), nil); err != nil {
			return result, services.Wrap(services.ErrExternalTool, stageName, "generate", "could not create "+view.name, err)
		}
	}

	started := time.Now()
	passes := []struct {
		pass          int
		output, input string
		label         string
	}{
		{1, baseName, leftName, "base view"},
		{2, depName, rightName, "dependent view"},
	}
	for _, p := range passes {
		logger.Info("encoding", logging.String("view", p.label), logging.Int("pass", p.pass))
		var lines []string
		runErr := r.runner.Run(ctx, r.x264, X264Args(p.pass, path(statsName), path(p.output), path(p.input)), func(line string) {
			lines = append(lines, line)
		})
		if runErr != nil {
			if needsStereoHint(runErr, lines) {
				result.Hint = StereoHint
			}
			hint := result.Hint
			if hint == "" {
				hint = "check the x264 output in the log"
			}
			logging.ErrorWithContext(logger, "x264 encode failed", "bench_failed",
				logging.String("view", p.label),
				logging.Error(runErr),
				logging.String(logging.FieldErrorHint, hint),
			)
			return result, services.Wrap(services.ErrExternalTool, stageName, "x264", p.label+" encode failed", runErr)
		}
	}
	result.Elapsed = time.Since(started)

	result.BaseBytes = fileutil.Size(path(baseName))
	result.DepBytes = fileutil.Size(path(depName))
	result.Passed = result.BaseBytes > minOutputBytes && result.DepBytes > minOutputBytes
	logger.Info("benchmark finished",
		logging.Bool("passed", result.Passed),
		logging.String("base", humanize.Bytes(uint64(result.BaseBytes))),
		logging.String("dependent", humanize.Bytes(uint64(result.DepBytes))),
		logging.Duration("elapsed", result.Elapsed),
	)
	if !result.Passed {
		return result, services.Wrap(services.ErrValidation, stageName, "verify",
			fmt.Sprintf("outputs too small (base %d bytes, dependent %d bytes)", result.BaseBytes, result.DepBytes), nil)
	}
	return result, nil
}

func needsStereoHint(err error, lines []string) bool {
	text := strings.Join(lines, "\n")
	var exitErr *toolexec.ExitError
	if errors.As(err, &exitErr) {
		text += "\n" + strings.Join(exitErr.Tail, "\n")
	}
	text += "\n" + err.Error()
	return strings.Contains(text, "stereo-mode")
}
