package bdmv

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"bd3d/internal/config"
	"bd3d/internal/logging"
	"bd3d/internal/media/ffprobe"
	"bd3d/internal/selection"
	"bd3d/internal/services"
	"bd3d/internal/toolexec"
)

const stageName = "validate"

// Expectations are the source properties the disc must match.
type Expectations struct {
	FPS         float64
	FPSRational string
	TotalFrames int
}

// Validator runs the disc checks.
type Validator struct {
	prober *ffprobe.Prober
	limits config.Validation
	logger *slog.Logger
}

// Option customizes a Validator.
type Option func(*Validator)

// WithLogger overrides the validator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logging.NewComponentLogger(logger, "bdmv")
		}
	}
}

// New builds a Validator using the configured ffprobe.
func New(cfg *config.Config, runner toolexec.Runner, opts ...Option) *Validator {
	v := &Validator{
		prober: ffprobe.New(cfg.Tools.FFprobe, runner),
		limits: cfg.Validation,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks output, which is either a disc folder or an ISO image.
// ISO images are only checked for existence and size. The returned error is
// non-nil only when output cannot be inspected at all; failed checks are
// reported through the Report.
func (v *Validator) Validate(ctx context.Context, output string, expect Expectations) (*Report, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, v.logger)

	info, err := os.Stat(output)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, stageName, "stat", fmt.Sprintf("output %s does not exist", output), err)
	}
	report := &Report{Output: output, ISO: selection.IsISOPath(output) && !info.IsDir()}
	if report.ISO {
		if info.Size() > 0 {
			report.add(pass("ISO image", humanize.IBytes(uint64(info.Size()))))
		} else {
			report.add(fail("ISO image", "file is empty"))
		}
		v.log(logger, report)
		return report, nil
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, stageName, "stat", fmt.Sprintf("%s is neither a folder nor an .iso file", output), nil)
	}

	report.add(CheckStructure(output))
	stream := resolve(output, MainStream)

	if result, err := v.prober.Streams(ctx, stream); err != nil {
		report.add(fail("video streams", err.Error()))
	} else {
		report.add(CheckStreams(result, expect.FPSRational)...)
	}

	if timestamps, err := v.prober.FrameTimestamps(ctx, stream); err != nil {
		report.add(fail("timestamp continuity", err.Error()))
	} else {
		report.add(CheckTiming(timestamps, expect.FPS, v.limits.TimingTolerance))
	}

	report.add(CheckPlaylist(resolve(output, MainPlaylist)))

	if count, err := v.prober.CountFrames(ctx, stream); err != nil {
		report.add(fail("frame count", err.Error()))
	} else {
		report.add(CheckFrameCount(count, expect.TotalFrames, v.limits.FrameTolerance))
	}

	if scan, err := ScanM2TS(stream, int64(v.limits.NALScanMiB)<<20); err != nil {
		report.add(fail("MVC units", err.Error()))
	} else {
		report.add(CheckMVC(scan))
	}

	if err := ctx.Err(); err != nil {
		return report, services.Wrap(services.ErrCancelled, stageName, "validate", "", err)
	}
	v.log(logger, report)
	return report, nil
}

func (v *Validator) log(logger *slog.Logger, report *Report) {
	for _, check := range report.Checks {
		attrs := []logging.Attr{logging.String("check", check.Name), logging.String("detail", check.Detail)}
		switch check.Status {
		case StatusFail:
			logging.WarnWithContext(logger, "validation check failed", "validation_failed", attrs...)
		case StatusWarn:
			logger.Warn("validation check warning", logging.Args(attrs...)...)
		default:
			logger.Debug("validation check passed", logging.Args(attrs...)...)
		}
	}
	logger.Info("validation finished",
		logging.String("output", report.Output),
		logging.Bool("passed", report.Passed()),
		logging.Int("failed", report.Count(StatusFail)),
		logging.Int("warnings", report.Count(StatusWarn)),
	)
}
