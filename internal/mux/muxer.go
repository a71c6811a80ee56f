package mux

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"bd3d/internal/analyzer"
	"bd3d/internal/config"
	"bd3d/internal/fileutil"
	"bd3d/internal/journal"
	"bd3d/internal/logging"
	"bd3d/internal/selection"
	"bd3d/internal/services"
	"bd3d/internal/textutil"
	"bd3d/internal/toolexec"
	"bd3d/internal/workdir"
)

const (
	stageName          = "mux"
	defaultRetryDelay  = time.Second
	streamGlobInOutput = "BDMV/STREAM/*.m2ts"
)

// ChunkPlan is the part of the run journal the muxer checks chunks against.
type ChunkPlan interface {
	Chunks(ctx context.Context) ([]journal.Chunk, error)
}

// Muxer drives stream extraction and tsMuxeR.
type Muxer struct {
	ffmpeg     string
	tsmuxer    string
	mkvextract string
	runner     toolexec.Runner
	muxing     config.Muxing
	useMKV     bool
	retryDelay time.Duration
	journal    ChunkPlan
	logger     *slog.Logger
}

// Option customizes a Muxer.
type Option func(*Muxer)

// WithLogger overrides the muxer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Muxer) {
		if logger != nil {
			m.logger = logging.NewComponentLogger(logger, "mux")
		}
	}
}

// WithMKVExtract reports whether mkvextract is installed. It is only used
// when the configuration prefers it and the source is Matroska.
func WithMKVExtract(available bool) Option {
	return func(m *Muxer) { m.useMKV = available }
}

// WithRetryDelay sets the pause between cleanup attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(m *Muxer) { m.retryDelay = delay }
}

// WithJournal makes the muxer refuse dependent-view chunks that differ from
// the encoded chunks recorded in j.
func WithJournal(j ChunkPlan) Option {
	return func(m *Muxer) { m.journal = j }
}

// New builds a Muxer from configuration.
func New(cfg *config.Config, runner toolexec.Runner, opts ...Option) *Muxer {
	if runner == nil {
		runner = toolexec.Exec{}
	}
	m := &Muxer{
		ffmpeg:     cfg.Tools.FFmpeg,
		tsmuxer:    cfg.Tools.TsMuxer,
		mkvextract: cfg.Tools.MKVExtract,
		runner:     runner,
		muxing:     cfg.Muxing,
		retryDelay: defaultRetryDelay,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Request describes one mux job. DependentChunks are the encoder's
// dependent-view files in plan order; when empty, the chunk files found in
// the work directory are used.
type Request struct {
	Source          string
	Props           *analyzer.Properties
	Audio           []analyzer.Track
	Subtitles       []analyzer.Track
	Layout          workdir.Layout
	Output          string
	DependentChunks []string
}

// Result describes the produced disc.
type Result struct {
	Output     string
	Type       selection.OutputType
	Label      string
	Meta       string
	Audio      int
	Subtitles  int
	Skipped    []analyzer.Track
	StreamFile string
	Size       int64
	Cleanup    workdir.CleanupResult
}

// Mux extracts the selected tracks, writes the meta file, and runs tsMuxeR.
// Temporary stream files are always removed afterwards; the encoded video
// streams are removed only once the disc was written, so a failed mux can be
// retried without encoding again.
func (m *Muxer) Mux(ctx context.Context, req Request) (result *Result, err error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, m.logger)
	layout := req.Layout
	if req.Props == nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "mux", "source properties are required", nil)
	}

	deps, err := m.dependentChunks(ctx, req)
	if err != nil {
		return nil, err
	}

	result = &Result{
		Output: req.Output,
		Type:   selection.OutputTypeFor(req.Output),
		Label:  m.label(req.Output),
		Meta:   layout.Meta(),
	}
	temporary := []string{layout.Meta(), layout.CleanRemux()}
	defer func() {
		if m.muxing.KeepIntermediates {
			logger.Info("keeping intermediate files", logging.String("work_dir", layout.Dir))
			return
		}
		paths := temporary
		if err == nil {
			encoded, _ := layout.Intermediates()
			paths = append(paths, encoded...)
		}
		result.Cleanup = workdir.RemoveFiles(context.WithoutCancel(ctx), paths, m.muxing.CleanupAttempts, m.retryDelay, logger)
	}()

	audio, subs, skipped := planExtractions(layout, req.Audio, req.Subtitles)
	result.Skipped = skipped
	for _, track := range skipped {
		logging.WarnWithContext(logger, "track codec not supported by tsMuxeR", "track_skipped",
			logging.Int("stream", track.Index),
			logging.String("codec", track.Codec),
			logging.String(logging.FieldImpact, "track left off the disc"),
		)
	}
	for _, item := range append(append([]extraction(nil), audio...), subs...) {
		temporary = append(temporary, item.path)
	}

	if len(audio)+len(subs) == 0 {
		logger.Info("no audio or subtitle tracks selected; skipping extraction")
	} else if err := m.extract(ctx, logger, req.Source, layout, audio, subs); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "extract tracks",
			"could not extract the selected audio/subtitle tracks", err)
	}
	result.Audio, result.Subtitles = len(audio), len(subs)

	audioLines, subLines := m.metaTracks(audio, subs, req.Props.FPSRational)
	meta := Meta{
		Label:           result.Label,
		Chapters:        req.Props.Chapters,
		LeftEye:         layout.LeftEye(),
		DependentChunks: deps,
		FPS:             req.Props.MuxerFPS(),
		Audio:           audioLines,
		Subtitles:       subLines,
	}
	if err := meta.WriteFile(layout.Meta()); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "meta", "", err)
	}
	logger.Debug("meta file written", logging.String("contents", meta.Render()))

	logger.Info("running tsMuxeR",
		logging.String("output", req.Output),
		logging.String("type", string(result.Type)),
		logging.String("label", result.Label),
	)
	sampler := logging.NewProgressSampler(10)
	if err := m.runner.Run(ctx, m.tsmuxer, []string{layout.Meta(), req.Output}, func(line string) {
		line = strings.TrimSpace(line)
		if percent, ok := parseMuxProgress(line); ok {
			if sampler.ShouldLog(percent, "mux") {
				logger.Info("mux progress", logging.Float64("percent", percent))
			}
			return
		}
		logger.Debug("tsmuxer", logging.String("line", line))
	}); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "tsmuxer",
			"muxing failed; check the tsMuxeR output in the run log and write permissions", err)
	}

	stream, size, err := VerifyOutput(req.Output)
	if err != nil {
		return result, err
	}
	result.StreamFile, result.Size = stream, size
	logger.Info("disc written",
		logging.String("output", req.Output),
		logging.String("stream", stream),
		logging.String("size", humanize.IBytes(uint64(size))),
	)
	return result, nil
}

// dependentChunks picks the dependent-view chunks to mux and checks them
// against the journaled plan when a journal is attached.
func (m *Muxer) dependentChunks(ctx context.Context, req Request) ([]string, error) {
	layout := req.Layout
	deps := req.DependentChunks
	if len(deps) == 0 {
		found, err := layout.DependentChunks()
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stageName, "locate streams", "", err)
		}
		deps = found
	}
	if !fileutil.NonEmpty(layout.LeftEye()) || len(deps) == 0 {
		return nil, services.Wrap(services.ErrNotFound, stageName, "locate streams",
			fmt.Sprintf("encoded .264 stream files not found in %s", layout.Dir), nil)
	}
	for _, dep := range deps {
		if !fileutil.NonEmpty(dep) {
			return nil, services.Wrap(services.ErrNotFound, stageName, "locate streams",
				fmt.Sprintf("dependent chunk %s is missing or empty", filepath.Base(dep)), nil)
		}
	}
	if m.journal == nil {
		return deps, nil
	}

	records, err := m.journal.Chunks(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "chunk plan", "read run journal", err)
	}
	if len(records) == 0 {
		return deps, nil
	}
	planned := make([]string, 0, len(records))
	for i, rec := range records {
		if rec.Index != i {
			return nil, services.Wrap(services.ErrValidation, stageName, "chunk plan",
				fmt.Sprintf("run journal has no record of chunk %d; encode again before muxing", i), nil)
		}
		if rec.Status != journal.ChunkEncoded {
			return nil, services.Wrap(services.ErrValidation, stageName, "chunk plan",
				fmt.Sprintf("chunk %d is %s in the run journal; encode again before muxing", rec.Index, rec.Status), nil)
		}
		planned = append(planned, layout.ChunkDep(rec.Index))
	}
	if !slices.Equal(deps, planned) {
		return nil, services.Wrap(services.ErrValidation, stageName, "chunk plan",
			fmt.Sprintf("found %d dependent chunks but the encode plan has %d; encode again before muxing", len(deps), len(planned)), nil)
	}
	return deps, nil
}

func (m *Muxer) extract(ctx context.Context, logger *slog.Logger, source string, layout workdir.Layout, audio, subs []extraction) error {
	if m.useMKV && m.muxing.PreferMKVExtract && selection.IsMatroska(source) {
		return m.extractWithMKVExtract(ctx, logger, source, audio, subs)
	}
	return m.extractWithFFmpeg(ctx, logger, source, layout, audio, subs)
}

func (m *Muxer) label(output string) string {
	if label := strings.TrimSpace(m.muxing.Label); label != "" {
		return textutil.SanitizeLabel(label)
	}
	return textutil.DiscLabel(output)
}

// VerifyOutput checks that tsMuxeR left a non-empty artifact: the ISO image
// itself, or at least one non-empty BDMV/STREAM/*.m2ts file. It returns the
// checked file and its size.
func VerifyOutput(output string) (string, int64, error) {
	if selection.IsISOPath(output) {
		size := fileutil.Size(output)
		if size == 0 {
			return "", 0, services.Wrap(services.ErrValidation, stageName, "verify", fmt.Sprintf("ISO %s is missing or empty", output), nil)
		}
		return output, size, nil
	}
	matches, err := filepath.Glob(filepath.Join(output, streamGlobInOutput))
	if err != nil {
		return "", 0, services.Wrap(services.ErrValidation, stageName, "verify", "", err)
	}
	for _, match := range matches {
		if size := fileutil.Size(match); size > 0 {
			return match, size, nil
		}
	}
	if _, statErr := os.Stat(filepath.Join(output, "BDMV")); statErr != nil {
		return "", 0, services.Wrap(services.ErrValidation, stageName, "verify", fmt.Sprintf("no BDMV folder in %s", output), nil)
	}
	return "", 0, services.Wrap(services.ErrValidation, stageName, "verify", "BDMV/STREAM holds no non-empty .m2ts file", nil)
}
