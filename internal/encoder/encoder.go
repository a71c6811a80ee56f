package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"bd3d/internal/analyzer"
	"bd3d/internal/config"
	"bd3d/internal/fileutil"
	"bd3d/internal/journal"
	"bd3d/internal/logging"
	"bd3d/internal/services"
	"bd3d/internal/toolexec"
	"bd3d/internal/workdir"
)

const stageName = "encode"

// ChunkJournal is the subset of the run journal the encoder uses.
type ChunkJournal interface {
	Chunk(ctx context.Context, index int) (*journal.Chunk, error)
	RecordChunk(ctx context.Context, chunk journal.Chunk) error
	DeleteChunksFrom(ctx context.Context, first int) (int64, error)
}

// Encoder runs the chunked extract and encode loop.
type Encoder struct {
	ffmpeg       string
	frim         string
	runner       toolexec.Runner
	enc          config.Encoding
	nalScanBytes int64
	frameBytes   int64
	journal      ChunkJournal
	progress     ProgressFunc
	logger       *slog.Logger
	sampler      *logging.ProgressSampler
}

// Option customizes an Encoder.
type Option func(*Encoder)

// WithLogger overrides the encoder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logging.NewComponentLogger(logger, "encoder")
		}
	}
}

// WithJournal records chunk state in j.
func WithJournal(j ChunkJournal) Option {
	return func(e *Encoder) { e.journal = j }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Encoder) { e.progress = fn }
}

// New builds an Encoder from configuration.
func New(cfg *config.Config, runner toolexec.Runner, opts ...Option) *Encoder {
	if runner == nil {
		runner = toolexec.Exec{}
	}
	e := &Encoder{
		ffmpeg:       cfg.Tools.FFmpeg,
		frim:         cfg.Tools.FRIMEncode,
		runner:       runner,
		enc:          cfg.Encoding,
		nalScanBytes: int64(cfg.Validation.NALScanMiB) << 20,
		frameBytes:   analyzer.EyeFrameBytes,
		logger:       logging.NewNop(),
		sampler:      logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ChunkFailure pairs a chunk with the reason it failed.
type ChunkFailure struct {
	Chunk Chunk
	Err   error
}

// Result describes a finished encode.
type Result struct {
	LeftEye         string
	DependentChunks []string
	Chunks          []Chunk
	Encoded         int
	Resumed         int
	BaseBytes       int64
	DepBytes        int64
	Sanity          SanityReport
}

// Encode runs every chunk of the plan for props and assembles the streams in
// layout. A non-nil Result may accompany a sanity-check error.
func (e *Encoder) Encode(ctx context.Context, source string, props *analyzer.Properties, layout workdir.Layout) (*Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, e.logger)

	plan := PlanChunks(props.TotalFrames, props.FPS, e.enc.ChunkSeconds, props.GOP)
	if len(plan) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "plan", "source has no frames to encode", nil)
	}
	if props.FPS <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "plan", "source frame rate is unknown", nil)
	}
	logger.Info("encode plan",
		logging.Int("chunks", len(plan)),
		logging.Int("frames", props.TotalFrames),
		logging.Int("gop", props.GOP),
		logging.Int("frames_per_chunk", plan[0].FrameCount),
	)
	if err := e.pruneBeyondPlan(ctx, logger, layout, len(plan)); err != nil {
		return nil, err
	}
	e.sampler.Reset()

	result := &Result{LeftEye: layout.LeftEye(), Chunks: plan}
	var failures []ChunkFailure
	eyeChecked := false
	framesDone := 0

	for _, chunk := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunkCtx := services.WithChunk(ctx, chunk.Index)
		chunkLogger := logging.WithContext(chunkCtx, e.logger)

		if e.resumable(chunkCtx, chunkLogger, layout, chunk) {
			result.Resumed++
			framesDone += chunk.FrameCount
			chunkLogger.Info("chunk already encoded, skipping")
			e.report(Progress{Phase: PhaseResume, Chunk: chunk.Index, Chunks: len(plan), FramesDone: framesDone, TotalFrames: props.TotalFrames})
			continue
		}

		e.record(chunkCtx, chunkLogger, chunk, journal.ChunkPending, "")
		eye, err := e.encodeChunk(chunkCtx, chunkLogger, source, props, layout, chunk, !eyeChecked, len(plan))
		if eye != nil {
			eyeChecked = true
			result.Sanity.add(*eye)
			if eye.Status == CheckFail {
				discard(layout, chunk)
				e.record(chunkCtx, chunkLogger, chunk, journal.ChunkFailed, eye.Detail)
				return result, services.Wrap(services.ErrValidation, stageName, "eye difference", eye.Detail, nil)
			}
		}
		if err != nil {
			discard(layout, chunk)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			failures = append(failures, ChunkFailure{Chunk: chunk, Err: err})
			e.record(chunkCtx, chunkLogger, chunk, journal.ChunkFailed, err.Error())
			logging.ErrorWithContext(chunkLogger, "chunk failed", "chunk_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun convert to retry; finished chunks are reused"),
			)
			e.report(Progress{Phase: PhaseFailed, Chunk: chunk.Index, Chunks: len(plan), FramesDone: framesDone, TotalFrames: props.TotalFrames})
			if len(failures) > e.enc.MaxFailedChunks {
				break
			}
			continue
		}

		result.Encoded++
		framesDone += chunk.FrameCount
		e.recordEncoded(chunkCtx, chunkLogger, layout, chunk)
		e.report(Progress{Phase: PhaseDone, Chunk: chunk.Index, Chunks: len(plan), FramesDone: framesDone, TotalFrames: props.TotalFrames})
		if percent := float64(framesDone) * 100 / float64(props.TotalFrames); e.sampler.ShouldLog(percent, string(PhaseEncode)) {
			logger.Info("encode progress",
				logging.Float64("percent", percent),
				logging.Int("chunk", chunk.Index+1),
				logging.Int("chunks", len(plan)),
			)
		}
	}

	if len(failures) > 0 {
		return nil, failureError(failures, len(plan))
	}
	if !eyeChecked {
		result.Sanity.add(SanityCheck{Name: "eye difference", Status: CheckSkip, Detail: "all chunks reused from a previous run"})
	}

	if err := e.assemble(ctx, logger, layout, plan, result, props); err != nil {
		return nil, err
	}

	duration := float64(props.TotalFrames) / props.FPS
	result.Sanity.add(CheckMVCMarkers(layout.ChunkBase(plan[0].Index), layout.ChunkDep(plan[0].Index), e.nalScanBytes)...)
	result.Sanity.add(CheckBitrates(result.BaseBytes, result.DepBytes, duration, e.enc)...)
	for _, check := range result.Sanity.Checks {
		attrs := []logging.Attr{logging.String("check", check.Name), logging.String("detail", check.Detail)}
		switch check.Status {
		case CheckFail:
			logging.ErrorWithContext(logger, "sanity check failed", "sanity_failed", attrs...)
		case CheckWarn:
			logging.WarnWithContext(logger, "sanity check warning", "sanity_warning", attrs...)
		default:
			logger.Info("sanity check", logging.Args(append(attrs, logging.String("status", string(check.Status)))...)...)
		}
	}
	if result.Sanity.Failed() {
		return result, services.Wrap(services.ErrValidation, stageName, "sanity", "encoded streams failed sanity checks", nil)
	}

	logger.Info("encode complete",
		logging.Int("encoded", result.Encoded),
		logging.Int("resumed", result.Resumed),
		logging.String("base_size", humanize.IBytes(uint64(result.BaseBytes))),
		logging.String("dep_size", humanize.IBytes(uint64(result.DepBytes))),
	)
	return result, nil
}

func (e *Encoder) assemble(ctx context.Context, logger *slog.Logger, layout workdir.Layout, plan []Chunk, result *Result, props *analyzer.Properties) error {
	bases := make([]string, len(plan))
	deps := make([]string, len(plan))
	for i, chunk := range plan {
		bases[i] = layout.ChunkBase(chunk.Index)
		deps[i] = layout.ChunkDep(chunk.Index)
		if !fileutil.NonEmpty(bases[i]) || !fileutil.NonEmpty(deps[i]) {
			return services.Wrap(services.ErrExternalTool, stageName, "concat",
				fmt.Sprintf("chunk %d outputs are missing", chunk.Index), nil)
		}
		result.DepBytes += fileutil.Size(deps[i])
	}
	e.report(Progress{Phase: PhaseConcat, Chunk: len(plan) - 1, Chunks: len(plan), FramesDone: props.TotalFrames, TotalFrames: props.TotalFrames})
	n, err := fileutil.ConcatFiles(ctx, layout.LeftEye(), bases)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "concat", "could not build left_eye.264", err)
	}
	result.BaseBytes = n
	result.DependentChunks = deps
	logger.Info("base view assembled",
		logging.String("file", layout.LeftEye()),
		logging.String("size", humanize.IBytes(uint64(n))),
	)
	return nil
}

func (e *Encoder) encodeChunk(ctx context.Context, logger *slog.Logger, source string, props *analyzer.Properties, layout workdir.Layout, chunk Chunk, checkEyes bool, chunks int) (*SanityCheck, error) {
	leftYUV, rightYUV := layout.LeftYUV(chunk.Index), layout.RightYUV(chunk.Index)
	defer func() {
		_ = os.Remove(leftYUV)
		_ = os.Remove(rightYUV)
	}()

	e.report(Progress{Phase: PhaseExtract, Chunk: chunk.Index, Chunks: chunks, TotalFrames: props.TotalFrames})
	logger.Debug("extracting eye planes",
		logging.Int("start_frame", chunk.StartFrame),
		logging.Int("frames", chunk.FrameCount),
	)
	for _, eye := range []struct {
		right bool
		path  string
	}{{false, leftYUV}, {true, rightYUV}} {
		args := ExtractArgs(source, chunk, props.FPS, props.Geometry, eye.right, eye.path)
		if err := e.runner.Run(ctx, e.ffmpeg, args, nil); err != nil {
			return nil, fmt.Errorf("extract %s: %w", eyeName(eye.right), err)
		}
	}
	last := chunk.EndFrame() >= props.TotalFrames
	if err := verifyPlanes(leftYUV, rightYUV, chunk, last, e.frameBytes); err != nil {
		return nil, err
	}

	var eye *SanityCheck
	if checkEyes {
		check := EyeDifference(leftYUV, rightYUV)
		eye = &check
		if check.Status == CheckFail {
			return eye, nil
		}
	}

	e.report(Progress{Phase: PhaseEncode, Chunk: chunk.Index, Chunks: chunks, TotalFrames: props.TotalFrames})
	base, dep := layout.ChunkBase(chunk.Index), layout.ChunkDep(chunk.Index)
	args := EncodeArgs(e.enc, props.FPS, props.GOP, leftYUV, rightYUV, base, dep)
	if err := e.runner.Run(ctx, e.frim, args, func(line string) {
		logger.Debug("frimencode", logging.String("line", strings.TrimSpace(line)))
	}); err != nil {
		return eye, fmt.Errorf("frimencode: %w", err)
	}
	for _, out := range []string{base, dep} {
		if !fileutil.NonEmpty(out) {
			return eye, fmt.Errorf("frimencode produced no data in %s", out)
		}
	}
	return eye, nil
}

// verifyPlanes checks the extracted planes hold exactly the chunk's frames.
// The final chunk may come up short when the frame count was estimated.
func verifyPlanes(leftYUV, rightYUV string, chunk Chunk, last bool, frame int64) error {
	expected := int64(chunk.FrameCount) * frame
	left, right := fileutil.Size(leftYUV), fileutil.Size(rightYUV)
	switch {
	case left == 0 || right == 0:
		return errors.New("ffmpeg extracted no frames")
	case left != right:
		return fmt.Errorf("eye planes differ in size (%d vs %d bytes)", left, right)
	case left%frame != 0:
		return fmt.Errorf("eye plane holds a partial frame (%d bytes)", left)
	case left == expected:
		return nil
	case last && left < expected:
		return nil
	default:
		return fmt.Errorf("eye plane holds %d frames, expected %d", left/frame, chunk.FrameCount)
	}
}

// resumable reports whether a chunk's outputs can be reused. Files on disk
// decide; the journal only vetoes reuse when it shows the chunk was planned
// differently or failed.
func (e *Encoder) resumable(ctx context.Context, logger *slog.Logger, layout workdir.Layout, chunk Chunk) bool {
	if !fileutil.NonEmpty(layout.ChunkBase(chunk.Index)) || !fileutil.NonEmpty(layout.ChunkDep(chunk.Index)) {
		return false
	}
	if e.journal == nil {
		return true
	}
	rec, err := e.journal.Chunk(ctx, chunk.Index)
	if err != nil {
		logger.Debug("journal lookup failed", logging.Error(err))
		return true
	}
	if rec == nil {
		return true
	}
	if !rec.SamePlan(chunk.StartFrame, chunk.FrameCount) {
		logging.WarnWithContext(logger, "chunk plan changed since the last run", "chunk_plan_changed",
			logging.Int("recorded_start", rec.StartFrame),
			logging.Int("recorded_frames", rec.FrameCount),
			logging.String(logging.FieldImpact, "chunk is encoded again"),
		)
		discard(layout, chunk)
		return false
	}
	return rec.Status != journal.ChunkFailed
}

// pruneBeyondPlan removes chunk files and journal records numbered past the
// plan. Leftovers from a longer plan would otherwise be picked up as extra
// dependent-view chunks.
func (e *Encoder) pruneBeyondPlan(ctx context.Context, logger *slog.Logger, layout workdir.Layout, chunks int) error {
	stale, err := layout.ChunkFilesFrom(chunks)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "prune", "list chunk files", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrExternalTool, stageName, "prune", "remove stale chunk file", err)
		}
	}
	if len(stale) > 0 {
		logging.WarnWithContext(logger, "removed chunk files outside the current plan", "stale_chunks_removed",
			logging.Int("files", len(stale)),
			logging.Int("chunks", chunks),
			logging.String(logging.FieldImpact, "output of an earlier plan is discarded"),
		)
	}
	if e.journal == nil {
		return nil
	}
	if n, err := e.journal.DeleteChunksFrom(context.WithoutCancel(ctx), chunks); err != nil {
		logging.WarnWithContext(logger, "journal update failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "bd3d status may list stale chunks"),
		)
	} else if n > 0 {
		logger.Debug("forgot stale chunk records", logging.Int64("records", n))
	}
	return nil
}

func (e *Encoder) record(ctx context.Context, logger *slog.Logger, chunk Chunk, status journal.ChunkStatus, message string) {
	e.put(ctx, logger, journal.Chunk{
		Index:        chunk.Index,
		StartFrame:   chunk.StartFrame,
		FrameCount:   chunk.FrameCount,
		Status:       status,
		ErrorMessage: message,
	})
}

func (e *Encoder) recordEncoded(ctx context.Context, logger *slog.Logger, layout workdir.Layout, chunk Chunk) {
	e.put(ctx, logger, journal.Chunk{
		Index:      chunk.Index,
		StartFrame: chunk.StartFrame,
		FrameCount: chunk.FrameCount,
		Status:     journal.ChunkEncoded,
		BaseBytes:  fileutil.Size(layout.ChunkBase(chunk.Index)),
		DepBytes:   fileutil.Size(layout.ChunkDep(chunk.Index)),
	})
}

func (e *Encoder) put(ctx context.Context, logger *slog.Logger, rec journal.Chunk) {
	if e.journal == nil {
		return
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		rec.RunID = runID
	}
	if err := e.journal.RecordChunk(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logger, "journal update failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "bd3d status may be out of date"),
		)
	}
}

func (e *Encoder) report(p Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

func discard(layout workdir.Layout, chunk Chunk) {
	for _, path := range []string{
		layout.ChunkBase(chunk.Index),
		layout.ChunkDep(chunk.Index),
		layout.LeftYUV(chunk.Index),
		layout.RightYUV(chunk.Index),
	} {
		_ = os.Remove(path)
	}
}

func eyeName(right bool) string {
	if right {
		return "right eye"
	}
	return "left eye"
}

func failureError(failures []ChunkFailure, total int) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("chunk %d: %w", f.Chunk.Index, f.Err))
	}
	msg := fmt.Sprintf("%d of %d chunks failed", len(failures), total)
	return services.Wrap(services.ErrExternalTool, stageName, "chunks", msg, errors.Join(errs...))
}
