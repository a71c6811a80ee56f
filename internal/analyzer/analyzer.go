package analyzer

import (
	"context"
	"log/slog"

	"bd3d/internal/logging"
	"bd3d/internal/media/cropdetect"
	"bd3d/internal/media/ffprobe"
	"bd3d/internal/services"
	"bd3d/internal/toolexec"
)

const stageName = "analyze"

// Analyzer inspects source files.
type Analyzer struct {
	prober   *ffprobe.Prober
	detector *cropdetect.Detector
	logger   *slog.Logger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithLogger overrides the analyzer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logging.NewComponentLogger(logger, "analyzer")
		}
	}
}

// New builds an Analyzer using the given ffprobe and ffmpeg binaries.
func New(ffprobeBinary, ffmpegBinary string, runner toolexec.Runner, opts ...Option) *Analyzer {
	a := &Analyzer{
		prober:   ffprobe.New(ffprobeBinary, runner),
		detector: cropdetect.New(ffmpegBinary, runner),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze probes path and derives its conversion properties.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Properties, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, a.logger)

	probe, err := a.prober.Inspect(ctx, path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "ffprobe", "could not read stream info; ensure ffprobe is installed", err)
	}
	props, err := fromProbe(path, probe)
	if err != nil {
		return nil, err
	}
	logger.Info("source probed",
		logging.String("sbs", string(props.SBS)),
		logging.String("fps", props.FPSRational),
		logging.String("duration", props.Duration()),
		logging.String("frames", props.FramesDisplay()),
	)

	crop, ok, cropErr := a.detector.Detect(ctx, path, props.DurationSeconds)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !ok {
		attrs := []logging.Attr{logging.String(logging.FieldImpact, "assuming no black bars")}
		if cropErr != nil {
			attrs = append(attrs, logging.Error(cropErr))
		}
		logging.WarnWithContext(logger, "crop detection found no suggestion", "cropdetect_failed", attrs...)
	}
	props.applyCrop(crop, ok)

	geometry, err := ComputeGeometry(props.SBS, props.ActiveWidth, props.ActiveHeight, props.CropX, props.TopBar)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "geometry", "", err)
	}
	props.Geometry = geometry
	logger.Info("active area",
		logging.Bool("black_bars", props.HasBlackBars),
		logging.Int("active_width", props.ActiveWidth),
		logging.Int("active_height", props.ActiveHeight),
		logging.Int("top", props.TopBar),
		logging.Int("bottom", props.BottomBar),
	)

	chapters, err := a.prober.Chapters(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.WarnWithContext(logger, "chapter extraction failed", "chapters_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "disc will have no chapter marks"))
	}
	props.Chapters = formatChapters(chapters)
	logger.Debug("chapters", logging.Int("count", len(props.Chapters)))

	return props, nil
}

func fromProbe(path string, probe ffprobe.Result) (*Properties, error) {
	video, ok := probe.FirstVideo()
	if !ok {
		return nil, services.Wrap(services.ErrValidation, stageName, "inspect", "no video stream found", nil)
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "inspect", "could not determine video resolution", nil)
	}

	props := &Properties{
		Source:             path,
		TotalWidth:         video.Width,
		TotalHeight:        video.Height,
		DisplayAspectRatio: video.DisplayAspectRatio,
		FPSRational:        video.RFrameRate,
		FPS:                ffprobe.ParseRational(video.RFrameRate),
		DurationSeconds:    probe.DurationSeconds(),
		SBS:                ClassifySBS(video.Width, video.Height),
	}
	if props.DisplayAspectRatio == "" {
		props.DisplayAspectRatio = "N/A"
	}
	if props.FPSRational == "" {
		props.FPSRational = "0/1"
	}
	if frames, ok := video.FrameCount(); ok {
		props.TotalFrames = frames
	} else {
		props.TotalFrames = int(props.DurationSeconds * props.FPS)
		props.FramesEstimated = true
	}
	props.GOP = GOPLength(props.FPS)
	props.ActiveWidth = props.TotalWidth
	props.ActiveHeight = props.TotalHeight

	for _, stream := range probe.StreamsOfType("audio") {
		props.Audio = append(props.Audio, trackFromStream(stream))
	}
	for _, stream := range probe.StreamsOfType("subtitle") {
		props.Subtitles = append(props.Subtitles, trackFromStream(stream))
	}
	return props, nil
}

func formatChapters(chapters []ffprobe.Chapter) []string {
	if len(chapters) == 0 {
		return nil
	}
	out := make([]string, 0, len(chapters))
	for _, chapter := range chapters {
		out = append(out, ffprobe.FormatChapterTime(ffprobe.ParseSeconds(chapter.StartTime)))
	}
	return out
}
