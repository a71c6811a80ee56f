package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"bd3d/internal/analyzer"
	"bd3d/internal/bdmv"
	"bd3d/internal/config"
	"bd3d/internal/deps"
	"bd3d/internal/encoder"
	"bd3d/internal/logging"
	"bd3d/internal/mux"
	"bd3d/internal/preflight"
	"bd3d/internal/selection"
	"bd3d/internal/services"
	"bd3d/internal/textutil"
	"bd3d/internal/toolexec"
	"bd3d/internal/tracks"
	"bd3d/internal/workdir"
)

// ReusePolicy decides what happens to a complete previous encode.
type ReusePolicy string

const (
	ReuseAsk    ReusePolicy = "ask"
	ReuseAlways ReusePolicy = "always"
	ReuseNever  ReusePolicy = "never"
)

// Options are the per-run choices. Empty paths are asked for.
type Options struct {
	Source    string
	WorkDir   string
	Output    string
	OutputISO bool
	// AudioSpec and SubtitleSpec select tracks ("all", "none", "1,3").
	// When both are empty and input is a terminal the user is asked.
	AudioSpec      string
	SubtitleSpec   string
	Force          bool
	Reuse          ReusePolicy
	SkipValidation bool
}

// Outcome describes a finished (or declined) conversion.
type Outcome struct {
	RunID          string
	Source         string
	WorkDir        string
	Output         string
	Declined       bool
	ReusedEncode   bool
	Props          *analyzer.Properties
	Selection      tracks.Selection
	Encode         *encoder.Result
	Mux            *mux.Result
	Validation     *bdmv.Report
	WorkDirRemoved bool
}

// Converter runs the conversion pipeline.
type Converter struct {
	cfg      *config.Config
	runner   toolexec.Runner
	prompter *selection.Prompter
	view     View
	logger   *slog.Logger
}

// ConverterOption customizes a Converter.
type ConverterOption func(*Converter)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) ConverterOption {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithView sets the presentation layer.
func WithView(view View) ConverterOption {
	return func(c *Converter) {
		if view != nil {
			c.view = view
		}
	}
}

// NewConverter builds a Converter.
func NewConverter(cfg *config.Config, runner toolexec.Runner, prompter *selection.Prompter, opts ...ConverterOption) *Converter {
	if runner == nil {
		runner = toolexec.Exec{}
	}
	c := &Converter{
		cfg:      cfg,
		runner:   runner,
		prompter: prompter,
		view:     NopView{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert runs the whole pipeline. Declining the confirmation is not an
// error: the Outcome has Declined set.
func (c *Converter) Convert(ctx context.Context, opts Options) (*Outcome, error) {
	logger := logging.NewComponentLogger(c.logger, "workflow")
	outcome := &Outcome{}

	mkvextract, err := c.preflight(ctx)
	if err != nil {
		return outcome, err
	}

	source, err := c.chooseSource(opts)
	if err != nil {
		return outcome, err
	}
	outcome.Source = source

	props, err := analyzer.New(c.cfg.Tools.FFprobe, c.cfg.Tools.FFmpeg, c.runner, analyzer.WithLogger(c.logger)).Analyze(ctx, source)
	if err != nil {
		return outcome, err
	}
	outcome.Props = props
	c.view.Summary(props)

	sel, err := c.chooseTracks(opts, props)
	if err != nil {
		return outcome, err
	}
	outcome.Selection = sel
	c.view.Tracks(sel)

	confirmed, err := c.prompter.AskYesNo("Confirm Analysis", confirmation(props, sel), true)
	if err != nil {
		return outcome, err
	}
	if !confirmed {
		outcome.Declined = true
		logger.Info("conversion declined by user")
		return outcome, nil
	}

	workDir := opts.WorkDir
	if strings.TrimSpace(workDir) == "" {
		if workDir, err = c.prompter.AskPath("Temporary working directory", c.cfg.Paths.WorkDir); err != nil {
			return outcome, err
		}
	}
	ws, err := OpenWorkspace(ctx, workDir, source, c.cfg.Logging.Level, c.logger)
	if err != nil {
		return outcome, err
	}
	outcome.RunID, outcome.WorkDir = ws.Run.ID, ws.Layout.Dir
	ctx = ws.Context(ctx)

	runErr := c.run(ctx, ws, opts, outcome, mkvextract)
	ws.Finish(ctx, runErr)
	if runErr != nil {
		return outcome, runErr
	}

	if err := c.offerCleanup(ctx, ws.Layout, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// run executes the stages that need the locked work directory.
func (c *Converter) run(ctx context.Context, ws *Workspace, opts Options, outcome *Outcome, mkvextract bool) error {
	logger := ws.Logger
	props := outcome.Props

	c.checkScratchSpace(ws.Layout, props)

	reuse, err := c.decideReuse(ctx, ws, opts.Reuse)
	if err != nil {
		return err
	}
	outcome.ReusedEncode = reuse

	if !reuse {
		err := RunStage(ctx, ws, logger, "encode", func(ctx context.Context) error {
			enc := encoder.New(c.cfg, c.runner,
				encoder.WithLogger(logger),
				encoder.WithJournal(ws.Journal),
				encoder.WithProgress(c.view.EncodeProgress),
			)
			result, err := enc.Encode(ctx, outcome.Source, props, ws.Layout)
			outcome.Encode = result
			if result != nil {
				c.view.EncodeResult(result)
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	output, err := c.chooseOutput(opts, outcome.Source)
	if err != nil {
		return err
	}
	outcome.Output = output
	if err := ws.Journal.SetOutput(ctx, ws.Run.ID, output); err != nil {
		logger.Warn("could not record output path", logging.Error(err))
	}

	err = RunStage(ctx, ws, logger, "mux", func(ctx context.Context) error {
		m := mux.New(c.cfg, c.runner,
			mux.WithLogger(logger),
			mux.WithMKVExtract(mkvextract),
			mux.WithJournal(ws.Journal),
		)
		req := mux.Request{
			Source:    outcome.Source,
			Props:     props,
			Audio:     outcome.Selection.Audio,
			Subtitles: outcome.Selection.Subtitles,
			Layout:    ws.Layout,
			Output:    output,
		}
		if outcome.Encode != nil {
			req.DependentChunks = outcome.Encode.DependentChunks
		}
		result, err := m.Mux(ctx, req)
		outcome.Mux = result
		if result != nil {
			c.view.MuxResult(result)
		}
		return err
	})
	if err != nil {
		return err
	}

	if opts.SkipValidation {
		logger.Info("validation skipped")
		return nil
	}
	return RunStage(ctx, ws, logger, "validate", func(ctx context.Context) error {
		report, err := bdmv.New(c.cfg, c.runner, bdmv.WithLogger(logger)).Validate(ctx, output, bdmv.Expectations{
			FPS:         props.FPS,
			FPSRational: props.FPSRational,
			TotalFrames: props.TotalFrames,
		})
		if err != nil {
			return err
		}
		outcome.Validation = report
		c.view.Validation(report)
		if !report.Passed() {
			return services.Wrap(services.ErrValidation, "validate", "report",
				fmt.Sprintf("%d check(s) failed for %s", report.Count(bdmv.StatusFail), output), nil)
		}
		return nil
	})
}

// preflight checks tools and reports whether mkvextract is usable.
func (c *Converter) preflight(ctx context.Context) (bool, error) {
	results := preflight.RunAll(ctx, c.cfg, c.runner, preflight.Options{})
	c.view.Preflight(results)
	if failed := preflight.FailedNames(results); len(failed) > 0 {
		return false, services.Wrap(services.ErrDependency, "preflight", "tools",
			"unavailable: "+strings.Join(failed, ", ")+"; "+deps.InstallHint, nil)
	}
	for _, result := range results {
		if result.Name == "mkvextract" {
			return result.Passed, nil
		}
	}
	return false, nil
}

func (c *Converter) chooseSource(opts Options) (string, error) {
	source := opts.Source
	if strings.TrimSpace(source) == "" {
		var err error
		if source, err = c.prompter.AskPath("Source video file", ""); err != nil {
			return "", err
		}
	}
	return selection.ValidateSource(source, opts.Force)
}

func (c *Converter) chooseTracks(opts Options, props *analyzer.Properties) (tracks.Selection, error) {
	if opts.AudioSpec == "" && opts.SubtitleSpec == "" && c.prompter.Interactive() && !c.prompter.AssumeYes() {
		return tracks.Interactive(c.prompter.In(), c.prompter.Out(), props.Audio, props.Subtitles)
	}
	sel, err := tracks.FromSpecs(opts.AudioSpec, opts.SubtitleSpec, props.Audio, props.Subtitles)
	if err != nil {
		return tracks.Selection{}, services.Wrap(services.ErrValidation, "select", "tracks", "", err)
	}
	return sel, nil
}

func confirmation(props *analyzer.Properties, sel tracks.Selection) string {
	return fmt.Sprintf("A %s video will be converted to a Blu-ray 3D structure.\n"+
		"Active video area is %dx%d.\n"+
		"%d audio and %d subtitle tracks will be included.\n"+
		"Continue with encoding and muxing?",
		props.SBS, props.ActiveWidth, props.ActiveHeight, len(sel.Audio), len(sel.Subtitles))
}

// checkScratchSpace warns when the work disk looks too small for the
// encoded streams plus one chunk of raw frames per eye.
func (c *Converter) checkScratchSpace(layout workdir.Layout, props *analyzer.Properties) {
	streams := props.DurationSeconds * float64(c.cfg.Encoding.MaxBitrateKbps) * 1000 / 8
	frames := encoder.FramesPerChunk(props.FPS, c.cfg.Encoding.ChunkSeconds, props.GOP)
	need := uint64(streams) + 2*uint64(frames)*uint64(analyzer.EyeFrameBytes)
	result := preflight.CheckFreeSpace("Work disk space", layout.Dir, need)
	if !result.Passed {
		c.view.Notice("Low disk space in the work directory: " + result.Detail)
		logging.WarnWithContext(c.logger, "work directory may run out of space", "low_disk_space",
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "encode may fail part way"),
		)
	}
}

// decideReuse handles leftovers from a previous encode. Output encoded from
// another source is always removed. A complete encode may be reused;
// declining removes it. Partial output is left for the
// encoder, which resumes every chunk it can verify.
func (c *Converter) decideReuse(ctx context.Context, ws *Workspace, policy ReusePolicy) (bool, error) {
	if owner := ws.ForeignEncode(ctx); owner != "" {
		c.view.Notice("Found encoded files from a different source (" + owner + "); encoding from scratch.")
		ws.Logger.Info("existing encode belongs to another source", logging.String("encode_source", owner))
		return false, ws.DiscardEncode(ctx, c.cfg.Muxing.CleanupAttempts)
	}
	state := ws.Layout.ExistingEncode()
	switch state {
	case workdir.EncodePartial:
		c.view.Notice("Found incomplete encoded files; encoding will resume and rebuild them.")
		ws.Logger.Info("partial encode found; re-encoding", logging.String("state", state.String()))
		return false, nil
	case workdir.EncodeNone:
		return false, nil
	}

	reuse := policy == ReuseAlways
	if policy == "" || policy == ReuseAsk {
		var err error
		reuse, err = c.prompter.AskYesNo("Existing Files Found",
			"Pre-encoded 3D .264 streams were found. Skip encoding and use them?", true)
		if err != nil {
			return false, err
		}
	}
	if reuse {
		c.view.Notice("Skipping encode: using existing streams.")
		ws.Logger.Info("reusing existing encode")
		return true, nil
	}

	return false, ws.DiscardEncode(ctx, c.cfg.Muxing.CleanupAttempts)
}

func (c *Converter) chooseOutput(opts Options, source string) (string, error) {
	output := strings.TrimSpace(opts.Output)
	kind := selection.OutputTypeFor(output)
	if opts.OutputISO {
		kind = selection.OutputISO
	}
	if output == "" {
		var err error
		if kind, err = c.prompter.AskOutputType(); err != nil {
			return "", err
		}
		name := textutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))) + " 3D"
		def := filepath.Join(c.cfg.Paths.OutputDir, name)
		if kind == selection.OutputISO {
			def += ".iso"
		}
		if output, err = c.prompter.AskPath("Output location", def); err != nil {
			return "", err
		}
	}
	return selection.ResolveOutput(output, kind)
}

// offerCleanup asks whether to delete the work directory. The default is to
// keep it.
func (c *Converter) offerCleanup(ctx context.Context, layout workdir.Layout, outcome *Outcome) error {
	size, _ := workdir.Size(layout.Dir)
	remove, err := c.prompter.AskYesNo("Cleanup Temporary Files?",
		fmt.Sprintf("The process is complete. Delete the working directory (%s)?\n\nDirectory: %s",
			humanize.IBytes(uint64(size)), layout.Dir), false)
	if err != nil {
		if errors.Is(err, services.ErrCancelled) {
			return nil
		}
		return err
	}
	if !remove {
		return nil
	}
	result := workdir.RemoveDir(ctx, layout.Dir, c.cfg.Muxing.CleanupAttempts, 0, c.logger)
	outcome.WorkDirRemoved = result.OK()
	if !result.OK() {
		c.view.Notice("Could not remove " + layout.Dir + "; remove it manually.")
	}
	return nil
}
