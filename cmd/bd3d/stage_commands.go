package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bd3d/internal/config"
	"bd3d/internal/deps"
	"bd3d/internal/encoder"
	"bd3d/internal/logging"
	"bd3d/internal/mux"
	"bd3d/internal/selection"
	"bd3d/internal/services"
	"bd3d/internal/tracks"
	"bd3d/internal/workflow"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var workDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "encode <source>",
		Short: "Encode the MVC streams into a work directory",
		Long: "Run only the encode stage. Chunks already encoded in the work directory are\n" +
			"verified and reused, so an interrupted encode can be resumed with this command.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := requireTools(cfg); err != nil {
				return err
			}
			source, props, err := analyzeSource(cmd.Context(), ctx, cfg, args[0], force)
			if err != nil {
				return err
			}
			view := newTerminalView(cmd.OutOrStdout())
			view.Summary(props)

			return withWorkspace(cmd.Context(), ctx, cfg, workDir, source, "encode", func(stageCtx context.Context, ws *workflow.Workspace) error {
				if owner := ws.ForeignEncode(stageCtx); owner != "" {
					view.Notice("Discarding encoded files from a different source (" + owner + ").")
					if err := ws.DiscardEncode(stageCtx, cfg.Muxing.CleanupAttempts); err != nil {
						return err
					}
				}
				result, err := encoder.New(cfg, ctx.runner,
					encoder.WithLogger(ws.Logger),
					encoder.WithJournal(ws.Journal),
					encoder.WithProgress(view.EncodeProgress),
				).Encode(stageCtx, source, props, ws.Layout)
				if result != nil {
					view.EncodeResult(result)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&workDir, "work-dir", "w", "", "Working directory (defaults to paths.work_dir)")
	cmd.Flags().BoolVar(&force, "force", false, "Accept a source file with an unrecognised extension")
	return cmd
}

func newMuxCommand(ctx *commandContext) *cobra.Command {
	var workDir, output, audioSpec, subSpec string
	var iso, force bool

	cmd := &cobra.Command{
		Use:   "mux <source>",
		Short: "Mux an existing encode with the source's audio and subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(output) == "" {
				return services.Wrap(services.ErrValidation, "mux", "--output", "an output path is required", nil)
			}
			kind := selection.OutputTypeFor(output)
			if iso {
				kind = selection.OutputISO
			}
			mkvextract, err := requireTools(cfg)
			if err != nil {
				return err
			}
			target, err := selection.ResolveOutput(output, kind)
			if err != nil {
				return err
			}
			source, props, err := analyzeSource(cmd.Context(), ctx, cfg, args[0], force)
			if err != nil {
				return err
			}
			sel, err := tracks.FromSpecs(audioSpec, subSpec, props.Audio, props.Subtitles)
			if err != nil {
				return services.Wrap(services.ErrValidation, "mux", "tracks", "", err)
			}
			view := newTerminalView(cmd.OutOrStdout())
			view.Tracks(sel)

			return withWorkspace(cmd.Context(), ctx, cfg, workDir, source, "mux", func(stageCtx context.Context, ws *workflow.Workspace) error {
				if owner := ws.ForeignEncode(stageCtx); owner != "" {
					return services.Wrap(services.ErrValidation, "mux", "encode",
						fmt.Sprintf("the work directory holds an encode of %s; run encode for %s first", owner, source), nil)
				}
				if err := ws.Journal.SetOutput(stageCtx, ws.Run.ID, target); err != nil {
					ws.Logger.Warn("could not record output path", logging.Error(err))
				}
				result, err := mux.New(cfg, ctx.runner,
					mux.WithLogger(ws.Logger),
					mux.WithMKVExtract(mkvextract),
					mux.WithJournal(ws.Journal),
				).Mux(stageCtx, mux.Request{
					Source:    source,
					Props:     props,
					Audio:     sel.Audio,
					Subtitles: sel.Subtitles,
					Layout:    ws.Layout,
					Output:    target,
				})
				if result != nil {
					view.MuxResult(result)
				}
				return err
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&workDir, "work-dir", "w", "", "Working directory holding the encode (defaults to paths.work_dir)")
	flags.StringVarP(&output, "output", "o", "", "Output BDMV folder or .iso path")
	flags.BoolVar(&iso, "iso", false, "Write an ISO image even when --output lacks .iso")
	flags.StringVar(&audioSpec, "audio", "all", `Audio tracks to include: "all", "none", or numbers like "1,3"`)
	flags.StringVar(&subSpec, "subs", "all", `Subtitle tracks to include: "all", "none", or numbers like "1,3"`)
	flags.BoolVar(&force, "force", false, "Accept a source file with an unrecognised extension")
	return cmd
}

// withWorkspace opens the work directory, runs fn as the named stage, and
// records the outcome in the run journal.
func withWorkspace(ctx context.Context, cc *commandContext, cfg *config.Config, dir, source, stage string, fn func(context.Context, *workflow.Workspace) error) error {
	if strings.TrimSpace(dir) == "" {
		dir = cfg.Paths.WorkDir
	}
	ws, err := workflow.OpenWorkspace(ctx, dir, source, cfg.Logging.Level, cc.baseLogger())
	if err != nil {
		return err
	}
	runCtx := ws.Context(ctx)
	err = workflow.RunStage(runCtx, ws, ws.Logger, stage, func(stageCtx context.Context) error {
		return fn(stageCtx, ws)
	})
	ws.Finish(runCtx, err)
	if err != nil {
		return fmt.Errorf("%s (work directory %s): %w", stage, ws.Layout.Dir, err)
	}
	return nil
}

// requireTools fails when a required binary is missing and reports whether
// the optional mkvextract is installed.
func requireTools(cfg *config.Config) (bool, error) {
	statuses := deps.CheckBinaries(deps.Requirements(cfg, false))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return false, services.Wrap(services.ErrDependency, "preflight", "tools",
			"unavailable: "+strings.Join(missing, ", ")+"; "+deps.InstallHint, nil)
	}
	for _, status := range statuses {
		if status.Name == "mkvextract" {
			return status.Available, nil
		}
	}
	return false, nil
}
