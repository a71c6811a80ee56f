package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bd3d/internal/analyzer"
	"bd3d/internal/config"
	"bd3d/internal/selection"
	"bd3d/internal/tracks"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <source>",
		Short: "Inspect a side-by-side video without converting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_, props, err := analyzeSource(cmd.Context(), ctx, cfg, args[0], force)
			if err != nil {
				return err
			}
			sel := tracks.Partition(props.Audio, props.Subtitles)
			if asJSON {
				return writeJSON(cmd, struct {
					Properties *analyzer.Properties `json:"properties"`
					Tracks     tracks.Selection     `json:"tracks"`
				}{props, sel})
			}
			view := newTerminalView(cmd.OutOrStdout())
			view.Summary(props)
			view.Tracks(sel)
			if len(props.Chapters) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Chapters: %v\n", props.Chapters)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Accept a source file with an unrecognised extension")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")
	return cmd
}

// analyzeSource validates path and runs the analyzer on it.
func analyzeSource(ctx context.Context, cc *commandContext, cfg *config.Config, path string, force bool) (string, *analyzer.Properties, error) {
	source, err := selection.ValidateSource(path, force)
	if err != nil {
		return "", nil, err
	}
	props, err := analyzer.New(cfg.Tools.FFprobe, cfg.Tools.FFmpeg, cc.runner,
		analyzer.WithLogger(cc.baseLogger()),
	).Analyze(ctx, source)
	if err != nil {
		return "", nil, err
	}
	return source, props, nil
}
