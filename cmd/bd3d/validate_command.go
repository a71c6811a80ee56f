package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bd3d/internal/bdmv"
	"bd3d/internal/media/ffprobe"
	"bd3d/internal/services"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var source, fps string
	var frames int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <output>",
		Short: "Validate a Blu-ray 3D folder or ISO image",
		Long: "Check the BDMV structure, video stream profile and limits, timestamp continuity,\n" +
			"frame count, and MVC NAL units of a finished disc. Expectations come from\n" +
			"--source (analyzed) or from --fps and --frames.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			expect := bdmv.Expectations{FPSRational: fps, FPS: ffprobe.ParseRational(fps), TotalFrames: frames}
			if source != "" {
				_, props, err := analyzeSource(cmd.Context(), ctx, cfg, source, true)
				if err != nil {
					return err
				}
				expect = bdmv.Expectations{FPS: props.FPS, FPSRational: props.FPSRational, TotalFrames: props.TotalFrames}
			}

			report, err := bdmv.New(cfg, ctx.runner, bdmv.WithLogger(ctx.baseLogger())).Validate(cmd.Context(), args[0], expect)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report, shouldColorize(cmd.OutOrStdout())))
			}
			if !report.Passed() {
				return services.Wrap(services.ErrValidation, "validate", "report",
					fmt.Sprintf("%d check(s) failed", report.Count(bdmv.StatusFail)), nil)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&source, "source", "", "Source video to derive the expected frame rate and count from")
	flags.StringVar(&fps, "fps", "", `Expected frame rate, e.g. "24000/1001"`)
	flags.IntVar(&frames, "frames", 0, "Expected frame count")
	flags.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
