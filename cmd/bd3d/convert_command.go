package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bd3d/internal/logging"
	"bd3d/internal/services"
	"bd3d/internal/workflow"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts workflow.Options
	var reuse string

	cmd := &cobra.Command{
		Use:   "convert [source]",
		Short: "Convert a side-by-side video into a Blu-ray 3D disc",
		Long: "Analyze a side-by-side 3D video, encode both eyes as H.264 MVC, mux the streams\n" +
			"with tsMuxeR into a BDMV folder or ISO image, and validate the result.\n" +
			"Anything not given by flags is asked for interactively.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				opts.Source = args[0]
			}
			policy, err := parseReusePolicy(reuse)
			if err != nil {
				return err
			}
			opts.Reuse = policy

			out := cmd.OutOrStdout()
			converter := workflow.NewConverter(cfg, ctx.runner, ctx.prompter(cmd),
				workflow.WithLogger(ctx.baseLogger()),
				workflow.WithView(newTerminalView(out)),
			)
			outcome, err := converter.Convert(cmd.Context(), opts)
			if err != nil {
				if outcome != nil && outcome.WorkDir != "" {
					fmt.Fprintf(out, "Work directory kept at %s; see %s for details.\n", outcome.WorkDir, logging.RunLogName)
				}
				return err
			}
			if outcome.Declined {
				fmt.Fprintln(out, "Conversion cancelled; nothing was written.")
				return nil
			}
			fmt.Fprintf(out, "Blu-ray 3D written to %s\n", outcome.Output)
			if !outcome.WorkDirRemoved {
				fmt.Fprintf(out, "Work directory: %s\n", outcome.WorkDir)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "", "Output BDMV folder or .iso path")
	flags.BoolVar(&opts.OutputISO, "iso", false, "Write an ISO image even when --output lacks .iso")
	flags.StringVarP(&opts.WorkDir, "work-dir", "w", "", "Working directory for intermediate files")
	flags.StringVar(&opts.AudioSpec, "audio", "", `Audio tracks to include: "all", "none", or numbers like "1,3"`)
	flags.StringVar(&opts.SubtitleSpec, "subs", "", `Subtitle tracks to include: "all", "none", or numbers like "1,3"`)
	flags.BoolVar(&opts.Force, "force", false, "Accept a source file with an unrecognised extension")
	flags.StringVar(&reuse, "reuse", string(workflow.ReuseAsk), "Existing complete encode: ask, always, or never")
	flags.BoolVar(&opts.SkipValidation, "skip-validation", false, "Do not validate the finished disc")
	return cmd
}

func parseReusePolicy(value string) (workflow.ReusePolicy, error) {
	switch policy := workflow.ReusePolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case "", workflow.ReuseAsk:
		return workflow.ReuseAsk, nil
	case workflow.ReuseAlways, workflow.ReuseNever:
		return policy, nil
	default:
		return "", services.Wrap(services.ErrValidation, "convert", "--reuse",
			fmt.Sprintf("unknown policy %q (use ask, always, or never)", value), nil)
	}
}
