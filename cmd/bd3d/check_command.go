package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bd3d/internal/deps"
	"bd3d/internal/preflight"
	"bd3d/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var opts preflight.Options

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check external tools and directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, ctx.runner, opts)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPreflight(results, shouldColorize(out)))
			if preflight.Failed(results) {
				fmt.Fprintln(out, deps.InstallHint)
				return services.Wrap(services.ErrDependency, "check", "tools", "required checks failed", nil)
			}
			fmt.Fprintln(out, "All required checks passed.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.IncludeBench, "bench", false, "Also require x264 for the benchmark")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "Verify this work directory can be created and written")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Verify this output directory can be created and written")
	return cmd
}
