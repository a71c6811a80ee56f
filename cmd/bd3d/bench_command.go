package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bd3d/internal/bench"
)

func newBenchCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Encode a short two-view test pattern with x264",
		Long: "Generate five seconds of test pattern for each eye and encode a base and a\n" +
			"dependent view with Blu-ray compatible x264 settings. This confirms ffmpeg and\n" +
			"an x264 build with --stereo-mode support work on this machine.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(dir) == "" {
				dir = os.TempDir()
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			result, err := bench.New(cfg, ctx.runner, bench.WithLogger(ctx.baseLogger())).Run(cmd.Context(), dir)
			if result != nil && result.Hint != "" {
				fmt.Fprintln(out, renderStatusLine("x264", statusWarn, result.Hint, colorize))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderProperties("x264 Benchmark", [][2]string{
				{"Base view", humanize.IBytes(uint64(result.BaseBytes))},
				{"Dependent view", humanize.IBytes(uint64(result.DepBytes))},
				{"Elapsed", result.Elapsed.Round(10 * time.Millisecond).String()},
				{"Test files removed", yesNo(result.Cleanup.OK())},
			}))
			fmt.Fprintln(out, renderStatusLine("Benchmark", statusOK, "x264 produced both views", colorize))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Parent directory for the temporary test files")
	return cmd
}
