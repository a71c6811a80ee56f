package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bd3d/internal/journal"
	"bd3d/internal/services"
	"bd3d/internal/workdir"
)

const statusRunLimit = 10

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [work-dir]",
		Short: "Show runs and chunk progress recorded in a work directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.WorkDir
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return services.Wrap(services.ErrValidation, "status", "work dir", "invalid path", err)
			}
			layout := workdir.New(abs)
			if _, err := os.Stat(layout.Journal()); err != nil {
				return services.Wrap(services.ErrNotFound, "status", "journal",
					fmt.Sprintf("no bd3d journal in %s", abs), nil)
			}

			j, err := journal.Open(layout.Journal())
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "status", "journal", "open run journal", err)
			}
			defer j.Close()

			runs, err := j.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			chunks, err := j.Chunks(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Work directory "+abs, colorize) {
				fmt.Fprintln(out, line)
			}
			lockKind, state := statusOK, lockState(layout)
			if state != "idle" {
				lockKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Lock", lockKind, state, colorize))
			fmt.Fprintln(out, renderStatusLine("Encode", statusInfo, layout.ExistingEncode().String(), colorize))
			if size, err := workdir.Size(abs); err == nil {
				fmt.Fprintln(out, renderStatusLine("Disk usage", statusInfo, humanize.IBytes(uint64(size)), colorize))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderRuns(runs, colorize))
			if len(chunks) > 0 {
				fmt.Fprintln(out, renderChunks(chunks, colorize))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", statusRunLimit, "Number of runs to list (0 lists all)")
	return cmd
}

// lockState probes the work directory lock without waiting.
func lockState(layout workdir.Layout) string {
	lock := flock.New(layout.Lock())
	ok, err := lock.TryLock()
	if err != nil {
		return "unknown: " + err.Error()
	}
	if !ok {
		return "in use by a running bd3d process"
	}
	_ = lock.Unlock()
	return "idle"
}

func runKind(status journal.RunStatus) statusKind {
	switch status {
	case journal.RunCompleted:
		return statusOK
	case journal.RunFailed:
		return statusError
	case journal.RunCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

func renderRuns(runs []journal.Run, colorize bool) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = humanize.Time(*run.FinishedAt)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			paint(runKind(run.Status), string(run.Status), colorize),
			orDash(run.Stage),
			filepath.Base(run.SourcePath),
			run.StartedAt.Local().Format(time.DateTime),
			finished,
			truncate(run.ErrorMessage, 60),
		})
	}
	return renderTable("Runs", []string{"Run", "Status", "Stage", "Source", "Started", "Finished", "Error"}, rows, nil)
}

func renderChunks(chunks []journal.Chunk, colorize bool) string {
	rows := make([][]string, 0, len(chunks))
	for _, chunk := range chunks {
		kind := statusInfo
		switch chunk.Status {
		case journal.ChunkEncoded:
			kind = statusOK
		case journal.ChunkFailed:
			kind = statusError
		}
		rows = append(rows, []string{
			strconv.Itoa(chunk.Index),
			strconv.Itoa(chunk.StartFrame),
			strconv.Itoa(chunk.FrameCount),
			paint(kind, string(chunk.Status), colorize),
			humanize.IBytes(uint64(chunk.BaseBytes)),
			humanize.IBytes(uint64(chunk.DepBytes)),
			truncate(chunk.ErrorMessage, 60),
		})
	}
	return renderTable("Chunks", []string{"Chunk", "Start", "Frames", "Status", "Base", "Dependent", "Error"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignRight})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
