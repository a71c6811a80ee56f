package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"bd3d/internal/journal"
	"bd3d/internal/logging"
	"bd3d/internal/selection"
	"bd3d/internal/services"
	"bd3d/internal/workdir"
)

// Workspace is a locked work directory with its journal and run log.
type Workspace struct {
	Layout  workdir.Layout
	Journal *journal.Journal
	Run     *journal.Run
	Logger  *slog.Logger

	lock     *flock.Flock
	closeLog func() error
}

// OpenWorkspace creates and locks dir, opens its journal, and starts a run
// for source. Runs left in the running state by a crashed process are
// marked failed first.
func OpenWorkspace(ctx context.Context, dir, source, logLevel string, base *slog.Logger) (*Workspace, error) {
	if base == nil {
		base = logging.NewNop()
	}
	abs, err := selection.PrepareWorkDir(dir)
	if err != nil {
		return nil, err
	}
	layout := workdir.New(abs)

	lock := flock.New(layout.Lock())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "lock", "", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "lock",
			fmt.Sprintf("work directory %s is in use by another bd3d process", abs), nil)
	}
	ws := &Workspace{Layout: layout, lock: lock}

	logger, closeLog, err := logging.AttachRunLog(base, abs, logLevel)
	if err != nil {
		ws.release(base)
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "run log", "", err)
	}
	ws.Logger, ws.closeLog = logger, closeLog

	j, err := journal.Open(layout.Journal())
	if err != nil {
		ws.release(base)
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "journal", "open run journal", err)
	}
	ws.Journal = j
	if n, err := j.AbandonRunning(ctx, "interrupted before completion"); err != nil {
		logger.Warn("could not mark stale runs", logging.Error(err))
	} else if n > 0 {
		logger.Info("marked interrupted runs as failed", logging.Int64("runs", n))
	}

	run, err := j.StartRun(ctx, source)
	if err != nil {
		ws.release(base)
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "journal", "start run", err)
	}
	ws.Run = run
	ws.Logger.Info("run started",
		logging.String(logging.FieldRunID, run.ID),
		logging.String("work_dir", abs),
		logging.String("source", source),
	)
	return ws, nil
}

// Context attaches the run ID to ctx.
func (w *Workspace) Context(ctx context.Context) context.Context {
	if w == nil || w.Run == nil {
		return ctx
	}
	return services.WithRunID(ctx, w.Run.ID)
}

// Finish records the run outcome derived from runErr, then releases the
// journal, run log, and lock.
func (w *Workspace) Finish(ctx context.Context, runErr error) {
	if w == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if w.Journal != nil && w.Run != nil {
		status, message := RunStatusFor(runErr)
		if err := w.Journal.FinishRun(ctx, w.Run.ID, status, message); err != nil {
			w.Logger.Warn("could not record run outcome", logging.Error(err))
		}
		w.Logger.Info("run finished",
			logging.String(logging.FieldRunID, w.Run.ID),
			logging.String("status", string(status)),
		)
	}
	w.release(w.Logger)
}

func (w *Workspace) release(logger *slog.Logger) {
	if w.Journal != nil {
		if err := w.Journal.Close(); err != nil {
			logger.Warn("close journal", logging.Error(err))
		}
		w.Journal = nil
	}
	if w.closeLog != nil {
		if err := w.closeLog(); err != nil {
			logger.Warn("close run log", logging.Error(err))
		}
		w.closeLog = nil
	}
	if err := w.lock.Unlock(); err != nil {
		logger.Warn("release work directory lock", logging.Error(err))
	}
}

// EncodeSource returns the source the journaled chunks were encoded from,
// or "" when no chunk record names a known run.
func (w *Workspace) EncodeSource(ctx context.Context) (string, error) {
	chunks, err := w.Journal.Chunks(ctx)
	if err != nil {
		return "", err
	}
	for i := len(chunks) - 1; i >= 0; i-- {
		if chunks[i].RunID == "" {
			continue
		}
		run, err := w.Journal.Run(ctx, chunks[i].RunID)
		if err != nil {
			return "", err
		}
		if run != nil {
			return run.SourcePath, nil
		}
	}
	return "", nil
}

// ForeignEncode reports the source of intermediates left by a run for a
// different source. It is empty when the encode belongs to this run's source
// or its origin is unknown.
func (w *Workspace) ForeignEncode(ctx context.Context) string {
	if w.Layout.ExistingEncode() == workdir.EncodeNone {
		return ""
	}
	owner, err := w.EncodeSource(ctx)
	if err != nil {
		w.Logger.Warn("could not read encode origin", logging.Error(err))
		return ""
	}
	if owner == "" || filepath.Clean(owner) == filepath.Clean(w.Run.SourcePath) {
		return ""
	}
	return owner
}

// DiscardEncode removes every intermediate file and forgets the chunk
// records.
func (w *Workspace) DiscardEncode(ctx context.Context, attempts int) error {
	files, err := w.Layout.Intermediates()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "encode", "reset", "", err)
	}
	workdir.RemoveFiles(ctx, files, attempts, 0, w.Logger)
	if err := w.Journal.ResetChunks(ctx); err != nil {
		return services.Wrap(services.ErrConfiguration, "encode", "reset", "clear chunk journal", err)
	}
	w.Logger.Info("discarded existing encode", logging.Int("files", len(files)))
	return nil
}

// RunStatusFor maps a pipeline error to the journal run status.
func RunStatusFor(err error) (journal.RunStatus, string) {
	switch {
	case err == nil:
		return journal.RunCompleted, ""
	case errors.Is(err, services.ErrCancelled), errors.Is(err, context.Canceled):
		return journal.RunCancelled, err.Error()
	default:
		return journal.RunFailed, err.Error()
	}
}
