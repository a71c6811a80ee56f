package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bd3d/internal/logging"
	"bd3d/internal/services"
)

// RunStage executes fn as the named stage. Start, completion, and failure
// are logged with stage event types, and the journal records the stage when
// ws is not nil.
func RunStage(ctx context.Context, ws *Workspace, logger *slog.Logger, name string, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, logger)
	if ws != nil && ws.Journal != nil && ws.Run != nil {
		if err := ws.Journal.SetStage(stageCtx, ws.Run.ID, name); err != nil {
			stageLogger.Warn("could not record stage", logging.Error(err))
		}
	}

	started := time.Now()
	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := fn(stageCtx); err != nil {
		if errors.Is(err, services.ErrCancelled) || errors.Is(err, context.Canceled) {
			stageLogger.Warn("stage cancelled",
				logging.String(logging.FieldEventType, "stage_cancelled"),
				logging.Duration("elapsed", time.Since(started)),
			)
			return err
		}
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		return err
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrDependency):
		return "install the missing tools listed by `bd3d check`"
	case errors.Is(err, services.ErrConfiguration):
		return "review the configuration with `bd3d config show`"
	case errors.Is(err, services.ErrValidation):
		return "inspect bd3d.log in the work directory for the failing check"
	case errors.Is(err, services.ErrNotFound):
		return "verify the path exists"
	default:
		return "inspect the tool output in bd3d.log in the work directory"
	}
}
