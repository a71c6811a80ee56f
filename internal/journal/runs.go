package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = "id, source_path, output_path, status, stage, error_message, started_at, updated_at, finished_at"

// StartRun records a new running conversion of source.
func (j *Journal) StartRun(ctx context.Context, source string) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:         uuid.NewString(),
		SourcePath: source,
		Status:     RunRunning,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := j.exec(ctx,
		`INSERT INTO runs (id, source_path, status, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SourcePath, run.Status, formatTime(now), formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// SetStage records the stage a run has entered.
func (j *Journal) SetStage(ctx context.Context, runID, stage string) error {
	return j.updateRun(ctx, runID, "stage = ?", stage)
}

// SetOutput records the output path of a run.
func (j *Journal) SetOutput(ctx context.Context, runID, output string) error {
	return j.updateRun(ctx, runID, "output_path = ?", output)
}

// FinishRun moves a run to a terminal status.
func (j *Journal) FinishRun(ctx context.Context, runID string, status RunStatus, message string) error {
	now := formatTime(time.Now())
	res, err := j.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), now, now, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, runID)
}

func (j *Journal) updateRun(ctx context.Context, runID, assignment string, value any) error {
	res, err := j.exec(ctx,
		`UPDATE runs SET `+assignment+`, updated_at = ? WHERE id = ?`,
		value, formatTime(time.Now()), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return requireRow(res, runID)
}

func requireRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Run fetches a run by ID. It returns nil when absent.
func (j *Journal) Run(ctx context.Context, runID string) (*Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Runs lists runs newest first. limit <= 0 lists all.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// AbandonRunning marks runs left in the running state by a crashed process
// as failed and returns how many were updated.
func (j *Journal) AbandonRunning(ctx context.Context, reason string) (int64, error) {
	now := formatTime(time.Now())
	res, err := j.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE status = ?`,
		RunFailed, nullableString(reason), now, now, RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("abandon runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		status     string
		output     sql.NullString
		stage      sql.NullString
		errMessage sql.NullString
		started    sql.NullString
		updated    sql.NullString
		finished   sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.SourcePath, &output, &status, &stage, &errMessage, &started, &updated, &finished); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.OutputPath = output.String
	run.Stage = stage.String
	run.ErrorMessage = errMessage.String
	run.StartedAt = parseTime(started)
	run.UpdatedAt = parseTime(updated)
	if finished.Valid {
		t := parseTime(finished)
		run.FinishedAt = &t
	}
	return &run, nil
}
