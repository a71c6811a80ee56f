package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const chunkColumns = "chunk_index, run_id, start_frame, frame_count, status, base_bytes, dep_bytes, error_message, updated_at"

// RecordChunk stores the state of a chunk, replacing any previous record
// for the same index.
func (j *Journal) RecordChunk(ctx context.Context, chunk Chunk) error {
	if chunk.Status == "" {
		chunk.Status = ChunkPending
	}
	_, err := j.exec(ctx,
		`INSERT INTO chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(chunk_index) DO UPDATE SET
            run_id = excluded.run_id,
            start_frame = excluded.start_frame,
            frame_count = excluded.frame_count,
            status = excluded.status,
            base_bytes = excluded.base_bytes,
            dep_bytes = excluded.dep_bytes,
            error_message = excluded.error_message,
            updated_at = excluded.updated_at`,
		chunk.Index,
		nullableString(chunk.RunID),
		chunk.StartFrame,
		chunk.FrameCount,
		chunk.Status,
		chunk.BaseBytes,
		chunk.DepBytes,
		nullableString(chunk.ErrorMessage),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// Chunk fetches the record for index. It returns nil when absent.
func (j *Journal) Chunk(ctx context.Context, index int) (*Chunk, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE chunk_index = ?`, index)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return chunk, nil
}

// Chunks lists every chunk record ordered by index.
func (j *Journal) Chunks(ctx context.Context) ([]Chunk, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks ORDER BY chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

// ResetChunks forgets every chunk record, used when encoding starts over.
func (j *Journal) ResetChunks(ctx context.Context) error {
	if _, err := j.exec(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("reset chunks: %w", err)
	}
	return nil
}

// DeleteChunksFrom forgets the records of every chunk whose index is at
// least first and returns how many were removed.
func (j *Journal) DeleteChunksFrom(ctx context.Context, first int) (int64, error) {
	res, err := j.exec(ctx, `DELETE FROM chunks WHERE chunk_index >= ?`, first)
	if err != nil {
		return 0, fmt.Errorf("delete chunks from %d: %w", first, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chunks from %d: %w", first, err)
	}
	return n, nil
}

// ChunkCounts tallies chunk records by status.
func (j *Journal) ChunkCounts(ctx context.Context) (map[ChunkStatus]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM chunks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[ChunkStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan chunk count: %w", err)
		}
		counts[ChunkStatus(status)] = count
	}
	return counts, rows.Err()
}

func scanChunk(scanner interface{ Scan(dest ...any) error }) (*Chunk, error) {
	var (
		chunk      Chunk
		runID      sql.NullString
		status     string
		errMessage sql.NullString
		updated    sql.NullString
	)
	if err := scanner.Scan(
		&chunk.Index,
		&runID,
		&chunk.StartFrame,
		&chunk.FrameCount,
		&status,
		&chunk.BaseBytes,
		&chunk.DepBytes,
		&errMessage,
		&updated,
	); err != nil {
		return nil, err
	}
	chunk.RunID = runID.String
	chunk.Status = ChunkStatus(status)
	chunk.ErrorMessage = errMessage.String
	chunk.UpdatedAt = parseTime(updated)
	return &chunk, nil
}
