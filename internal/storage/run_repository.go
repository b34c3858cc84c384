package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
)

// SaveRunSummary inserts or updates one harvest run summary. The
// scheduler writes the row once at start (status running) and again at
// the end with final counters.
func (db *DB) SaveRunSummary(ctx context.Context, run *RunSummary) error {
	periods, err := json.Marshal(run.Periods)
	if err != nil {
		return fmt.Errorf("failed to marshal run periods: %w", err)
	}

	query := `
		INSERT INTO harvest_runs (id, started_at, finished_at, periods, total_cedulas,
			fetched, cache_hits, empty, failed, rows_emitted, status, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			periods = excluded.periods,
			total_cedulas = excluded.total_cedulas,
			fetched = excluded.fetched,
			cache_hits = excluded.cache_hits,
			empty = excluded.empty,
			failed = excluded.failed,
			rows_emitted = excluded.rows_emitted,
			status = excluded.status,
			last_error = excluded.last_error
	`
	_, err = db.Writer().ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		nullInt64(run.FinishedAt),
		string(periods),
		run.TotalCedulas,
		run.Fetched,
		run.CacheHits,
		run.Empty,
		run.Failed,
		run.RowsEmitted,
		run.Status,
		nullString(run.LastError),
	)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// GetRunSummary retrieves one run by id.
func (db *DB) GetRunSummary(ctx context.Context, id string) (*RunSummary, error) {
	query := `SELECT id, started_at, finished_at, periods, total_cedulas,
			fetched, cache_hits, empty, failed, rows_emitted, status, last_error
		FROM harvest_runs WHERE id = ?`

	run, err := scanRunSummary(db.Reader().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}
	return run, nil
}

// ListRunSummaries returns the most recent runs, newest first.
func (db *DB) ListRunSummaries(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, started_at, finished_at, periods, total_cedulas,
			fetched, cache_hits, empty, failed, rows_emitted, status, last_error
		FROM harvest_runs ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := db.Reader().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// PruneRunSummaries keeps the newest keep runs and deletes the rest.
// Returns the number of deleted rows.
func (db *DB) PruneRunSummaries(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `DELETE FROM harvest_runs WHERE id NOT IN (
		SELECT id FROM harvest_runs ORDER BY started_at DESC, id DESC LIMIT ?)`

	result, err := db.Writer().ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune run summaries: %w", err)
	}
	return result.RowsAffected()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunSummary(row rowScanner) (*RunSummary, error) {
	var run RunSummary
	var finishedAt sql.NullInt64
	var periods string
	var lastError sql.NullString

	if err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&finishedAt,
		&periods,
		&run.TotalCedulas,
		&run.Fetched,
		&run.CacheHits,
		&run.Empty,
		&run.Failed,
		&run.RowsEmitted,
		&run.Status,
		&lastError,
	); err != nil {
		return nil, err
	}

	run.FinishedAt = finishedAt.Int64
	run.LastError = lastError.String
	if err := json.Unmarshal([]byte(periods), &run.Periods); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run periods: %w", err)
	}
	return &run, nil
}

// nullInt64 converts a zero value to sql.NullInt64.
func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// RunDuration reports the run's wall time, zero while still running.
func (r RunSummary) RunDuration() time.Duration {
	if r.FinishedAt == 0 {
		return 0
	}
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Second
}
