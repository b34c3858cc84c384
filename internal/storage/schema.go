package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all tables and indexes.
// Note: WAL mode is configured in db.go when the pools open.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createDocumentsTable(ctx, db); err != nil {
		return err
	}
	if err := createSheetMetaTable(ctx, db); err != nil {
		return err
	}
	return createHarvestRunsTable(ctx, db)
}

// createDocumentsTable holds one parsed assignment document per
// (cedula, periodo) pair. The payload column is the full document as
// JSON; nombre and unidad are denormalized for directory search, with
// nombre_fold as the lowercased accent-folded form LIKE queries run on.
func createDocumentsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		cedula TEXT NOT NULL,
		periodo TEXT NOT NULL,
		nombre TEXT,
		nombre_fold TEXT,
		unidad TEXT,
		payload TEXT NOT NULL,
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (cedula, periodo)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_periodo ON documents(periodo);
	CREATE INDEX IF NOT EXISTS idx_documents_nombre_fold ON documents(nombre_fold);
	CREATE INDEX IF NOT EXISTS idx_documents_cached_at ON documents(cached_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	return nil
}

// createSheetMetaTable caches spreadsheet tab metadata so flushes skip
// one metadata round-trip per period sheet.
func createSheetMetaTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sheet_meta (
		spreadsheet_id TEXT NOT NULL,
		title TEXT NOT NULL,
		sheet_id INTEGER NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (spreadsheet_id, title)
	);
	CREATE INDEX IF NOT EXISTS idx_sheet_meta_cached_at ON sheet_meta(cached_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create sheet_meta table: %w", err)
	}

	return nil
}

// createHarvestRunsTable keeps one summary row per harvest run for the
// runs API and the scheduler's last-run checks.
func createHarvestRunsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS harvest_runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		periods TEXT NOT NULL,
		total_cedulas INTEGER NOT NULL DEFAULT 0,
		fetched INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		empty INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		rows_emitted INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed')),
		last_error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_harvest_runs_started_at ON harvest_runs(started_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create harvest_runs table: %w", err)
	}

	return nil
}
