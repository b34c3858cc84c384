package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/stringutil"
)

// SaveDocument inserts or updates one parsed document.
func (db *DB) SaveDocument(ctx context.Context, doc *asignacion.FacultyDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	nombre := doc.Personal.FullName()
	query := `
		INSERT INTO documents (cedula, periodo, nombre, nombre_fold, unidad, payload, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cedula, periodo) DO UPDATE SET
			nombre = excluded.nombre,
			nombre_fold = excluded.nombre_fold,
			unidad = excluded.unidad,
			payload = excluded.payload,
			cached_at = excluded.cached_at
	`
	start := time.Now()
	_, err = db.Writer().ExecContext(ctx, query,
		doc.Cedula,
		doc.Period.Label,
		nullString(nombre),
		nullString(stringutil.NormalizeQuery(nombre)),
		nullString(doc.Personal.UnidadAcademica),
		string(payload),
		time.Now().Unix(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save document",
			"cedula", doc.Cedula,
			"periodo", doc.Period.Label,
			"error", err)
		return fmt.Errorf("failed to save document: %w", err)
	}

	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveDocument",
			"duration_ms", duration.Milliseconds(),
			"cedula", doc.Cedula)
	}
	return nil
}

// SaveDocumentsBatch inserts or updates multiple documents in a single
// transaction. Harvest runs write per-cedula batches through here to
// keep lock contention down.
func (db *DB) SaveDocumentsBatch(ctx context.Context, docs []*asignacion.FacultyDocument) error {
	if len(docs) == 0 {
		return nil
	}

	query := `
		INSERT INTO documents (cedula, periodo, nombre, nombre_fold, unidad, payload, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cedula, periodo) DO UPDATE SET
			nombre = excluded.nombre,
			nombre_fold = excluded.nombre_fold,
			unidad = excluded.unidad,
			payload = excluded.payload,
			cached_at = excluded.cached_at
	`

	start := time.Now()
	cachedAt := time.Now().Unix()
	err := db.ExecBatchContext(ctx, query, func(stmt *sql.Stmt) error {
		for _, doc := range docs {
			payload, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to marshal document %s/%s: %w", doc.Cedula, doc.Period.Label, err)
			}
			nombre := doc.Personal.FullName()
			if _, err := stmt.ExecContext(ctx,
				doc.Cedula,
				doc.Period.Label,
				nullString(nombre),
				nullString(stringutil.NormalizeQuery(nombre)),
				nullString(doc.Personal.UnidadAcademica),
				string(payload),
				cachedAt,
			); err != nil {
				return fmt.Errorf("failed to save document %s/%s: %w", doc.Cedula, doc.Period.Label, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	duration := time.Since(start)
	slog.DebugContext(ctx, "batch operation completed",
		"operation", "SaveDocumentsBatch",
		"count", len(docs),
		"duration_ms", duration.Milliseconds())

	if duration > 500*time.Millisecond {
		slog.WarnContext(ctx, "slow batch operation",
			"operation", "SaveDocumentsBatch",
			"count", len(docs),
			"duration_ms", duration.Milliseconds())
	}

	return nil
}

// GetDocument retrieves one cached document and validates freshness.
// Returns (nil, nil) on miss or expiry so callers fall through to the
// portal.
func (db *DB) GetDocument(ctx context.Context, cedula, periodo string) (*asignacion.FacultyDocument, error) {
	query := `SELECT payload, cached_at FROM documents WHERE cedula = ? AND periodo = ?`

	var payload string
	var cachedAt int64
	err := db.Reader().QueryRowContext(ctx, query, cedula, periodo).Scan(&payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		db.recordMiss("document")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if cachedAt <= db.getTTLTimestamp() {
		db.recordMiss("document")
		return nil, nil
	}

	var doc asignacion.FacultyDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", cedula, periodo, err)
	}

	db.recordHit("document")
	return &doc, nil
}

// GetDocumentsByCedula retrieves all fresh documents for one professor,
// newest period first.
func (db *DB) GetDocumentsByCedula(ctx context.Context, cedula string) ([]*asignacion.FacultyDocument, error) {
	query := `SELECT payload FROM documents
		WHERE cedula = ? AND cached_at > ?
		ORDER BY periodo DESC`

	rows, err := db.Reader().QueryContext(ctx, query, cedula, db.getTTLTimestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to get documents by cedula: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDocumentPayloads(rows)
}

// GetDocumentsByPeriodo retrieves all fresh documents for one period.
func (db *DB) GetDocumentsByPeriodo(ctx context.Context, periodo string) ([]*asignacion.FacultyDocument, error) {
	query := `SELECT payload FROM documents
		WHERE periodo = ? AND cached_at > ?
		ORDER BY cedula`

	rows, err := db.Reader().QueryContext(ctx, query, periodo, db.getTTLTimestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to get documents by periodo: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDocumentPayloads(rows)
}

// GetAllDocuments retrieves every fresh document. The search index
// builds from this on startup and after each harvest.
func (db *DB) GetAllDocuments(ctx context.Context) ([]*asignacion.FacultyDocument, error) {
	query := `SELECT payload FROM documents
		WHERE cached_at > ?
		ORDER BY periodo DESC, cedula`

	rows, err := db.Reader().QueryContext(ctx, query, db.getTTLTimestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to get all documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDocumentPayloads(rows)
}

// SearchDocumentsByName searches documents by professor name (max 200
// results). Query and stored names are both accent-folded, so "garcia"
// finds "GARCÍA".
func (db *DB) SearchDocumentsByName(ctx context.Context, name string) ([]Document, error) {
	if len(name) > 100 {
		return nil, errors.New("search term too long")
	}

	sanitized := sanitizeSearchTerm(stringutil.NormalizeQuery(name))
	query := `SELECT cedula, periodo, nombre, unidad, cached_at
		FROM documents
		WHERE nombre_fold LIKE ? ESCAPE '\' AND cached_at > ?
		ORDER BY nombre, periodo DESC LIMIT 200`

	rows, err := db.Reader().QueryContext(ctx, query, "%"+sanitized+"%", db.getTTLTimestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to search documents by name: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Document
	for rows.Next() {
		var meta Document
		var nombre, unidad sql.NullString
		if err := rows.Scan(&meta.Cedula, &meta.Periodo, &nombre, &unidad, &meta.CachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		meta.Nombre = nombre.String
		meta.Unidad = unidad.String
		results = append(results, meta)
	}

	return results, rows.Err()
}

// PeriodoCounts returns the fresh document count per period label,
// newest first.
func (db *DB) PeriodoCounts(ctx context.Context) ([]PeriodoCount, error) {
	query := `SELECT periodo, COUNT(*) FROM documents
		WHERE cached_at > ?
		GROUP BY periodo ORDER BY periodo DESC`

	rows, err := db.Reader().QueryContext(ctx, query, db.getTTLTimestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to count documents by periodo: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []PeriodoCount
	for rows.Next() {
		var pc PeriodoCount
		if err := rows.Scan(&pc.Periodo, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan periodo count: %w", err)
		}
		counts = append(counts, pc)
	}

	return counts, rows.Err()
}

// DeleteExpiredDocuments removes documents older than the specified TTL.
// Returns the number of deleted entries.
func (db *DB) DeleteExpiredDocuments(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `DELETE FROM documents WHERE cached_at < ?`
	expiryTime := time.Now().Add(-ttl).Unix()

	result, err := db.Writer().ExecContext(ctx, query, expiryTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired documents: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for documents: %w", err)
	}
	return rowsAffected, nil
}

// CountDocuments returns the number of fresh documents.
func (db *DB) CountDocuments(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM documents WHERE cached_at > ?`

	var count int
	if err := db.Reader().QueryRowContext(ctx, query, db.getTTLTimestamp()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// SaveSheetMeta inserts or updates one spreadsheet tab's metadata.
func (db *DB) SaveSheetMeta(ctx context.Context, meta *SheetMeta) error {
	query := `
		INSERT INTO sheet_meta (spreadsheet_id, title, sheet_id, row_count, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(spreadsheet_id, title) DO UPDATE SET
			sheet_id = excluded.sheet_id,
			row_count = excluded.row_count,
			cached_at = excluded.cached_at
	`
	_, err := db.Writer().ExecContext(ctx, query,
		meta.SpreadsheetID,
		meta.Title,
		meta.SheetID,
		meta.RowCount,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save sheet meta: %w", err)
	}
	return nil
}

// GetSheetMeta retrieves one tab's cached metadata. Sheet metadata has
// its own short TTL, passed by the caller, since tabs can be renamed or
// deleted behind our back. Returns (nil, nil) on miss or expiry.
func (db *DB) GetSheetMeta(ctx context.Context, spreadsheetID, title string, ttl time.Duration) (*SheetMeta, error) {
	query := `SELECT spreadsheet_id, title, sheet_id, row_count, cached_at
		FROM sheet_meta WHERE spreadsheet_id = ? AND title = ?`

	var meta SheetMeta
	err := db.Reader().QueryRowContext(ctx, query, spreadsheetID, title).Scan(
		&meta.SpreadsheetID,
		&meta.Title,
		&meta.SheetID,
		&meta.RowCount,
		&meta.CachedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		db.recordMiss("sheet_meta")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet meta: %w", err)
	}

	if meta.CachedAt+int64(ttl.Seconds()) <= time.Now().Unix() {
		db.recordMiss("sheet_meta")
		return nil, nil
	}

	db.recordHit("sheet_meta")
	return &meta, nil
}

// DeleteSheetMeta drops all cached tab metadata for one spreadsheet.
// Called after structural sheet changes so the next flush re-reads.
func (db *DB) DeleteSheetMeta(ctx context.Context, spreadsheetID string) error {
	query := `DELETE FROM sheet_meta WHERE spreadsheet_id = ?`
	if _, err := db.Writer().ExecContext(ctx, query, spreadsheetID); err != nil {
		return fmt.Errorf("failed to delete sheet meta: %w", err)
	}
	return nil
}

// Helper functions

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// scanDocumentPayloads unmarshals payload-only document rows.
func scanDocumentPayloads(rows *sql.Rows) ([]*asignacion.FacultyDocument, error) {
	var docs []*asignacion.FacultyDocument

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		var doc asignacion.FacultyDocument
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

func (db *DB) recordHit(store string) {
	if db.metrics != nil {
		db.metrics.RecordCacheHit(store)
	}
}

func (db *DB) recordMiss(store string) {
	if db.metrics != nil {
		db.metrics.RecordCacheMiss(store)
	}
}
