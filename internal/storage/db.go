package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite cache database. Writes go through a single
// connection so concurrent harvest batches never trip SQLITE_BUSY;
// reads use a separate pool. Both handles can be swapped in place when
// a fresh snapshot is downloaded.
type DB struct {
	mu       sync.RWMutex
	writer   *sql.DB
	reader   *sql.DB
	path     string
	cacheTTL time.Duration
	metrics  MetricsRecorder
}

// MetricsRecorder receives cache hit/miss signals from lookups.
type MetricsRecorder interface {
	RecordCacheHit(store string)
	RecordCacheMiss(store string)
}

// New opens the database at dbPath and initializes the schema.
// cacheTTL bounds how long cached documents stay servable.
func New(ctx context.Context, dbPath string, cacheTTL time.Duration) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := openPool(ctx, dbPath, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open writer connection: %w", err)
	}

	// Two :memory: opens would create two unrelated databases, so tests
	// share the writer handle for reads.
	reader := writer
	if dbPath != ":memory:" {
		reader, err = openPool(ctx, dbPath, 10)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("failed to open reader pool: %w", err)
		}
	}

	db := &DB{
		writer:   writer,
		reader:   reader,
		path:     dbPath,
		cacheTTL: cacheTTL,
	}

	if err := InitSchema(ctx, writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// openPool opens one connection pool and applies the session pragmas.
func openPool(ctx context.Context, dbPath string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(maxConns)
	pool.SetMaxIdleConns(maxConns)
	pool.SetConnMaxLifetime(time.Hour)

	// WAL persists in the file; the remaining pragmas are per-connection
	// and stick because the pools are capped.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := pool.ExecContext(ctx, pragma); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Close closes both connection pools.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var firstErr error
	if db.writer != nil {
		firstErr = db.writer.Close()
	}
	if db.reader != nil && db.reader != db.writer {
		if err := db.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.writer = nil
	db.reader = nil
	return firstErr
}

// Writer returns the single write connection.
func (db *DB) Writer() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writer
}

// Reader returns the read pool.
func (db *DB) Reader() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.reader
}

// Path returns the database file path.
func (db *DB) Path() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.path
}

// Ping checks both connection pools.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Writer().PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.Reader().PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Ready verifies the database can actually answer a query, not just
// accept connections.
func (db *DB) Ready(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return err
	}
	var n int
	if err := db.Reader().QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return fmt.Errorf("readiness query: %w", err)
	}
	return nil
}

// SwapConnections replaces this handle's pools with newDB's in place,
// so repositories holding the *DB keep working across a snapshot swap.
// Returns the old pools and path for the caller to close and clean up.
func (db *DB) SwapConnections(newDB *DB) (oldWriter, oldReader *sql.DB, oldPath string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	oldWriter, oldReader, oldPath = db.writer, db.reader, db.path
	db.writer = newDB.writer
	db.reader = newDB.reader
	db.path = newDB.path
	if oldReader == oldWriter {
		oldReader = nil
	}
	return oldWriter, oldReader, oldPath
}

// SetMetrics attaches a cache hit/miss recorder to lookups.
func (db *DB) SetMetrics(recorder MetricsRecorder) {
	db.metrics = recorder
}

// GetCacheTTL returns the configured cache TTL.
func (db *DB) GetCacheTTL() time.Duration {
	return db.cacheTTL
}

// ExecBatchContext runs fn with a prepared statement inside a single
// transaction on the writer. The transaction commits when fn returns
// nil and rolls back otherwise.
func (db *DB) ExecBatchContext(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare batch statement: %w", err)
	}

	if err := fn(stmt); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to close batch statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch transaction: %w", err)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file. Called before
// snapshotting so the copy is self-contained.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.Writer().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// VacuumInto writes a compact standalone copy of the database to path.
func (db *DB) VacuumInto(ctx context.Context, path string) error {
	if err := db.Checkpoint(ctx); err != nil {
		return err
	}
	if _, err := db.Writer().ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}

// getTTLTimestamp returns the Unix timestamp below which cached entries
// count as expired.
func (db *DB) getTTLTimestamp() int64 {
	return time.Now().Unix() - int64(db.cacheTTL.Seconds())
}

// CountExpiringDocuments counts cached documents older than softTTL but
// still within the hard TTL. The scheduler uses this to decide whether
// a proactive refresh is worth a run.
func (db *DB) CountExpiringDocuments(ctx context.Context, softTTL time.Duration) (int, error) {
	softTimestamp := time.Now().Unix() - int64(softTTL.Seconds())
	hardTimestamp := db.getTTLTimestamp()

	query := `SELECT COUNT(*) FROM documents WHERE cached_at <= ? AND cached_at > ?`
	var count int
	if err := db.Reader().QueryRowContext(ctx, query, softTimestamp, hardTimestamp).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count expiring documents: %w", err)
	}
	return count, nil
}

// NewTestDB creates an in-memory database for testing with a 24h TTL.
func NewTestDB() (*DB, error) {
	return New(context.Background(), ":memory:", 24*time.Hour)
}
