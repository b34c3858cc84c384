package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// HotSwapDB wraps a DB so a freshly downloaded snapshot can replace the
// live database without restarting. The *DB handle itself is stable;
// Swap exchanges its connection pools in place, and in-flight queries
// finish on the old pools before those close.
type HotSwapDB struct {
	mu       sync.RWMutex
	current  *DB
	cacheTTL time.Duration
}

// NewHotSwapDB opens the initial database at dbPath.
func NewHotSwapDB(ctx context.Context, dbPath string, cacheTTL time.Duration) (*HotSwapDB, error) {
	db, err := New(ctx, dbPath, cacheTTL)
	if err != nil {
		return nil, fmt.Errorf("hotswap: create initial db: %w", err)
	}

	return &HotSwapDB{
		current:  db,
		cacheTTL: cacheTTL,
	}, nil
}

// DB returns the stable database handle.
func (h *HotSwapDB) DB() *DB {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Swap replaces the current database with the one at newDbPath.
//
// Swap process:
//  1. Open and validate the new database
//  2. Exchange the connection pools in place on the stable handle
//  3. Close the old pools asynchronously after a grace period
//  4. Remove the old database files once nothing references them
func (h *HotSwapDB) Swap(ctx context.Context, newDbPath string) error {
	newDB, err := New(ctx, newDbPath, h.cacheTTL)
	if err != nil {
		return fmt.Errorf("hotswap: open new db: %w", err)
	}

	if err := newDB.Ready(ctx); err != nil {
		_ = newDB.Close()
		return fmt.Errorf("hotswap: validate new db: %w", err)
	}

	h.mu.Lock()
	oldWriter, oldReader, oldPath := h.current.SwapConnections(newDB)
	h.mu.Unlock()

	// Grace period lets queries that grabbed the old pools finish.
	go func() {
		time.Sleep(5 * time.Second)
		if oldReader != nil {
			_ = oldReader.Close()
		}
		if oldWriter != nil {
			_ = oldWriter.Close()
		}

		currentPath := h.Path()
		if oldPath != currentPath && oldPath != ":memory:" {
			_ = os.Remove(oldPath)
			_ = os.Remove(oldPath + "-wal")
			_ = os.Remove(oldPath + "-shm")
		}
	}()

	return nil
}

// Path returns the current database file path.
func (h *HotSwapDB) Path() string {
	h.mu.RLock()
	current := h.current
	h.mu.RUnlock()
	return current.Path()
}

// Close closes the current database.
func (h *HotSwapDB) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		return h.current.Close()
	}
	return nil
}

// Ping checks the current database is accessible.
func (h *HotSwapDB) Ping(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Ping(ctx)
}
