// Package snapshot moves the SQLite document cache between processes
// through object storage: harvest runners upload a compressed snapshot
// after each run, API servers poll the object's ETag and hot-swap their
// database when it changes. A leader lock elects at most one uploader
// when several servers also harvest on demand.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/archive"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// ErrNotFound indicates no snapshot object exists yet.
var ErrNotFound = errors.New("snapshot: not found")

// Config holds snapshot manager settings.
type Config struct {
	SnapshotKey  string        // object key of the snapshot, e.g. "snapshots/cache.db.zst"
	LockKey      string        // object key of the leader lock
	LockTTL      time.Duration // leader lock expiry
	PollInterval time.Duration // how often servers compare ETags
	TempDir      string        // scratch space for vacuum + compress
	OnSwap       func()        // called after every successful hot-swap
}

// Manager synchronizes the local cache DB with the snapshot object.
type Manager struct {
	client *archive.Client
	config Config

	mu          sync.RWMutex
	currentETag string

	pollCancel context.CancelFunc
	pollDone   chan struct{}

	leaderMu    sync.Mutex
	leaderLock  *archive.RunLock
	renewCancel context.CancelFunc
	renewDone   chan struct{}
}

// New creates a snapshot manager.
func New(client *archive.Client, cfg Config) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{
		client:   client,
		config:   cfg,
		pollDone: make(chan struct{}),
	}
}

// Download fetches and decompresses the latest snapshot into destDir.
// It returns the database path and the snapshot's ETag, or ErrNotFound
// when no snapshot has ever been uploaded.
func (m *Manager) Download(ctx context.Context, destDir string) (string, string, error) {
	body, etag, err := m.client.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	dbPath := filepath.Join(destDir, "cache.db")
	if err := archive.DecompressStream(body, dbPath); err != nil {
		os.Remove(dbPath)
		return "", "", fmt.Errorf("decompress snapshot: %w", err)
	}

	m.setETag(etag)
	return dbPath, etag, nil
}

// Upload vacuums the database into a scratch file, compresses it, and
// replaces the snapshot object. Returns the new ETag.
func (m *Manager) Upload(ctx context.Context, db *storage.DB) (string, error) {
	scratch := filepath.Join(m.config.TempDir, fmt.Sprintf("snapshot_%d.db", time.Now().UnixNano()))
	if err := db.VacuumInto(ctx, scratch); err != nil {
		return "", fmt.Errorf("vacuum into snapshot: %w", err)
	}
	defer os.Remove(scratch)

	compressed := scratch + ".zst"
	if err := archive.CompressFile(scratch, compressed); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	defer os.Remove(compressed)

	f, err := os.Open(compressed)
	if err != nil {
		return "", fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer f.Close()

	etag, err := m.client.Upload(ctx, m.config.SnapshotKey, f, "application/zstd")
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.setETag(etag)
	return etag, nil
}

// AcquireLeaderLock tries to become the uploading leader. On success a
// background goroutine renews the lock until ReleaseLeaderLock.
func (m *Manager) AcquireLeaderLock(ctx context.Context) (bool, error) {
	lock := archive.NewRunLock(m.client, m.config.LockKey, m.config.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		return acquired, err
	}

	m.leaderMu.Lock()
	if m.renewCancel != nil {
		m.renewCancel()
		if m.renewDone != nil {
			<-m.renewDone
		}
	}
	m.leaderLock = lock
	renewCtx, cancel := context.WithCancel(ctx)
	m.renewCancel = cancel
	m.renewDone = make(chan struct{})
	go m.renewLoop(renewCtx, lock, m.renewDone)
	m.leaderMu.Unlock()

	return true, nil
}

// ReleaseLeaderLock stops renewing and deletes the lock object.
func (m *Manager) ReleaseLeaderLock(ctx context.Context) error {
	m.leaderMu.Lock()
	lock := m.leaderLock
	cancel := m.renewCancel
	done := m.renewDone
	m.leaderLock = nil
	m.renewCancel = nil
	m.renewDone = nil
	m.leaderMu.Unlock()

	if cancel != nil {
		cancel()
		if done != nil {
			<-done
		}
	}
	if lock == nil {
		return nil
	}
	return lock.Release(ctx)
}

// StartPolling watches the snapshot object and hot-swaps hotSwapDB
// whenever the remote ETag changes. destDir receives the downloaded
// database files.
func (m *Manager) StartPolling(ctx context.Context, hotSwapDB *storage.HotSwapDB, destDir string) {
	pollCtx, cancel := context.WithCancel(ctx)
	m.pollCancel = cancel

	go func() {
		defer close(m.pollDone)

		ticker := time.NewTicker(m.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				slog.Info("Snapshot polling stopped")
				return
			case <-ticker.C:
				m.pollOnce(pollCtx, hotSwapDB, destDir)
			}
		}
	}()

	slog.Info("Snapshot polling started",
		"interval", m.config.PollInterval,
		"snapshot_key", m.config.SnapshotKey)
}

// StopPolling halts the polling goroutine and waits for it to exit.
func (m *Manager) StopPolling() {
	if m.pollCancel != nil {
		m.pollCancel()
		<-m.pollDone
	}
}

// pollOnce compares ETags and swaps in a changed snapshot.
func (m *Manager) pollOnce(ctx context.Context, hotSwapDB *storage.HotSwapDB, destDir string) {
	current := m.CurrentETag()

	remote, err := m.client.HeadObject(ctx, m.config.SnapshotKey)
	if err != nil {
		if !errors.Is(err, archive.ErrNotFound) {
			slog.Warn("Snapshot poll: head object failed", "error", err)
		}
		return
	}
	if remote == current {
		return
	}

	slog.Info("New snapshot detected, initiating hot-swap",
		"old_etag", current,
		"new_etag", remote)

	// Unique path per swap so draining connections keep their old file
	// while new ones open this one.
	newDbPath := filepath.Join(destDir, fmt.Sprintf("cache_%d.db", time.Now().UnixNano()))

	body, _, err := m.client.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		slog.Error("Snapshot poll: download failed", "error", err)
		return
	}
	defer body.Close()

	if err := archive.DecompressStream(body, newDbPath); err != nil {
		slog.Error("Snapshot poll: decompress failed", "error", err)
		os.Remove(newDbPath)
		return
	}

	if err := hotSwapDB.Swap(ctx, newDbPath); err != nil {
		slog.Error("Snapshot poll: hot-swap failed", "error", err)
		os.Remove(newDbPath)
		os.Remove(newDbPath + "-wal")
		os.Remove(newDbPath + "-shm")
		return
	}

	m.setETag(remote)
	if m.config.OnSwap != nil {
		m.config.OnSwap()
	}

	slog.Info("Hot-swap completed", "new_etag", remote)
}

func (m *Manager) renewLoop(ctx context.Context, lock *archive.RunLock, done chan struct{}) {
	defer close(done)

	interval := m.config.LockTTL / 3
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := lock.Renew(ctx)
			if err != nil {
				slog.Warn("Leader lock renew failed", "error", err)
				return
			}
			if !renewed {
				slog.Warn("Leader lock lost during renew")
				return
			}
		}
	}
}

// CurrentETag returns the ETag of the snapshot this process last saw.
func (m *Manager) CurrentETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentETag
}

// SetCurrentETag primes the ETag, used when booting from a local DB
// that is known to match a given snapshot.
func (m *Manager) SetCurrentETag(etag string) {
	m.setETag(etag)
}

func (m *Manager) setETag(etag string) {
	m.mu.Lock()
	m.currentETag = etag
	m.mu.Unlock()
}
