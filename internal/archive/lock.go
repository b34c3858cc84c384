package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LockInfo is the JSON body of the lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RunLock serializes harvest runs across runners through a conditional
// write on a single lock object. A crashed runner's lock becomes
// stealable once its TTL passes, so an orphaned lock never wedges the
// schedule for good.
type RunLock struct {
	client  *Client
	key     string
	ttl     time.Duration
	ownerID string
	etag    string // etag of the lock we hold, empty when unheld
}

// NewRunLock builds a lock on the given object key.
func NewRunLock(client *Client, key string, ttl time.Duration) *RunLock {
	return &RunLock{
		client:  client,
		key:     key,
		ttl:     ttl,
		ownerID: uuid.New().String(),
	}
}

// Acquire tries to take the lock. It reports (true, nil) on success and
// (false, nil) when another live runner holds it; an expired lock is
// stolen with an If-Match swap so two stealers cannot both win.
func (l *RunLock) Acquire(ctx context.Context) (bool, error) {
	data, err := l.marshalInfo()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	created, etag, err := l.client.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(data), "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	expired, oldEtag, err := l.checkExpired(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock: check expired: %w", err)
	}
	if !expired {
		return false, nil
	}

	stolen, newEtag, err := l.steal(ctx, oldEtag)
	if err != nil {
		return false, fmt.Errorf("acquire lock: steal: %w", err)
	}
	if stolen {
		l.etag = newEtag
		return true, nil
	}
	return false, nil
}

// Renew extends the TTL while we still hold the lock. It reports
// (false, nil) when the lock was lost, which callers must treat as a
// demand to stop writing shared state.
func (l *RunLock) Renew(ctx context.Context) (bool, error) {
	if l.etag == "" {
		return false, nil
	}

	data, err := l.marshalInfo()
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}

	updated, newEtag, err := l.client.PutObjectIfMatch(ctx, l.key, bytes.NewReader(data), l.etag, "application/json")
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	if !updated {
		return false, nil
	}

	l.etag = newEtag
	return true, nil
}

// Release deletes the lock object if we still own it. Releasing a lock
// that expired and was stolen is a no-op.
func (l *RunLock) Release(ctx context.Context) error {
	body, _, err := l.client.Download(ctx, l.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("release lock: verify: %w", err)
	}

	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("release lock: read: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		// Corrupt lock body, clear it.
		return l.client.DeleteObject(ctx, l.key)
	}
	if info.Owner != l.ownerID {
		return nil
	}
	return l.client.DeleteObject(ctx, l.key)
}

// OwnerID returns this instance's unique owner identifier.
func (l *RunLock) OwnerID() string {
	return l.ownerID
}

func (l *RunLock) marshalInfo() ([]byte, error) {
	info := LockInfo{
		Owner:     l.ownerID,
		ExpiresAt: time.Now().Add(l.ttl),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal lock info: %w", err)
	}
	return data, nil
}

// checkExpired reads the current lock body and reports whether it has
// expired, along with the ETag needed to steal it.
func (l *RunLock) checkExpired(ctx context.Context) (bool, string, error) {
	body, etag, err := l.client.Download(ctx, l.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Deleted between our create attempt and now.
			return true, "", nil
		}
		return false, "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return false, "", fmt.Errorf("read lock: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		// Unreadable lock counts as expired.
		return true, etag, nil
	}
	return time.Now().After(info.ExpiresAt), etag, nil
}

// steal swaps an expired lock for ours, conditional on the old ETag.
func (l *RunLock) steal(ctx context.Context, oldEtag string) (bool, string, error) {
	data, err := l.marshalInfo()
	if err != nil {
		return false, "", err
	}
	if oldEtag == "" {
		// Lock object vanished; race for the vacant key instead.
		return l.client.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(data), "application/json")
	}
	return l.client.PutObjectIfMatch(ctx, l.key, bytes.NewReader(data), oldEtag, "application/json")
}
