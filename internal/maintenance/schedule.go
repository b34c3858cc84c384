// Package maintenance shares background-job scheduling state between
// processes through a single JSON object in the archive bucket. Every
// update is an ETag compare-and-swap, so concurrent runners and servers
// never clobber each other's timestamps.
package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/archive"
)

// State stores the last successful run timestamps, unix seconds.
type State struct {
	LastHarvest int64 `json:"last_harvest"`
	LastCleanup int64 `json:"last_cleanup"`
	UpdatedAt   int64 `json:"updated_at"`
}

type scheduleClient interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	PutObjectIfNotExists(ctx context.Context, key string, body io.Reader, contentType string) (bool, string, error)
	PutObjectIfMatch(ctx context.Context, key string, body io.Reader, etag string, contentType string) (bool, string, error)
}

// ScheduleStore persists the shared state object.
type ScheduleStore struct {
	client         scheduleClient
	key            string
	requestTimeout time.Duration
}

// NewScheduleStore creates a store on the given object key.
func NewScheduleStore(client scheduleClient, key string, requestTimeout time.Duration) (*ScheduleStore, error) {
	if client == nil {
		return nil, errors.New("maintenance: archive client is required")
	}
	if key == "" {
		return nil, errors.New("maintenance: schedule key is required")
	}
	return &ScheduleStore{client: client, key: key, requestTimeout: requestTimeout}, nil
}

// Load returns the current state and ETag. exists=false when the
// object is missing. Transient errors retry up to 3 times; context
// cancellation does not.
func (s *ScheduleStore) Load(ctx context.Context) (State, string, bool, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := range maxRetries {
		state, etag, exists, err := s.loadOnce(ctx)
		if err == nil {
			return state, etag, exists, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return State{}, "", false, err
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return State{}, "", false, ctx.Err()
			case <-time.After(100 * time.Millisecond * time.Duration(attempt+1)):
			}
		}
	}

	return State{}, "", false, lastErr
}

func (s *ScheduleStore) loadOnce(ctx context.Context) (State, string, bool, error) {
	readCtx, cancel := s.withTimeout(ctx)
	body, etag, err := s.client.Download(readCtx, s.key)
	if err != nil {
		cancel()
		if errors.Is(err, archive.ErrNotFound) {
			return State{}, "", false, nil
		}
		return State{}, "", false, fmt.Errorf("maintenance: download state: %w", err)
	}
	defer cancel()
	defer func() {
		_ = body.Close()
	}()

	var state State
	if err := json.NewDecoder(body).Decode(&state); err != nil {
		return State{}, "", false, fmt.Errorf("maintenance: decode state: %w", err)
	}
	return state, etag, true, nil
}

// Ensure returns the state and ETag, creating the object if needed.
// A create race against another node resolves by reloading.
func (s *ScheduleStore) Ensure(ctx context.Context) (State, string, error) {
	state, etag, exists, err := s.Load(ctx)
	if err != nil {
		return State{}, "", err
	}
	if exists {
		return state, etag, nil
	}

	state = State{UpdatedAt: time.Now().UTC().Unix()}
	data, err := json.Marshal(state)
	if err != nil {
		return State{}, "", fmt.Errorf("maintenance: marshal state: %w", err)
	}

	writeCtx, cancel := s.withTimeout(ctx)
	created, createdETag, err := s.client.PutObjectIfNotExists(writeCtx, s.key, bytes.NewReader(data), "application/json")
	cancel()
	if err != nil {
		return State{}, "", fmt.Errorf("maintenance: create state: %w", err)
	}
	if created {
		return state, createdETag, nil
	}

	state, etag, exists, err = s.Load(ctx)
	if err != nil {
		return State{}, "", err
	}
	if !exists {
		return State{}, "", errors.New("maintenance: state missing after create race")
	}
	return state, etag, nil
}

// Update applies updater under optimistic concurrency: load, mutate,
// If-Match write, retrying the whole cycle on a lost swap.
func (s *ScheduleStore) Update(ctx context.Context, updater func(*State)) error {
	for range 3 {
		state, etag, err := s.Ensure(ctx)
		if err != nil {
			return err
		}

		updater(&state)
		state.UpdatedAt = time.Now().UTC().Unix()

		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("maintenance: marshal state: %w", err)
		}

		writeCtx, cancel := s.withTimeout(ctx)
		updated, _, err := s.client.PutObjectIfMatch(writeCtx, s.key, bytes.NewReader(data), etag, "application/json")
		cancel()
		if err != nil {
			return fmt.Errorf("maintenance: update state: %w", err)
		}
		if updated {
			return nil
		}
	}

	return errors.New("maintenance: failed to update state after retries")
}

func (s *ScheduleStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}
