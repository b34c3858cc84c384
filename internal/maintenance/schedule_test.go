package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/archive"
)

type fakeArchiveClient struct {
	mu              sync.Mutex
	exists          bool
	etagCounter     int
	etag            string
	body            []byte
	forceCreateRace bool
	matchFailCount  int
	downloadErrs    []error
	downloadCalls   int
	downloadHook    func()
}

func (f *fakeArchiveClient) Download(_ context.Context, _ string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downloadCalls++
	if f.downloadHook != nil {
		f.downloadHook()
	}
	if len(f.downloadErrs) > 0 {
		err := f.downloadErrs[0]
		f.downloadErrs = f.downloadErrs[1:]
		return nil, "", err
	}
	if !f.exists {
		return nil, "", archive.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.body)), f.etag, nil
}

func (f *fakeArchiveClient) PutObjectIfNotExists(_ context.Context, _ string, body io.Reader, _ string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forceCreateRace {
		f.forceCreateRace = false
		if !f.exists {
			f.exists = true
			f.body, _ = io.ReadAll(body)
			f.etagCounter++
			f.etag = "etag-" + strconv.Itoa(f.etagCounter)
		}
		return false, "", nil
	}
	if f.exists {
		return false, "", nil
	}
	f.body, _ = io.ReadAll(body)
	f.exists = true
	f.etagCounter++
	f.etag = "etag-" + strconv.Itoa(f.etagCounter)
	return true, f.etag, nil
}

func (f *fakeArchiveClient) PutObjectIfMatch(_ context.Context, _ string, body io.Reader, etag string, _ string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.exists || etag != f.etag {
		return false, "", nil
	}
	if f.matchFailCount > 0 {
		f.matchFailCount--
		return false, "", nil
	}
	f.body, _ = io.ReadAll(body)
	f.etagCounter++
	f.etag = "etag-" + strconv.Itoa(f.etagCounter)
	return true, f.etag, nil
}

func TestStateJSONRoundTrip(t *testing.T) {
	t.Parallel()

	state := State{LastHarvest: 123, LastCleanup: 456, UpdatedAt: 789}
	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded State
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != state {
		t.Fatalf("state mismatch: got %+v want %+v", decoded, state)
	}
}

func TestNewScheduleStoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewScheduleStore(nil, "key", time.Second); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewScheduleStore(&fakeArchiveClient{}, "", time.Second); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestScheduleStoreLoadNotFound(t *testing.T) {
	t.Parallel()

	store, err := NewScheduleStore(&fakeArchiveClient{}, "state/schedule.json", time.Second)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	state, etag, exists, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false")
	}
	if etag != "" {
		t.Fatalf("expected empty etag, got %q", etag)
	}
	if state != (State{}) {
		t.Fatalf("expected zero state, got %+v", state)
	}
}

func TestScheduleStoreEnsureRace(t *testing.T) {
	t.Parallel()

	client := &fakeArchiveClient{forceCreateRace: true}
	store, err := NewScheduleStore(client, "state/schedule.json", time.Second)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	state, etag, err := store.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if etag == "" {
		t.Fatal("expected etag from ensured object")
	}
	if state.UpdatedAt == 0 {
		t.Fatal("expected UpdatedAt to be set")
	}
}

func TestScheduleStoreUpdateWithRetry(t *testing.T) {
	t.Parallel()

	client := &fakeArchiveClient{exists: true, etag: "etag-1", matchFailCount: 1}
	initial := State{LastHarvest: 10, LastCleanup: 20, UpdatedAt: 30}
	data, err := json.Marshal(initial)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	client.body = data

	store, err := NewScheduleStore(client, "state/schedule.json", time.Second)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	err = store.Update(context.Background(), func(s *State) {
		s.LastHarvest = 99
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	loaded, _, err := store.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if loaded.LastHarvest != 99 {
		t.Fatalf("expected LastHarvest=99, got %d", loaded.LastHarvest)
	}
	if loaded.UpdatedAt == 0 {
		t.Fatal("expected UpdatedAt set")
	}
}

func TestScheduleStoreWithTimeout(t *testing.T) {
	t.Parallel()

	store, err := NewScheduleStore(&fakeArchiveClient{}, "state/schedule.json", time.Millisecond)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	ctx, cancel := store.withTimeout(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected deadline for positive timeout")
	}

	storeNoTimeout, err := NewScheduleStore(&fakeArchiveClient{}, "state/schedule.json", 0)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}
	ctxNoTimeout, cancelNoTimeout := storeNoTimeout.withTimeout(context.Background())
	defer cancelNoTimeout()
	if _, ok := ctxNoTimeout.Deadline(); ok {
		t.Fatal("did not expect deadline for zero timeout")
	}
}

func TestScheduleStoreLoadRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	client := &fakeArchiveClient{
		downloadErrs: []error{
			errors.New("boom-1"),
			errors.New("boom-2"),
			errors.New("boom-3"),
		},
	}
	store, err := NewScheduleStore(client, "state/schedule.json", time.Second)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	_, _, _, err = store.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if client.downloadCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.downloadCalls)
	}
}

func TestScheduleStoreLoadDoesNotRetryContextCanceled(t *testing.T) {
	t.Parallel()

	client := &fakeArchiveClient{
		downloadErrs: []error{context.Canceled},
	}
	store, err := NewScheduleStore(client, "state/schedule.json", time.Second)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	_, _, _, err = store.Load(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.downloadCalls != 1 {
		t.Fatalf("expected 1 attempt, got %d", client.downloadCalls)
	}
}

func TestScheduleStoreLoadStopsOnCanceledContextDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeArchiveClient{
		downloadErrs: []error{errors.New("temporary")},
		downloadHook: func() {
			cancel()
		},
	}
	store, err := NewScheduleStore(client, "state/schedule.json", time.Second)
	if err != nil {
		t.Fatalf("NewScheduleStore failed: %v", err)
	}

	_, _, _, err = store.Load(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.downloadCalls != 1 {
		t.Fatalf("expected 1 attempt, got %d", client.downloadCalls)
	}
}
