package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestNewSlidingWindowCounter(t *testing.T) {
	t.Parallel()
	if NewSlidingWindowCounter(0, time.Hour) != nil {
		t.Error("expected nil (disabled) for maxRequests <= 0")
	}
	if NewSlidingWindowCounter(10, time.Hour) == nil {
		t.Error("expected non-nil counter for a positive limit")
	}
}

func TestSlidingWindowNilIsUnlimited(t *testing.T) {
	t.Parallel()
	var swc *SlidingWindowCounter

	if !swc.Allow() {
		t.Error("nil counter should allow everything")
	}
	if !swc.Check() {
		t.Error("nil Check() should pass")
	}
	swc.Consume() // must not panic
	if swc.IsFull() {
		t.Error("nil counter is never full")
	}
	if got := swc.GetRemaining(); got != -1 {
		t.Errorf("nil GetRemaining() = %d, want -1", got)
	}
	if got := swc.GetEffectiveCount(); got != 0 {
		t.Errorf("nil GetEffectiveCount() = %f, want 0", got)
	}
}

func TestSlidingWindowAllow(t *testing.T) {
	t.Parallel()
	swc := NewSlidingWindowCounter(5, time.Second)

	for i := 0; i < 5; i++ {
		if !swc.Allow() {
			t.Errorf("Allow() failed at request %d of 5", i+1)
		}
	}
	if swc.Allow() {
		t.Error("Allow() passed beyond the quota")
	}
}

func TestSlidingWindowRotation(t *testing.T) {
	t.Parallel()
	window := 50 * time.Millisecond
	swc := NewSlidingWindowCounter(10, window)

	for i := 0; i < 10; i++ {
		swc.Allow()
	}
	if swc.Allow() {
		t.Error("should be limited with the window spent")
	}

	// After one rotation the previous window's weight starts decaying,
	// so at least one request must fit.
	time.Sleep(window + 20*time.Millisecond)

	if !swc.Allow() {
		t.Error("should allow after window rotation")
	}
}

func TestSlidingWindowWeightedCount(t *testing.T) {
	t.Parallel()
	// Window 100ms, limit 10, all spent at T=0. After 150ms we are 50ms
	// into the second window, so half the previous spend still counts:
	// effective = 0 + 10×0.5 = 5, remaining = 5.
	window := 100 * time.Millisecond
	swc := NewSlidingWindowCounter(10, window)

	for i := 0; i < 10; i++ {
		swc.Allow()
	}

	time.Sleep(150 * time.Millisecond)

	remaining := swc.GetRemaining()
	if remaining < 4 || remaining > 6 {
		t.Errorf("GetRemaining() = %d, want ~5", remaining)
	}

	effective := swc.GetEffectiveCount()
	if effective < 4.0 || effective > 6.0 {
		t.Errorf("GetEffectiveCount() = %f, want ~5.0", effective)
	}
}

func TestSlidingWindowCheckConsume(t *testing.T) {
	t.Parallel()
	swc := NewSlidingWindowCounter(1, time.Minute)

	if !swc.Check() {
		t.Error("Check() should pass for an empty counter")
	}

	swc.Consume()

	if swc.Check() {
		t.Error("Check() should fail once the quota is spent")
	}
	if !swc.IsFull() {
		t.Error("IsFull() should report an exhausted quota")
	}
}

func TestSlidingWindowConcurrency(t *testing.T) {
	t.Parallel()
	limit := 100
	swc := NewSlidingWindowCounter(limit, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for range 200 {
		wg.Go(func() {
			if swc.Allow() {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	if successCount != limit {
		t.Errorf("allowed %d concurrent requests, want exactly %d", successCount, limit)
	}
}

func TestSlidingWindowMultiWindowGap(t *testing.T) {
	t.Parallel()
	window := 20 * time.Millisecond
	swc := NewSlidingWindowCounter(10, window)

	swc.Allow()

	// A gap longer than two windows leaves no spend to carry over.
	time.Sleep(65 * time.Millisecond)

	if got := swc.GetEffectiveCount(); got != 0 {
		t.Errorf("GetEffectiveCount() = %f after a multi-window gap, want 0", got)
	}
}
