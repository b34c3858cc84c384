package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter enforces a rolling-window quota in O(1) space.
// It keeps counts for the current and previous fixed windows and
// weights the previous count by how much of it still overlaps the
// rolling window:
//
//	effective = curr + prev × (remaining fraction of current window)
//
// The keyed limiter uses it for per-client daily quotas: a client that
// spent 80 of 100 requests yesterday morning still sees most of that
// spend counted against it just after midnight, instead of a fresh
// bucket at an arbitrary boundary.
//
// A nil *SlidingWindowCounter is a valid, disabled counter; every
// method treats nil as "no limit".
type SlidingWindowCounter struct {
	mu              sync.Mutex
	currCount       int
	prevCount       int
	currWindowStart time.Time
	windowDuration  time.Duration
	maxRequests     int
}

// NewSlidingWindowCounter creates a counter allowing maxRequests per
// windowDuration. Returns nil (disabled) if maxRequests <= 0.
func NewSlidingWindowCounter(maxRequests int, windowDuration time.Duration) *SlidingWindowCounter {
	if maxRequests <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		currWindowStart: time.Now(),
		windowDuration:  windowDuration,
		maxRequests:     maxRequests,
	}
}

// Allow reports whether a request fits the quota, counting it when it
// does.
func (swc *SlidingWindowCounter) Allow() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.maybeRotateWindow()

	if swc.calculateWeightedCount() >= float64(swc.maxRequests) {
		return false
	}

	swc.currCount++
	return true
}

// Check reports whether a request would fit without counting it.
// Pair with Consume under an external lock for multi-layer checks.
func (swc *SlidingWindowCounter) Check() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.maybeRotateWindow()

	return swc.calculateWeightedCount() < float64(swc.maxRequests)
}

// Consume counts one request after a passing Check.
func (swc *SlidingWindowCounter) Consume() {
	if swc == nil {
		return
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.maybeRotateWindow()

	if swc.calculateWeightedCount() < float64(swc.maxRequests) {
		swc.currCount++
	}
}

// maybeRotateWindow shifts to a new fixed window when the current one
// has expired. Must be called with mu held.
func (swc *SlidingWindowCounter) maybeRotateWindow() {
	elapsed := time.Since(swc.currWindowStart)

	if elapsed >= swc.windowDuration {
		windowsPassed := int(elapsed / swc.windowDuration)

		if windowsPassed == 1 {
			swc.prevCount = swc.currCount
		} else {
			// A gap of more than one window leaves nothing to carry over.
			swc.prevCount = 0
		}

		swc.currCount = 0
		swc.currWindowStart = swc.currWindowStart.Add(time.Duration(windowsPassed) * swc.windowDuration)
	}
}

// calculateWeightedCount returns the rolling-window count.
// Must be called with mu held.
func (swc *SlidingWindowCounter) calculateWeightedCount() float64 {
	elapsed := time.Since(swc.currWindowStart)

	overlapRatio := float64(swc.windowDuration-elapsed) / float64(swc.windowDuration)
	if overlapRatio < 0 {
		overlapRatio = 0
	}
	if overlapRatio > 1 {
		overlapRatio = 1
	}

	return float64(swc.currCount) + float64(swc.prevCount)*overlapRatio
}

// GetEffectiveCount returns the current weighted count, for monitoring
// and idle-entry eviction.
func (swc *SlidingWindowCounter) GetEffectiveCount() float64 {
	if swc == nil {
		return 0
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.maybeRotateWindow()
	return swc.calculateWeightedCount()
}

// GetRemaining returns the approximate remaining quota, or -1 when the
// counter is disabled.
func (swc *SlidingWindowCounter) GetRemaining() int {
	if swc == nil {
		return -1
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.maybeRotateWindow()
	remaining := float64(swc.maxRequests) - swc.calculateWeightedCount()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// IsFull reports whether the quota is currently exhausted.
func (swc *SlidingWindowCounter) IsFull() bool {
	if swc == nil {
		return false
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.maybeRotateWindow()
	return swc.calculateWeightedCount() >= float64(swc.maxRequests)
}
