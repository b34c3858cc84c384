package harvest

import (
	"sync/atomic"
	"time"
)

// ReadinessState tracks whether the server finished its initial cache
// load (snapshot download or first harvest). Thread-safe for concurrent
// reads after construction; the ready flag is atomic, startTime and
// timeout are immutable.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	timeout   time.Duration
}

// ReadinessStatus is the /ready response body.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// NewReadinessState creates a state that reports ready once MarkReady
// is called or once timeout elapses, whichever comes first. The timeout
// keeps a server with an unreachable snapshot store from staying
// unroutable forever.
func NewReadinessState(timeout time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		timeout:   timeout,
	}
}

// IsReady reports whether the service should accept traffic.
func (s *ReadinessState) IsReady() bool {
	if s.ready.Load() {
		return true
	}
	return time.Since(s.startTime) >= s.timeout
}

// MarkReady records that the initial cache load completed.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// Status returns the current readiness state for the /ready handler.
func (s *ReadinessState) Status() ReadinessStatus {
	elapsed := time.Since(s.startTime)
	isReady := s.IsReady()

	status := ReadinessStatus{
		Ready:          isReady,
		ElapsedSeconds: int(elapsed.Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}

	if !isReady {
		status.Reason = "initial cache load in progress"
	} else if !s.ready.Load() {
		status.Reason = "timeout reached (cache load may still be running)"
	}

	return status
}

// LoadCompleted reports whether MarkReady was actually called, as
// opposed to readiness arrived at by timeout.
func (s *ReadinessState) LoadCompleted() bool {
	return s.ready.Load()
}
