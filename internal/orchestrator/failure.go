package orchestrator

import (
	"sync"
	"time"

	"github.com/fundamenta/fundi/internal/metrics"
)

// ResetPolicy decides how BeginRequest treats leftover failure state.
type ResetPolicy int

const (
	// ResetStale clears the failure count once the cooldown window since the last failure
	// has passed. The forced flag is left to the operator.
	ResetStale ResetPolicy = iota
	// ResetAlways clears the count and the forced flag before every request.
	ResetAlways
)

func (p ResetPolicy) String() string {
	if p == ResetAlways {
		return "always"
	}
	return "stale"
}

// FailureState tracks primary provider failures. All methods are safe for concurrent use.
type FailureState struct {
	mu             sync.Mutex
	failureCount   int
	lastFailure    time.Time
	forcedFallback bool

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// FailureSnapshot is a point-in-time copy of FailureState.
type FailureSnapshot struct {
	FailureCount   int
	LastFailure    time.Time
	ForcedFallback bool
	UsingFallback  bool
}

// NewFailureState creates an empty state. now defaults to time.Now.
func NewFailureState(maxFailures int, cooldown time.Duration, now func() time.Time) *FailureState {
	if now == nil {
		now = time.Now
	}
	return &FailureState{maxFailures: maxFailures, cooldown: cooldown, now: now}
}

// RecordSuccess decrements the failure count, never below zero.
func (f *FailureState) RecordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failureCount > 0 {
		f.failureCount--
	}
	metrics.FailureCount.Set(float64(f.failureCount))
}

// RecordFailure increments the failure count and stamps the failure time.
func (f *FailureState) RecordFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failureCount++
	f.lastFailure = f.now()
	metrics.FailureCount.Set(float64(f.failureCount))
}

// Reset clears the failure count and the forced flag.
func (f *FailureState) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *FailureState) resetLocked() {
	f.failureCount = 0
	f.lastFailure = time.Time{}
	f.forcedFallback = false
	metrics.FailureCount.Set(0)
	metrics.ForcedFallback.Set(0)
}

// SetForcedFallback forces (or releases) secondary-only operation.
func (f *FailureState) SetForcedFallback(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forcedFallback = enabled
	if enabled {
		metrics.ForcedFallback.Set(1)
	} else {
		metrics.ForcedFallback.Set(0)
	}
}

// ShouldUseFallback reports whether requests should skip the primary provider.
func (f *FailureState) ShouldUseFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shouldUseFallbackLocked()
}

func (f *FailureState) shouldUseFallbackLocked() bool {
	if f.forcedFallback {
		return true
	}
	if f.failureCount < f.maxFailures {
		return false
	}
	return f.now().Sub(f.lastFailure) < f.windowLocked()
}

// windowLocked is the cooldown scaled by the current failure count.
func (f *FailureState) windowLocked() time.Duration {
	return f.cooldown * time.Duration(f.failureCount)
}

// BeginRequest applies the reset policy and reports whether the request should go straight to
// the secondary provider. Both steps happen under one lock.
func (f *FailureState) BeginRequest(policy ResetPolicy) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch policy {
	case ResetAlways:
		if f.failureCount > 0 || f.forcedFallback {
			f.resetLocked()
		}
	default:
		if f.failureCount > 0 && f.now().Sub(f.lastFailure) >= f.windowLocked() {
			f.failureCount = 0
			metrics.FailureCount.Set(0)
		}
	}
	return f.shouldUseFallbackLocked()
}

// Snapshot returns a copy of the current state.
func (f *FailureState) Snapshot() FailureSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FailureSnapshot{
		FailureCount:   f.failureCount,
		LastFailure:    f.lastFailure,
		ForcedFallback: f.forcedFallback,
		UsingFallback:  f.shouldUseFallbackLocked(),
	}
}
