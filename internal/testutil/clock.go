// Package testutil provides deterministic helpers for engine tests:
// a manual wall clock and a scriptable modality whose failures are
// under test control.
package testutil

import (
	"sync"
	"time"
)

// ManualClock is a wall-clock stub for the auto-advance loop and
// bookkeeping timestamps. Time only moves when the test advances it,
// so traces carry fixed timestamps across runs.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock positioned at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current stub time. Pass as the engine's wall clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the stub time forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
