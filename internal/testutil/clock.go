package testutil

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for deterministic calendar tests.
//
// It never moves on its own: tests place it at an instant and advance it
// explicitly, so "the next local day" is a single AdvanceDays(1) call.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock fixed at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fixed instant.
//
// Implements calendar.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceDays moves the clock to the same wall time n calendar days later in
// the clock's own location. Unlike Advance(24h) this stays on the same wall
// time across DST changes.
func (c *Clock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}
