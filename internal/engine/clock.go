package engine

import "sync/atomic"

// Clock is a monotonic logical clock for transition ordering.
//
// Every transition appended to the history is stamped with a strictly
// increasing seq number from this clock. Wall-clock time decides WHICH day
// it is; seq decides the order in which transitions happened, even when the
// wall clock is moved backwards.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used when a session resumes an existing history.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
