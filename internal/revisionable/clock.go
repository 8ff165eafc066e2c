package revisionable

import "sync/atomic"

// Sequencer hands out strictly increasing logical seq numbers.
// Implemented by Clock and by test clocks that can be reset.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock for ordering lifecycle events.
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
// Used to continue numbering from the highest seq in the store.
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
