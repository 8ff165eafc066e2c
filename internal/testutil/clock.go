package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a resettable revisionable.Sequencer. Resetting it
// between runs makes a scenario hand out the same event and revision seqs
// every time. Safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last seq handed out.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next seq is 1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedTime is the wall clock instant used by deterministic runs.
var FixedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// SteppingNow returns a now function that starts at start and advances by
// step on every call. Safe for concurrent use.
func SteppingNow(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}
