package testutil

import "sync"

// DeterministicClock provides a thread-safe monotonic logical clock for tests.
//
// The harness stamps every trace event with a sequence number from a clock
// like this one; each run gets a fresh clock, so the same scenario always
// produces identical seq values, which golden-trace comparison depends on.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{seq: 0}
}

// Next increments and returns the next sequence number.
//
// Monotonic: always returns seq+1, never decreases.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
