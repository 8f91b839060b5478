package testutil

import (
	"sync"
	"time"
)

// DefaultClockStart is where NewDeterministicClock begins.
var DefaultClockStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe wall clock for tests that advances by
// a fixed step on every read.
//
// The same sequence of reads always yields the same times, which keeps
// snapshot timestamps and traces reproducible. It can be reset for reuse.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock at DefaultClockStart stepping one
// second per read. The first call to Now returns start+1s.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultClockStart, time.Second)
}

// NewDeterministicClockAt creates a clock at start stepping by step.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now advances the clock by one step and returns the new time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.start.Add(time.Duration(c.ticks) * c.step)
}

// Current returns the current time without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.ticks) * c.step)
}

// Reset moves the clock back to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
