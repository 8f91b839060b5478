package simchain

import (
	"sync/atomic"
	"time"
)

// Sequence is a monotonic counter ordering every submitted action,
// finalized or rejected.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the counter.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}

// BlockClock produces deterministic block timestamps: each block is one
// second after its parent plus any pending time advance.
//
// Not safe for concurrent use; the Chain serializes access.
type BlockClock struct {
	last    time.Time
	pending time.Duration
}

// NewBlockClock starts a clock at the genesis timestamp.
func NewBlockClock(genesis time.Time) *BlockClock {
	return &BlockClock{last: genesis.UTC().Truncate(time.Second)}
}

// Current returns the timestamp of the latest block.
func (c *BlockClock) Current() time.Time {
	return c.last
}

// Next returns the timestamp the next block will have. It does not move
// the clock; call Commit once the block is mined.
func (c *BlockClock) Next() time.Time {
	return c.last.Add(time.Second + c.pending)
}

// Commit records t as the latest block timestamp and clears pending advances.
func (c *BlockClock) Commit(t time.Time) {
	c.last = t
	c.pending = 0
}

// Advance moves the next block's timestamp forward by d.
func (c *BlockClock) Advance(d time.Duration) {
	if d > 0 {
		c.pending += d
	}
}
