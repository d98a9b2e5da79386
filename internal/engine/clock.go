package engine

import "sync/atomic"

// Clock numbers ticks.
//
// Each Tick draws the next value, so reports carry a strictly increasing
// Seq independent of master or wall time. A recorded session's ticks are
// ordered and replayed by Seq alone.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first Next is start+1. Replay uses it to
// reproduce the numbering of a recorded session.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or the start value.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
