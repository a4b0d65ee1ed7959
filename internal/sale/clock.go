package sale

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time in Unix milliseconds. The sale state
// (Active/Ended) is recomputed from the clock on every call; there is no
// stored state bit.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current Unix timestamp in milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// FixedClock is a settable clock for simulations and tests.
type FixedClock struct {
	now atomic.Int64
}

// NewFixedClock creates a FixedClock at the given Unix ms timestamp.
func NewFixedClock(now int64) *FixedClock {
	c := &FixedClock{}
	c.now.Store(now)
	return c
}

// Now returns the stored timestamp.
func (c *FixedClock) Now() int64 {
	return c.now.Load()
}

// Set moves the clock to the given timestamp.
func (c *FixedClock) Set(now int64) {
	c.now.Store(now)
}

// Advance moves the clock forward by d milliseconds.
func (c *FixedClock) Advance(d int64) {
	c.now.Add(d)
}
