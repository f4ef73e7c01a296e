// Package clock provides the engine's logical step counter. Steps are
// never derived from wall-clock time; there are no wall-clock sleeps.
package clock

import "sync/atomic"

// Clock issues monotonically increasing step indices, starting at 1.
type Clock struct {
	seq atomic.Int64
}

// New returns a Clock whose first Next() call returns 1.
func New() *Clock {
	return &Clock{}
}

// NewAt returns a Clock whose first Next() call returns start+1, for
// resuming at a recorded step index rather than beginning again at 1.
// The shrinker and replay do not use it: they replay every run from step 1.
func NewAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next atomically advances and returns the next step index.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the most recently issued step index without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
