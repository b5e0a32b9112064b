package testutil

import (
	"sync"
	"time"
)

// StepClock returns Start on the first call and advances by Step on each
// subsequent call.
type StepClock struct {
	mu    sync.Mutex
	Start time.Time
	Step  time.Duration
	calls int
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.Start.Add(time.Duration(c.calls) * c.Step)
	c.calls++
	return t
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
