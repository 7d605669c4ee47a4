package testutil

import (
	"sync"
	"time"
)

// Epoch is the starting time of a NewClock.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source. Pass Clock.Now wherever a
// func() time.Time is accepted.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
