// Package testutil contains helpers shared by package tests. Nothing here is
// used by production code paths.
package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock. Its Now method can be handed to any
// component that accepts a func() time.Time.
//
//	clk := testutil.NewClock(time.Unix(1700000000, 0))
//	store := entry.NewStore(entry.WithClock(clk.Now))
//	clk.Advance(61 * time.Second)
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
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
