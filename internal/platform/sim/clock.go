package sim

import (
	"sync"
	"time"
)

// Clock is a manual clock. Sleep advances the clock instead of blocking.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	slept   time.Duration
	sleeps  int
	onSleep func(d time.Duration)
}

// NewClock creates a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep advances the clock by d and runs the sleep hook.
func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
}

// OnSleep registers a hook called after every Sleep.
func (c *Clock) OnSleep(fn func(d time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = fn
}

// Slept returns the total time passed to Sleep.
func (c *Clock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Sleeps returns the number of Sleep calls.
func (c *Clock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}
