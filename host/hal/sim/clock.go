package sim

import (
	"sync"
	"time"
)

// Clock is a deterministic hal.Clock. Every call to Now advances it by a
// fixed step so that polling loops make progress toward their deadlines.
type Clock struct {
	mu   sync.Mutex
	now  time.Duration
	step time.Duration
}

// NewClock returns a clock starting at zero that advances by step per read.
func NewClock(step time.Duration) *Clock {
	return &Clock{step: step}
}

// Now implements hal.Clock.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now += c.step
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}
