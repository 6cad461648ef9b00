package security

import (
	"sync"
	"time"
)

// Clock supplies the current time to everything that expires or windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// zapClock lets log lines carry the injected time.
type zapClock struct {
	clock Clock
}

func (z zapClock) Now() time.Time { return z.clock.Now() }

func (z zapClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }
