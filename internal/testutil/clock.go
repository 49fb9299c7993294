package testutil

import (
	"sync"
	"time"
)

// FakeClock records every requested wait. Unless Block is set, waits complete
// immediately; a blocking clock only releases when the caller gives up.
type FakeClock struct {
	Block bool

	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	waiting chan struct{}
}

// NewFakeClock returns a clock that starts at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{
		now:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		waiting: make(chan struct{}, 64),
	}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	select {
	case c.waiting <- struct{}{}:
	default:
	}

	ch := make(chan time.Time, 1)
	if !c.Block {
		ch <- now
	}
	return ch
}

// Waits returns the delays requested so far.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// Waiting is signalled each time a wait starts.
func (c *FakeClock) Waiting() <-chan struct{} {
	return c.waiting
}
