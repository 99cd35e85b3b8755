// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock under manual control. Time stands still until
// a test calls Advance, at which point every timer and ticker whose
// deadline has passed fires. All methods are safe for concurrent use.
type FakeClock struct {
	mu             sync.Mutex
	now            time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

// fakeWaiter is one pending timer or ticker registration.
type fakeWaiter struct {
	deadline time.Time
	interval time.Duration // zero for one-shot timers
	ch       chan time.Time
	stopped  bool
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a FakeClock reading start.
func NewFake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.waitersChanged = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{deadline: c.now.Add(d), ch: ch})
	c.waitersChanged.Broadcast()
	return ch
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{deadline: c.now.Add(d), interval: d, ch: make(chan time.Time, 1)}
	c.waiters = append(c.waiters, waiter)
	c.waitersChanged.Broadcast()

	return &Ticker{
		C: waiter.ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
		},
	}
}

func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// Advance moves the clock forward by d, firing every due timer and
// ticker. A ticker that falls behind by several intervals delivers at
// most one tick (its channel has capacity 1, matching time.Ticker).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if w.stopped {
			continue
		}
		for !w.deadline.After(c.now) {
			select {
			case w.ch <- c.now:
			default:
			}
			if w.interval == 0 {
				break
			}
			w.deadline = w.deadline.Add(w.interval)
		}
		if w.interval > 0 || w.deadline.After(c.now) {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}

// WaitForTimers blocks until at least n timers or tickers are
// registered. It eliminates the race between a goroutine registering
// its timer and the test advancing the clock:
//
//	notifier.Start()
//	clk.WaitForTimers(1)               // the polling ticker exists
//	clk.Advance(100 * time.Millisecond) // deterministically fires
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingCountLocked() < n {
		c.waitersChanged.Wait()
	}
}

// PendingCount returns the number of active pending waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingCountLocked()
}

func (c *FakeClock) pendingCountLocked() int {
	count := 0
	for _, w := range c.waiters {
		if !w.stopped {
			count++
		}
	}
	return count
}
