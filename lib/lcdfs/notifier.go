// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/lcdfs/lib/clock"
)

// Event is one captured key press: the keypad bit pattern at the
// moment a new key went down, and when it was seen. Events are
// consumed at most once and never outlive the mount.
type Event struct {
	// Keys is the keypad bit pattern (bit 0 = top-left key).
	Keys int

	// At is when the notifier observed the press.
	At time.Time
}

// Notifier polls the keypad through the state cache and hands events
// to readers of the keys file. Delivery rules: a new event goes to
// the oldest blocked reader if one exists; otherwise it lands in a
// single-slot mailbox, displacing any queued-but-unread event. Poll
// failures are logged and swallowed — a transient hardware glitch
// must not kill the notifier.
type Notifier struct {
	poll     func() (int, error)
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	pending  *Event
	waiters  []chan Event
	lastMask int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewNotifier builds a notifier polling via poll (normally
// StateCache.KeypadState, so channel access stays with the
// synchronizer) every interval.
func NewNotifier(poll func() (int, error), clk clock.Clock, interval time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		poll:     poll,
		clk:      clk,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling goroutine.
func (n *Notifier) Start() {
	go n.run()
}

// Stop ends polling and waits for the polling goroutine to exit. It
// is idempotent. Any still-blocked readers stay blocked until their
// descriptors close; Stop is called at unmount, after the kernel has
// released them.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stop) })
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)

	ticker := n.clk.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			n.pollOnce()
		}
	}
}

func (n *Notifier) pollOnce() {
	mask, err := n.poll()
	if err != nil {
		n.logger.Warn("keypad poll failed", "error", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	pressed := mask &^ n.lastMask
	n.lastMask = mask
	if pressed == 0 {
		return
	}

	event := Event{Keys: mask, At: n.clk.Now()}
	if len(n.waiters) > 0 {
		waiter := n.waiters[0]
		n.waiters = n.waiters[1:]
		waiter <- event
		return
	}
	n.pending = &event
}

// Wait returns a channel that delivers exactly one event, and a
// cancel function that must be called if the caller gives up. If an
// event is already queued it is consumed and delivered immediately;
// otherwise the caller joins the waiter queue in FIFO order.
//
// cancel is idempotent and removes the waiter without leaking it. A
// waiter that already received its event is left alone, so the event
// is not lost to a racing cancellation.
func (n *Notifier) Wait() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Event, 1)
	if n.pending != nil {
		ch <- *n.pending
		n.pending = nil
		return ch, func() {}
	}

	n.waiters = append(n.waiters, ch)
	cancel := func() {
		n.removeWaiter(ch)
	}
	return ch, cancel
}

func (n *Notifier) removeWaiter(ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, waiter := range n.waiters {
		if waiter == ch {
			n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
			return
		}
	}
}

// requeue puts an event back after a reader abandoned it mid-
// delivery. It goes to the next waiter if one exists; otherwise it
// occupies the mailbox slot unless a newer event already does.
func (n *Notifier) requeue(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.waiters) > 0 {
		waiter := n.waiters[0]
		n.waiters = n.waiters[1:]
		waiter <- event
		return
	}
	if n.pending == nil {
		n.pending = &event
	}
}
