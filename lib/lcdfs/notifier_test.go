// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/lcdfs/lib/clock"
	"github.com/bureau-foundation/lcdfs/lib/lcd"
	"github.com/bureau-foundation/lcdfs/lib/testutil"
)

// maskSource is a scriptable keypad for notifier tests.
type maskSource struct {
	mu   sync.Mutex
	mask int
	err  error
}

func (m *maskSource) set(mask int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mask = mask
}

func (m *maskSource) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *maskSource) poll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		err := m.err
		m.err = nil
		return 0, err
	}
	return m.mask, nil
}

func newTestNotifier() (*Notifier, *maskSource, *clock.FakeClock) {
	source := &maskSource{}
	clk := clock.NewFake(testStart)
	return NewNotifier(source.poll, clk, 100*time.Millisecond, testLogger()), source, clk
}

func TestNotifierDeliversToBlockedReader(t *testing.T) {
	n, source, _ := newTestNotifier()

	events, _ := n.Wait()
	testutil.RequireNoReceive(t, events, 20*time.Millisecond, "no key pressed yet")

	source.set(0b100)
	n.pollOnce()

	event := testutil.RequireReceive(t, events, time.Second, "waiting for key event")
	if event.Keys != 0b100 {
		t.Errorf("event keys = %#b, want 0b100", event.Keys)
	}
	if !event.At.Equal(testStart) {
		t.Errorf("event time = %v, want %v", event.At, testStart)
	}
}

func TestNotifierMailboxKeepsNewestOnly(t *testing.T) {
	n, source, _ := newTestNotifier()

	source.set(0b001)
	n.pollOnce() // queued, no reader
	source.set(0b000)
	n.pollOnce() // release, no new press
	source.set(0b010)
	n.pollOnce() // replaces the unread event

	events, _ := n.Wait()
	event := testutil.RequireReceive(t, events, time.Second, "consuming queued event")
	if event.Keys != 0b010 {
		t.Errorf("event keys = %#b, want the newest press 0b010", event.Keys)
	}

	// The slot was consumed: a second reader blocks.
	events2, cancel := n.Wait()
	defer cancel()
	testutil.RequireNoReceive(t, events2, 20*time.Millisecond, "mailbox must be empty")
}

func TestNotifierNoEventWhileKeyHeld(t *testing.T) {
	n, source, _ := newTestNotifier()

	source.set(0b001)
	n.pollOnce()
	n.pollOnce() // same mask: the held key is not a new press

	events, _ := n.Wait()
	event := testutil.RequireReceive(t, events, time.Second, "first press")
	if event.Keys != 0b001 {
		t.Errorf("event keys = %#b", event.Keys)
	}

	events2, cancel := n.Wait()
	defer cancel()
	testutil.RequireNoReceive(t, events2, 20*time.Millisecond, "held key produced a second event")
}

func TestNotifierFIFOAcrossReaders(t *testing.T) {
	n, source, _ := newTestNotifier()

	first, _ := n.Wait()
	second, _ := n.Wait()

	source.set(0b001)
	n.pollOnce()
	event := testutil.RequireReceive(t, first, time.Second, "first reader")
	if event.Keys != 0b001 {
		t.Errorf("first reader got %#b", event.Keys)
	}
	testutil.RequireNoReceive(t, second, 20*time.Millisecond, "second reader must still block")

	source.set(0b000)
	n.pollOnce()
	source.set(0b011)
	n.pollOnce()
	event = testutil.RequireReceive(t, second, time.Second, "second reader")
	if event.Keys != 0b011 {
		t.Errorf("second reader got %#b, want the next event, not a replay", event.Keys)
	}
}

func TestNotifierCancelRemovesWaiter(t *testing.T) {
	n, source, _ := newTestNotifier()

	events, cancel := n.Wait()
	cancel()
	cancel() // idempotent

	source.set(0b001)
	n.pollOnce()
	testutil.RequireNoReceive(t, events, 20*time.Millisecond, "cancelled waiter received an event")

	// The event went to the mailbox instead of being lost.
	queued, _ := n.Wait()
	event := testutil.RequireReceive(t, queued, time.Second, "event after cancellation")
	if event.Keys != 0b001 {
		t.Errorf("queued event = %#b", event.Keys)
	}
}

func TestNotifierSurvivesPollFailures(t *testing.T) {
	n, source, _ := newTestNotifier()

	source.fail(lcd.ErrHardware)
	n.pollOnce() // logged and swallowed

	source.set(0b001)
	n.pollOnce()

	events, _ := n.Wait()
	event := testutil.RequireReceive(t, events, time.Second, "event after transient failure")
	if event.Keys != 0b001 {
		t.Errorf("event = %#b", event.Keys)
	}
}

func TestNotifierStartStop(t *testing.T) {
	n, source, clk := newTestNotifier()
	n.Start()

	// The polling goroutine registers its ticker asynchronously;
	// advancing before that registration would never fire it.
	clk.WaitForTimers(1)

	events, _ := n.Wait()
	source.set(0b1000)
	clk.Advance(100 * time.Millisecond)

	event := testutil.RequireReceive(t, events, time.Second, "event from polling loop")
	if event.Keys != 0b1000 {
		t.Errorf("event = %#b", event.Keys)
	}

	n.Stop() // must return: the polling goroutine exits
}

func TestNotifierRequeue(t *testing.T) {
	n, _, _ := newTestNotifier()

	n.requeue(Event{Keys: 0b1, At: testStart})
	events, _ := n.Wait()
	event := testutil.RequireReceive(t, events, time.Second, "requeued event")
	if event.Keys != 0b1 {
		t.Errorf("event = %#b", event.Keys)
	}
}
