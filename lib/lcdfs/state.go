// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/lcdfs/lib/clock"
	"github.com/bureau-foundation/lcdfs/lib/lcd"
)

// ErrInvalidValue reports a write payload that failed parsing or
// range validation. Validation happens before any hardware traffic,
// so the cache and the device are untouched.
var ErrInvalidValue = errors.New("invalid value")

// volatileTTL is how long a hardware-readable attribute value stays
// fresh before a read triggers a new fetch.
const volatileTTL = time.Second

// attributeState is the cached state of one read/write attribute.
// Mutated only by StateCache methods while the channel lock is held.
type attributeState struct {
	// value is the last hardware-reported value or the payload of
	// the last successful write, without trailing newline.
	value string

	// syncedAt is the time of the last successful hardware sync.
	syncedAt time.Time

	// volatile marks attributes the hardware can report on demand
	// (the lock state). Their reads refetch once syncedAt is older
	// than volatileTTL. Non-volatile attributes cannot be read back
	// from the hardware, so their cache is authoritative forever.
	volatile bool
}

// StateCache owns the single path to the hardware and serializes all
// transactions behind one mutex: the control channel is half-duplex,
// so a transaction in progress blocks every other caller, whatever
// attribute they touch. It validates writes, keeps the last-known
// value per attribute, and updates the cache only after the hardware
// accepted the write.
type StateCache struct {
	// mu is the channel lock. Every device transaction after the
	// probe happens with mu held.
	mu sync.Mutex

	device lcd.Device
	clk    clock.Clock
	limits lcd.Limits
	term   *terminal
	info   string
	logger *slog.Logger

	entries map[string]*attributeState
}

// NewStateCache builds the synchronizer for a probed device, priming
// the cache from the probe's defaults sync.
func NewStateCache(device lcd.Device, probe *ProbeResult, clk clock.Clock, logger *slog.Logger) *StateCache {
	s := &StateCache{
		device:  device,
		clk:     clk,
		limits:  probe.Limits,
		term:    newTerminal(device, probe.Geometry),
		info:    probe.Info,
		logger:  logger,
		entries: make(map[string]*attributeState),
	}

	now := clk.Now()
	for _, file := range BuildTree(probe.Capabilities).Files() {
		switch file.Kind {
		case KindInfo, KindEvent:
			continue
		}
		entry := &attributeState{syncedAt: now, volatile: file.Name == "locked"}
		if seed, ok := probe.Seed[file.Name]; ok {
			entry.value = seed
		}
		s.entries[file.Name] = entry
	}
	return s
}

// Read returns the current content of an attribute file, trailing
// newline included. Fresh cached values are returned without hardware
// traffic; stale volatile values are refetched under the channel
// lock. Hardware failures leave the cache unchanged.
func (s *StateCache) Read(name string) ([]byte, error) {
	if name == "info" {
		return []byte(s.info), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("no attribute %q", name)
	}

	if entry.volatile && s.clk.Now().Sub(entry.syncedAt) > volatileTTL {
		if err := s.refetch(name, entry); err != nil {
			return nil, err
		}
	}
	return []byte(entry.value + "\n"), nil
}

// refetch performs the hardware fetch for a stale volatile attribute.
// Called with the channel lock held.
func (s *StateCache) refetch(name string, entry *attributeState) error {
	switch name {
	case "locked":
		engaged, err := s.device.LockState()
		if err != nil {
			return err
		}
		if engaged {
			entry.value = "1"
		} else {
			entry.value = "0"
		}
	default:
		return fmt.Errorf("attribute %q is not hardware-readable", name)
	}
	entry.syncedAt = s.clk.Now()
	return nil
}

// Write parses and validates data for the named attribute, then
// issues the hardware transaction under the channel lock. The cache
// is updated only on success; a failed transaction leaves the
// previous value in place and is not retried.
func (s *StateCache) Write(name string, data []byte) error {
	kind := kindOf(name)
	if kind == KindText {
		return s.writeDisplay(string(data))
	}

	value, err := s.parseLevel(name, kind, string(data))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("no attribute %q", name)
	}

	if err := s.transactLevel(name, value); err != nil {
		s.logger.Warn("attribute write failed", "attribute", name, "value", value, "error", err)
		return err
	}

	entry.value = strconv.Itoa(value)
	entry.syncedAt = s.clk.Now()
	return nil
}

// writeDisplay runs the payload through the display terminal under
// the channel lock. The terminal issues its own device transactions
// (clear, cursor moves, text runs).
func (s *StateCache) writeDisplay(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.term.process(data); err != nil {
		return err
	}

	if entry, ok := s.entries["display"]; ok {
		entry.value = strings.TrimRight(data, "\n")
		entry.syncedAt = s.clk.Now()
	}
	return nil
}

// transactLevel issues the device write for one attribute. Called
// with the channel lock held.
func (s *StateCache) transactLevel(name string, value int) error {
	switch name {
	case "backlight":
		return s.device.SetBacklight(value)
	case "brightness":
		return s.device.SetBrightness(value)
	case "contrast":
		return s.device.SetContrast(value)
	case "leds":
		return s.device.SetLEDs(value)
	case "locked":
		return s.device.SetLock(value != 0)
	default:
		return fmt.Errorf("no writable attribute %q", name)
	}
}

// parseLevel converts a write payload into a validated integer.
// Decimal is tried first, then bare hexadecimal, matching what the
// hardware tooling has always accepted. Out-of-range values are
// rejected, never clamped.
func (s *StateCache) parseLevel(name string, kind ValueKind, data string) (int, error) {
	trimmed := strings.TrimSpace(data)

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		parsed, hexErr := strconv.ParseInt(trimmed, 16, 32)
		if hexErr != nil {
			return 0, fmt.Errorf("%q is not a number: %w", trimmed, ErrInvalidValue)
		}
		value = int(parsed)
	}

	r, ok := s.rangeOf(name, kind)
	if !ok {
		return 0, fmt.Errorf("no writable attribute %q", name)
	}
	if !r.Contains(value) {
		return 0, fmt.Errorf("%d outside range %d-%d for %s: %w", value, r.Min, r.Max, name, ErrInvalidValue)
	}
	return value, nil
}

// rangeOf maps an attribute to its model-specific valid range.
func (s *StateCache) rangeOf(name string, kind ValueKind) (lcd.Range, bool) {
	switch name {
	case "backlight":
		return s.limits.Backlight, true
	case "brightness":
		return s.limits.Brightness, true
	case "contrast":
		return s.limits.Contrast, true
	case "leds":
		return lcd.Range{Min: 0, Max: s.limits.LEDMask}, true
	case "locked":
		return lcd.Range{Min: 0, Max: 1}, true
	default:
		return lcd.Range{}, false
	}
}

func kindOf(name string) ValueKind {
	for _, file := range fileTable {
		if file.Name == name {
			return file.Kind
		}
	}
	return KindInt
}

// Size reports the current content length of an attribute file
// without hardware traffic, for attribute metadata.
func (s *StateCache) Size(name string) int {
	if name == "info" {
		return len(s.info)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[name]; ok {
		return len(entry.value) + 1
	}
	return 0
}

// ModTime reports the last successful sync time of an attribute, for
// attribute metadata.
func (s *StateCache) ModTime(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[name]; ok {
		return entry.syncedAt
	}
	return time.Time{}
}

// KeypadState fetches the keypad bit pattern under the channel lock.
// The key notifier's polling funnels through here so that the
// notifier, not a blocked reader, owns channel access.
func (s *StateCache) KeypadState() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.KeypadState()
}

// Shutdown waits for any in-flight transaction, then leaves the
// hardware dark: display cleared, backlight off. Errors are logged
// only; the mount is going away regardless.
func (s *StateCache) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.device.Clear(); err != nil {
		s.logger.Warn("clearing display at shutdown", "error", err)
	}
	if _, ok := s.entries["backlight"]; ok {
		if err := s.device.SetBacklight(0); err != nil {
			s.logger.Warn("switching backlight off at shutdown", "error", err)
		}
	}
}
