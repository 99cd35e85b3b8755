// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcd

import (
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory Device for tests. It mirrors the per-model
// feature matrix of the serial driver, records every transaction in
// order, and detects overlapping transactions (two calls in flight at
// once), which callers are required to prevent.
//
// Failures are scripted per operation with FailWith, and the keypad
// and lock state are injectable, so tests can drive event delivery
// and hardware-error paths deterministically.
type Fake struct {
	mu sync.Mutex

	model   Model
	version int

	backlight  int
	brightness int
	contrast   int
	leds       int
	locked     bool
	keypad     int
	text       []string // WriteText payloads, in order

	log        []string
	busy       bool
	overlapped bool
	failures   map[string]error

	// Delay stretches every transaction, widening the window in
	// which a second caller could overlap. Set it in tests that
	// verify channel serialization.
	Delay time.Duration
}

var _ Device = (*Fake)(nil)

// NewFake returns a Fake presenting as the given model, firmware
// version 7.
func NewFake(model Model) *Fake {
	return &Fake{
		model:    model,
		version:  7,
		failures: make(map[string]error),
	}
}

// FailWith makes every subsequent transaction of the named operation
// ("setContrast", "keypadState", ...) fail with err. A nil err clears
// the script.
func (f *Fake) FailWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// SetKeypad injects the bit pattern the next KeypadState call reports.
func (f *Fake) SetKeypad(mask int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keypad = mask
}

// Transactions returns the ordered operation log.
func (f *Fake) Transactions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

// Overlapped reports whether two transactions were ever in flight at
// the same time.
func (f *Fake) Overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlapped
}

// Backlight returns the last accepted backlight level.
func (f *Fake) Backlight() int { f.mu.Lock(); defer f.mu.Unlock(); return f.backlight }

// Contrast returns the last accepted contrast level.
func (f *Fake) Contrast() int { f.mu.Lock(); defer f.mu.Unlock(); return f.contrast }

// Brightness returns the last accepted brightness level.
func (f *Fake) Brightness() int { f.mu.Lock(); defer f.mu.Unlock(); return f.brightness }

// LEDs returns the last accepted LED mask.
func (f *Fake) LEDs() int { f.mu.Lock(); defer f.mu.Unlock(); return f.leds }

// Text returns every WriteText payload in order.
func (f *Fake) Text() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.text...)
}

// begin opens a transaction: it marks the channel busy, logs the
// operation, and returns any scripted failure. The busy flag is held
// across the optional Delay without holding the mutex, so a
// concurrent transaction is observable as an overlap.
func (f *Fake) begin(op string, args ...any) error {
	f.mu.Lock()
	if f.busy {
		f.overlapped = true
	}
	f.busy = true
	entry := op
	for _, a := range args {
		entry += fmt.Sprintf(" %v", a)
	}
	f.log = append(f.log, entry)
	err := f.failures[op]
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		f.end()
		return err
	}
	return nil
}

func (f *Fake) end() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

func (f *Fake) Model() Model { return f.model }

func (f *Fake) Version() (int, error) {
	if err := f.begin("version"); err != nil {
		return 0, err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, nil
}

func (f *Fake) Geometry() (Geometry, error) {
	if err := f.begin("geometry"); err != nil {
		return Geometry{}, err
	}
	defer f.end()
	return Geometry{Rows: 4, Cols: 20}, nil
}

func (f *Fake) Clear() error {
	if err := f.begin("clear"); err != nil {
		return err
	}
	defer f.end()
	return nil
}

func (f *Fake) SetCursor(line, col int) error {
	if err := f.begin("setCursor", line, col); err != nil {
		return err
	}
	defer f.end()
	return nil
}

func (f *Fake) WriteText(s string) error {
	if err := f.begin("writeText", s); err != nil {
		return err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = append(f.text, s)
	return nil
}

func (f *Fake) SetBacklight(level int) error {
	if err := f.begin("setBacklight", level); err != nil {
		return err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backlight = level
	return nil
}

func (f *Fake) SetBrightness(level int) error {
	if f.model == ModelLCD03 {
		return ErrUnsupported
	}
	if err := f.begin("setBrightness", level); err != nil {
		return err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brightness = level
	return nil
}

func (f *Fake) SetContrast(level int) error {
	if f.model == ModelLCD03 {
		return ErrUnsupported
	}
	if err := f.begin("setContrast", level); err != nil {
		return err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contrast = level
	return nil
}

func (f *Fake) SetLEDs(mask int) error {
	if f.model != ModelPanel {
		return ErrUnsupported
	}
	if err := f.begin("setLEDs", mask); err != nil {
		return err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leds = mask
	return nil
}

func (f *Fake) KeypadState() (int, error) {
	if err := f.begin("keypadState"); err != nil {
		return 0, err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keypad, nil
}

func (f *Fake) LockState() (bool, error) {
	if f.model != ModelPanel {
		return false, ErrUnsupported
	}
	if err := f.begin("lockState"); err != nil {
		return false, err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked, nil
}

func (f *Fake) SetLock(engaged bool) error {
	if f.model != ModelPanel {
		return ErrUnsupported
	}
	if err := f.begin("setLock", engaged); err != nil {
		return err
	}
	defer f.end()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = engaged
	return nil
}

func (f *Fake) Close() error { return nil }
