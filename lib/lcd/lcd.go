// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lcd is the hardware adapter for Devantech LCD03/LCD05 display
// controllers and the derived robotic-arm control panel. It exposes the
// control channel as a blocking call-and-response API: every method is
// one complete transaction on the serial link, and the device answers
// (or completes silently) before the method returns.
//
// The adapter is deliberately dumb: it knows the wire protocol and the
// per-model feature matrix, nothing about filesystems or caching. One
// transaction may be in flight at a time; callers that share a Device
// must serialize access themselves (the lcdfs state cache does this).
//
// Features a model lacks fail with ErrUnsupported. Channel failures,
// including response timeouts, fail with an error wrapping ErrHardware.
package lcd

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Device implementations.
var (
	// ErrUnsupported reports that the connected model does not
	// implement the requested feature. It is a stable answer: a
	// feature that is unsupported once is unsupported for the
	// lifetime of the connection.
	ErrUnsupported = errors.New("feature not supported by this model")

	// ErrHardware reports that a control-channel transaction failed:
	// the write did not complete, the device did not answer within
	// the transaction deadline, or the answer was malformed. The
	// device state after ErrHardware is unknown; callers must not
	// assume the command took effect.
	ErrHardware = errors.New("hardware transaction failed")
)

// Model identifies the connected controller family. The model decides
// the feature matrix and the valid value ranges.
type Model string

const (
	// ModelLCD03 is the base Devantech LCD03: display, backlight
	// on/off, optional 3x4 keypad. No contrast or brightness control.
	ModelLCD03 Model = "LCD03"

	// ModelLCD05 is the LCD05: everything the LCD03 has plus
	// contrast and brightness levels.
	ModelLCD05 Model = "LCD05"

	// ModelPanel is the arm control panel: an LCD05 with custom
	// firmware driving four status LEDs, a four-key keypad, and the
	// arm's mechanical lock sensor/actuator.
	ModelPanel Model = "ControlPanel"
)

// ParseModel converts a configuration string ("lcd03", "lcd05",
// "panel") into a Model.
func ParseModel(s string) (Model, error) {
	switch s {
	case "lcd03":
		return ModelLCD03, nil
	case "lcd05":
		return ModelLCD05, nil
	case "panel":
		return ModelPanel, nil
	default:
		return "", fmt.Errorf("unknown device model %q (want lcd03, lcd05, or panel)", s)
	}
}

// Geometry is the character grid of the display.
type Geometry struct {
	// Rows is the number of text lines.
	Rows int

	// Cols is the number of characters per line.
	Cols int
}

// Range is an inclusive integer interval for a writable level.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Limits is the per-model table of valid value ranges. The lcdfs
// state cache validates writes against it before any transaction is
// issued; out-of-range values are rejected, never clamped.
type Limits struct {
	// Backlight is {0,1} on LCD03/LCD05 (relay-switched) and 0-255
	// on the panel, whose firmware drives the backlight with PWM.
	Backlight Range

	// Contrast is the LCD contrast level range. Zero-width on
	// models without contrast control.
	Contrast Range

	// Brightness is the backlight brightness range. Zero-width on
	// models without brightness control.
	Brightness Range

	// LEDMask is the highest valid LED bit pattern. Zero on models
	// without LEDs.
	LEDMask int
}

// LimitsFor returns the value-range table for a model.
func LimitsFor(model Model) Limits {
	switch model {
	case ModelPanel:
		return Limits{
			Backlight:  Range{0, 255},
			Contrast:   Range{0, 255},
			Brightness: Range{0, 255},
			LEDMask:    0x0f,
		}
	case ModelLCD05:
		return Limits{
			Backlight:  Range{0, 1},
			Contrast:   Range{0, 255},
			Brightness: Range{0, 255},
		}
	default:
		return Limits{
			Backlight: Range{0, 1},
		}
	}
}

// Device is the synchronous control-channel API. Every call is one
// complete transaction; at most one transaction may be in flight.
//
// Implementations: SerialDevice (real hardware over a serial port)
// and Fake (in-memory, for tests).
type Device interface {
	// Model returns the controller family of the connected device.
	Model() Model

	// Version returns the firmware version reported by the device.
	Version() (int, error)

	// Geometry returns the character grid of the display.
	Geometry() (Geometry, error)

	// Clear blanks the display and homes the cursor.
	Clear() error

	// SetCursor moves the cursor to a 1-based line and column.
	SetCursor(line, col int) error

	// WriteText prints s at the cursor. The caller is responsible
	// for fitting s to the display geometry.
	WriteText(s string) error

	// SetBacklight sets the backlight level. On relay-switched
	// models only 0 and 1 are meaningful.
	SetBacklight(level int) error

	// SetBrightness sets the backlight brightness.
	SetBrightness(level int) error

	// SetContrast sets the LCD contrast.
	SetContrast(level int) error

	// SetLEDs sets the panel LED bit pattern.
	SetLEDs(mask int) error

	// KeypadState returns the bit pattern of currently pressed
	// keys (bit 0 = top-left key).
	KeypadState() (int, error)

	// LockState reports whether the arm lock is engaged.
	LockState() (bool, error)

	// SetLock engages or releases the arm lock.
	SetLock(engaged bool) error

	// Close releases the control channel.
	Close() error
}
