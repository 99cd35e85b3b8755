// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/lcdfs/lib/lcd"
)

// ErrHardwareUnavailable reports that the device did not answer the
// mount-time probe. It is fatal: the filesystem never becomes
// available.
var ErrHardwareUnavailable = errors.New("hardware unavailable")

// ProbeResult is everything the prober learned about the connected
// device. It is computed once per mount and immutable afterwards.
type ProbeResult struct {
	// Capabilities gates which files the mount tree contains.
	Capabilities CapabilitySet

	// Geometry is the display character grid, used by the display
	// terminal for wrapping and cursor validation.
	Geometry lcd.Geometry

	// Limits is the per-model value range table used to validate
	// attribute writes.
	Limits lcd.Limits

	// Version is the firmware version reported by the device.
	Version int

	// Info is the rendered content of the info file. Reads of info
	// never touch the hardware again.
	Info string

	// Seed holds the attribute values established by the probe's
	// defaults sync, used to prime the state cache.
	Seed map[string]string
}

// Probe interrogates the device once per known attribute and returns
// the capability set. A feature answering lcd.ErrUnsupported is
// recorded absent; any other failure aborts the probe with an error
// wrapping ErrHardwareUnavailable (the device is not answering, so
// the mount must not proceed).
//
// Probing doubles as the power-on defaults sync: the write-only
// attributes are probed by writing their defaults (backlight full on,
// brightness and contrast at maximum, LEDs dark, display cleared),
// which both proves the feature exists and leaves the hardware in a
// known state that seeds the cache.
//
// The arm panel files (leds, locked) are probed only when the
// integration is enabled; with it disabled they are absent even on
// panel hardware.
func Probe(device lcd.Device, armPanel bool, logger *slog.Logger) (*ProbeResult, error) {
	if logger == nil {
		logger = discardLogger()
	}

	version, err := device.Version()
	if err != nil {
		return nil, fmt.Errorf("device did not answer version probe: %v: %w", err, ErrHardwareUnavailable)
	}

	geometry, err := device.Geometry()
	if err != nil {
		return nil, fmt.Errorf("device did not report geometry: %v: %w", err, ErrHardwareUnavailable)
	}

	result := &ProbeResult{
		Capabilities: CapabilitySet(0).with(CapInfo),
		Geometry:     geometry,
		Limits:       lcd.LimitsFor(device.Model()),
		Version:      version,
		Seed:         make(map[string]string),
	}

	// The display is probed by clearing it. A device that answered
	// the version request but cannot clear its display is broken,
	// not featureless.
	if err := device.Clear(); err != nil {
		return nil, fmt.Errorf("clearing display: %v: %w", err, ErrHardwareUnavailable)
	}
	result.Capabilities = result.Capabilities.with(CapDisplay)

	probes := []struct {
		name       string
		capability Capability
		def        int
		run        func(int) error
	}{
		{"backlight", CapBacklight, result.Limits.Backlight.Max, device.SetBacklight},
		{"brightness", CapBrightness, result.Limits.Brightness.Max, device.SetBrightness},
		{"contrast", CapContrast, result.Limits.Contrast.Max, device.SetContrast},
	}
	for _, p := range probes {
		if err := p.run(p.def); err != nil {
			if errors.Is(err, lcd.ErrUnsupported) {
				logger.Debug("capability absent", "attribute", p.name)
				continue
			}
			return nil, fmt.Errorf("probing %s: %v: %w", p.name, err, ErrHardwareUnavailable)
		}
		result.Capabilities = result.Capabilities.with(p.capability)
		result.Seed[p.name] = fmt.Sprintf("%d", p.def)
	}

	if _, err := device.KeypadState(); err != nil {
		if !errors.Is(err, lcd.ErrUnsupported) {
			return nil, fmt.Errorf("probing keypad: %v: %w", err, ErrHardwareUnavailable)
		}
		logger.Debug("capability absent", "attribute", "keys")
	} else {
		result.Capabilities = result.Capabilities.with(CapKeypad)
	}

	if armPanel {
		if err := device.SetLEDs(0); err != nil {
			if !errors.Is(err, lcd.ErrUnsupported) {
				return nil, fmt.Errorf("probing leds: %v: %w", err, ErrHardwareUnavailable)
			}
			logger.Debug("capability absent", "attribute", "leds")
		} else {
			result.Capabilities = result.Capabilities.with(CapLEDs)
			result.Seed["leds"] = "0"
		}

		if locked, err := device.LockState(); err != nil {
			if !errors.Is(err, lcd.ErrUnsupported) {
				return nil, fmt.Errorf("probing lock: %v: %w", err, ErrHardwareUnavailable)
			}
			logger.Debug("capability absent", "attribute", "locked")
		} else {
			result.Capabilities = result.Capabilities.with(CapLock)
			if locked {
				result.Seed["locked"] = "1"
			} else {
				result.Seed["locked"] = "0"
			}
		}
	}

	result.Info = renderInfo(device.Model(), result)

	logger.Info("device probed",
		"model", device.Model(),
		"version", version,
		"rows", geometry.Rows,
		"cols", geometry.Cols,
	)
	return result, nil
}

// renderInfo formats the info file content, one "name : value" row
// per line in the style of /proc/cpuinfo.
func renderInfo(model lcd.Model, result *ProbeResult) string {
	rows := []struct {
		name  string
		value any
	}{
		{"rows", result.Geometry.Rows},
		{"cols", result.Geometry.Cols},
		{"model", string(model)},
		{"version", result.Version},
		{"backlight", result.Capabilities.Has(CapBacklight)},
		{"brightness", result.Capabilities.Has(CapBrightness)},
		{"contrast", result.Capabilities.Has(CapContrast)},
		{"keypad", result.Capabilities.Has(CapKeypad)},
		{"leds", result.Capabilities.Has(CapLEDs)},
		{"locked", result.Capabilities.Has(CapLock)},
	}

	var out string
	for _, row := range rows {
		out += fmt.Sprintf("%-16s : %v\n", row.name, row.value)
	}
	return out
}
