// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/bureau-foundation/lcdfs/lib/lcd"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestProbeLCD05(t *testing.T) {
	device := lcd.NewFake(lcd.ModelLCD05)

	result, err := Probe(device, false, testLogger())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	for _, c := range []Capability{CapInfo, CapDisplay, CapBacklight, CapContrast, CapBrightness, CapKeypad} {
		if !result.Capabilities.Has(c) {
			t.Errorf("capability %#x missing", c)
		}
	}
	if result.Capabilities.Has(CapLEDs) || result.Capabilities.Has(CapLock) {
		t.Error("panel capabilities present on plain LCD05")
	}

	// The probe doubles as the defaults sync.
	if result.Seed["backlight"] != "1" {
		t.Errorf("backlight seed = %q, want 1", result.Seed["backlight"])
	}
	if result.Seed["contrast"] != "255" || result.Seed["brightness"] != "255" {
		t.Errorf("level seeds = %q/%q, want 255/255", result.Seed["contrast"], result.Seed["brightness"])
	}
	if device.Contrast() != 255 {
		t.Errorf("device contrast after probe = %d, want 255", device.Contrast())
	}
}

func TestProbeLCD03HasNoLevels(t *testing.T) {
	result, err := Probe(lcd.NewFake(lcd.ModelLCD03), false, testLogger())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.Capabilities.Has(CapContrast) || result.Capabilities.Has(CapBrightness) {
		t.Error("LCD03 advertised contrast/brightness")
	}
	if !result.Capabilities.Has(CapBacklight) {
		t.Error("LCD03 backlight missing")
	}
}

func TestProbePanelWithIntegration(t *testing.T) {
	result, err := Probe(lcd.NewFake(lcd.ModelPanel), true, testLogger())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !result.Capabilities.Has(CapLEDs) || !result.Capabilities.Has(CapLock) {
		t.Error("panel capabilities missing with integration enabled")
	}
	if result.Seed["leds"] != "0" {
		t.Errorf("leds seed = %q, want 0", result.Seed["leds"])
	}
	if result.Seed["locked"] != "0" {
		t.Errorf("locked seed = %q, want 0", result.Seed["locked"])
	}
	// Panel backlight is PWM: full on is 255.
	if result.Seed["backlight"] != "255" {
		t.Errorf("backlight seed = %q, want 255", result.Seed["backlight"])
	}
}

func TestProbePanelIntegrationDisabled(t *testing.T) {
	result, err := Probe(lcd.NewFake(lcd.ModelPanel), false, testLogger())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.Capabilities.Has(CapLEDs) || result.Capabilities.Has(CapLock) {
		t.Error("panel capabilities advertised with integration disabled")
	}
}

func TestProbeUnresponsiveDevice(t *testing.T) {
	device := lcd.NewFake(lcd.ModelLCD05)
	device.FailWith("version", lcd.ErrHardware)

	if _, err := Probe(device, false, testLogger()); !errors.Is(err, ErrHardwareUnavailable) {
		t.Errorf("Probe = %v, want ErrHardwareUnavailable", err)
	}
}

func TestProbeAbortsOnHardwareFault(t *testing.T) {
	// A feature probe failing with a channel error (not
	// ErrUnsupported) is fatal, not a missing capability.
	device := lcd.NewFake(lcd.ModelLCD05)
	device.FailWith("setContrast", lcd.ErrHardware)

	if _, err := Probe(device, false, testLogger()); !errors.Is(err, ErrHardwareUnavailable) {
		t.Errorf("Probe = %v, want ErrHardwareUnavailable", err)
	}
}

func TestInfoContent(t *testing.T) {
	result, err := Probe(lcd.NewFake(lcd.ModelLCD05), false, testLogger())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	for _, want := range []string{
		fmt.Sprintf("%-16s : %d\n", "rows", 4),
		fmt.Sprintf("%-16s : %d\n", "cols", 20),
		fmt.Sprintf("%-16s : %s\n", "model", "LCD05"),
		fmt.Sprintf("%-16s : %v\n", "contrast", true),
		fmt.Sprintf("%-16s : %v\n", "locked", false),
	} {
		if !strings.Contains(result.Info, want) {
			t.Errorf("info missing row %q\ninfo:\n%s", want, result.Info)
		}
	}
}
