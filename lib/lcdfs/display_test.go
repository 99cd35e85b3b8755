// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/lcdfs/lib/lcd"
)

func newTestTerminal() (*terminal, *lcd.Fake) {
	device := lcd.NewFake(lcd.ModelLCD05)
	return newTerminal(device, lcd.Geometry{Rows: 4, Cols: 20}), device
}

func TestTerminalPlainTextWraps(t *testing.T) {
	term, device := newTestTerminal()

	long := strings.Repeat("x", 20) + "abcde"
	if err := term.process(long); err != nil {
		t.Fatalf("process: %v", err)
	}

	want := []string{
		"writeText " + strings.Repeat("x", 20),
		"setCursor 2 1",
		"writeText abcde",
	}
	if got := device.Transactions(); !reflect.DeepEqual(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
}

func TestTerminalFormFeedClears(t *testing.T) {
	term, device := newTestTerminal()

	if err := term.process("\fhi"); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"clear", "writeText hi"}
	if got := device.Transactions(); !reflect.DeepEqual(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
}

func TestTerminalNewlineAdvances(t *testing.T) {
	term, device := newTestTerminal()

	if err := term.process("a\nb"); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"writeText a", "setCursor 2 1", "writeText b"}
	if got := device.Transactions(); !reflect.DeepEqual(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
}

func TestTerminalNewlineWrapsToTop(t *testing.T) {
	term, device := newTestTerminal()

	if err := term.process("\n\n\n\n"); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"setCursor 2 1", "setCursor 3 1", "setCursor 4 1", "setCursor 1 1"}
	if got := device.Transactions(); !reflect.DeepEqual(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
}

func TestTerminalCursorSequence(t *testing.T) {
	term, device := newTestTerminal()

	if err := term.process("\x1b[2;5Hok"); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"setCursor 2 5", "writeText ok"}
	if got := device.Transactions(); !reflect.DeepEqual(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
}

func TestTerminalRejectsOutOfRangeCursor(t *testing.T) {
	term, device := newTestTerminal()

	err := term.process("\x1b[9;1Hx")
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("process = %v, want ErrInvalidValue", err)
	}
	if got := device.Transactions(); len(got) != 0 {
		t.Errorf("invalid payload reached the device: %v", got)
	}
}

func TestTerminalRejectsMalformedSequence(t *testing.T) {
	term, _ := newTestTerminal()

	for _, payload := range []string{"\x1b[2H", "\x1bist", "\x1b[a;bH"} {
		if err := term.process(payload); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("process(%q) = %v, want ErrInvalidValue", payload, err)
		}
	}
}

func TestTerminalDropsUnknownControls(t *testing.T) {
	term, device := newTestTerminal()

	if err := term.process("a\x01b"); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"writeText a", "writeText b"}
	if got := device.Transactions(); !reflect.DeepEqual(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
}
