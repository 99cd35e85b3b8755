// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/lcdfs/lib/lcd"
)

// terminal translates display file payloads into device transactions.
// It tracks the cursor so plain text wraps at the display's column
// count, and it understands a small control vocabulary:
//
//	\f          clear the display, cursor home
//	\n          next line, column 1 (wraps back to line 1)
//	\r          column 1 on the current line
//	ESC [ l ; c H   absolute cursor position (1-based)
//
// Anything else below 0x20 is dropped. Malformed escape sequences and
// cursor targets outside the geometry are rejected as ErrInvalidValue
// before any byte reaches the device.
//
// The caller holds the channel lock while process runs.
type terminal struct {
	device   lcd.Device
	geometry lcd.Geometry
	line     int
	col      int
}

func newTerminal(device lcd.Device, geometry lcd.Geometry) *terminal {
	return &terminal{device: device, geometry: geometry, line: 1, col: 1}
}

// process executes one display write. Sequences are validated
// up-front so that an invalid payload performs no transaction at all.
func (t *terminal) process(data string) error {
	ops, err := t.compile(data)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

// compile parses the payload into a sequence of device operations.
func (t *terminal) compile(data string) ([]func() error, error) {
	var ops []func() error

	// Cursor tracking during compilation; committed by the ops as
	// they run against the device.
	line, col := t.line, t.col

	moveTo := func(l, c int) {
		line, col = l, c
		ops = append(ops, func() error {
			t.line, t.col = l, c
			return t.device.SetCursor(l, c)
		})
	}

	emitText := func(run string) {
		for len(run) > 0 {
			remaining := t.geometry.Cols - col + 1
			if remaining <= 0 {
				next := line%t.geometry.Rows + 1
				moveTo(next, 1)
				remaining = t.geometry.Cols
			}
			chunk := run
			if len(chunk) > remaining {
				chunk = chunk[:remaining]
			}
			run = run[len(chunk):]

			piece := chunk
			endCol := col + len(piece)
			endLine := line
			ops = append(ops, func() error {
				if err := t.device.WriteText(piece); err != nil {
					return err
				}
				t.line, t.col = endLine, endCol
				return nil
			})
			line, col = endLine, endCol
		}
	}

	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b == '\f':
			line, col = 1, 1
			ops = append(ops, func() error {
				t.line, t.col = 1, 1
				return t.device.Clear()
			})
			i++
		case b == '\n':
			moveTo(line%t.geometry.Rows+1, 1)
			i++
		case b == '\r':
			moveTo(line, 1)
			i++
		case b == 0x1b:
			l, c, length, err := parseCursorSequence(data[i:])
			if err != nil {
				return nil, err
			}
			if l < 1 || l > t.geometry.Rows || c < 1 || c > t.geometry.Cols {
				return nil, fmt.Errorf("cursor %d;%d outside %dx%d display: %w",
					l, c, t.geometry.Rows, t.geometry.Cols, ErrInvalidValue)
			}
			moveTo(l, c)
			i += length
		case b < 0x20:
			i++
		default:
			end := i
			for end < len(data) && data[end] >= 0x20 && data[end] != 0x1b {
				end++
			}
			emitText(data[i:end])
			i = end
		}
	}
	return ops, nil
}

// parseCursorSequence parses "ESC [ line ; col H" at the start of s
// and returns the target plus the consumed length.
func parseCursorSequence(s string) (line, col, length int, err error) {
	end := strings.IndexByte(s, 'H')
	if len(s) < 2 || s[1] != '[' || end < 0 {
		return 0, 0, 0, fmt.Errorf("malformed escape sequence: %w", ErrInvalidValue)
	}
	body := s[2:end]

	if _, err := fmt.Sscanf(body+";", "%d;%d;", &line, &col); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed cursor sequence %q: %w", s[:end+1], ErrInvalidValue)
	}
	return line, col, end + 1, nil
}
