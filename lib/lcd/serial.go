// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcd

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Control bytes of the Devantech serial protocol. Bytes 32..255 are
// printed as text; bytes below 32 are commands, some with parameter
// bytes following. The panel firmware extends the command set in the
// 21..26 range, which the stock modules leave unassigned.
const (
	cmdHome          = 1  // cursor to line 1, column 1
	cmdSetCursorPos  = 2  // + position byte
	cmdSetCursor     = 3  // + line byte + column byte
	cmdHideCursor    = 4
	reqKeypad        = 7  // responds: low byte, high byte
	cmdBackspace     = 8
	cmdHorizontalTab = 9
	cmdLineDown      = 10
	cmdLineUp        = 11
	cmdClear         = 12
	cmdCarriageRet   = 13
	reqVersion       = 14 // responds: one version byte
	cmdClearColumn   = 17
	cmdTabSet        = 18 // + tab size byte
	cmdBacklightOn   = 19
	cmdBacklightOff  = 20

	// Panel firmware extensions.
	cmdSetLEDs       = 21 // + mask byte
	reqLockState     = 22 // responds: 0 or 1
	cmdSetLock       = 23 // + state byte
	cmdSetContrast   = 24 // + level byte (LCD05 and panel)
	cmdSetBrightness = 25 // + level byte (LCD05 and panel)
	cmdBacklightPWM  = 26 // + level byte (panel only)
)

// port is the serial link under the protocol driver. Satisfied by
// go.bug.st/serial.Port; tests substitute an in-memory pipe.
type port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// SerialDevice drives a Devantech module over a serial port. Methods
// are blocking transactions; the caller serializes access.
type SerialDevice struct {
	port    port
	model   Model
	timeout time.Duration
}

var _ Device = (*SerialDevice)(nil)

// DefaultBaudRate is the fixed rate of the Devantech serial modules.
const DefaultBaudRate = 9600

// OpenSerial opens the control channel at path and returns a driver
// for the given model. The timeout bounds how long a transaction
// waits for a device response.
func OpenSerial(path string, baudRate int, model Model, timeout time.Duration) (*SerialDevice, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	p, err := serial.Open(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("opening control channel %s: %w", path, err)
	}
	return newSerialDevice(p, model, timeout), nil
}

func newSerialDevice(p port, model Model, timeout time.Duration) *SerialDevice {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &SerialDevice{port: p, model: model, timeout: timeout}
}

// Model returns the controller family this driver was opened for.
func (d *SerialDevice) Model() Model { return d.model }

func (d *SerialDevice) Version() (int, error) {
	resp, err := d.transact([]byte{reqVersion}, 1)
	if err != nil {
		return 0, err
	}
	return int(resp[0]), nil
}

// Geometry reports the character grid. All supported modules are
// 4x20; the 2x16 LCD03 variant is not handled.
func (d *SerialDevice) Geometry() (Geometry, error) {
	return Geometry{Rows: 4, Cols: 20}, nil
}

func (d *SerialDevice) Clear() error {
	return d.send(cmdClear)
}

func (d *SerialDevice) SetCursor(line, col int) error {
	if line < 1 || col < 1 {
		return fmt.Errorf("cursor position %d,%d out of range: %w", line, col, ErrHardware)
	}
	return d.send(cmdSetCursor, byte(line), byte(col))
}

func (d *SerialDevice) WriteText(s string) error {
	return d.send([]byte(s)...)
}

func (d *SerialDevice) SetBacklight(level int) error {
	if d.model == ModelPanel {
		return d.send(cmdBacklightPWM, byte(level))
	}
	if level == 0 {
		return d.send(cmdBacklightOff)
	}
	return d.send(cmdBacklightOn)
}

func (d *SerialDevice) SetBrightness(level int) error {
	if d.model == ModelLCD03 {
		return ErrUnsupported
	}
	return d.send(cmdSetBrightness, byte(level))
}

func (d *SerialDevice) SetContrast(level int) error {
	if d.model == ModelLCD03 {
		return ErrUnsupported
	}
	return d.send(cmdSetContrast, byte(level))
}

func (d *SerialDevice) SetLEDs(mask int) error {
	if d.model != ModelPanel {
		return ErrUnsupported
	}
	return d.send(cmdSetLEDs, byte(mask))
}

func (d *SerialDevice) KeypadState() (int, error) {
	resp, err := d.transact([]byte{reqKeypad}, 2)
	if err != nil {
		return 0, err
	}
	return int(resp[0]) | int(resp[1])<<8, nil
}

func (d *SerialDevice) LockState() (bool, error) {
	if d.model != ModelPanel {
		return false, ErrUnsupported
	}
	resp, err := d.transact([]byte{reqLockState}, 1)
	if err != nil {
		return false, err
	}
	return resp[0] != 0, nil
}

func (d *SerialDevice) SetLock(engaged bool) error {
	if d.model != ModelPanel {
		return ErrUnsupported
	}
	state := byte(0)
	if engaged {
		state = 1
	}
	return d.send(cmdSetLock, state)
}

func (d *SerialDevice) Close() error {
	return d.port.Close()
}

// send issues a command that carries no response. The module has a
// 64-byte FIFO and never acknowledges commands, so completion of the
// port write is completion of the transaction.
func (d *SerialDevice) send(data ...byte) error {
	if _, err := d.port.Write(data); err != nil {
		return fmt.Errorf("writing command 0x%02x: %v: %w", data[0], err, ErrHardware)
	}
	return nil
}

// transact issues a request and reads exactly respLen response bytes.
// Stale bytes in the input buffer (from an earlier aborted request)
// are discarded first so the response frame cannot be misaligned.
func (d *SerialDevice) transact(request []byte, respLen int) ([]byte, error) {
	if err := d.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("flushing input buffer: %v: %w", err, ErrHardware)
	}
	if err := d.port.SetReadTimeout(d.timeout); err != nil {
		return nil, fmt.Errorf("arming read timeout: %v: %w", err, ErrHardware)
	}
	if _, err := d.port.Write(request); err != nil {
		return nil, fmt.Errorf("writing request 0x%02x: %v: %w", request[0], err, ErrHardware)
	}

	resp := make([]byte, respLen)
	filled := 0
	for filled < respLen {
		n, err := d.port.Read(resp[filled:])
		if err != nil {
			return nil, fmt.Errorf("reading response to 0x%02x: %v: %w", request[0], err, ErrHardware)
		}
		if n == 0 {
			// go.bug.st/serial reports a read timeout as a
			// zero-byte read with nil error.
			return nil, fmt.Errorf("no response to 0x%02x within %s: %w", request[0], d.timeout, ErrHardware)
		}
		filled += n
	}
	return resp, nil
}
