// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lcdfs exposes a serial LCD/keypad/LED controller as a
// mountable FUSE filesystem: one file per hardware attribute, plus a
// blocking event file for key presses. Writing "128" to contrast is a
// contrast transaction on the control channel; reading keys suspends
// the caller until a key goes down.
//
// The package reconciles a stateless, multi-client filesystem
// interface with a stateful, single-channel, half-duplex hardware
// protocol:
//
//   - Probe interrogates the device once per known attribute and
//     produces the immutable capability set of the mount.
//   - BuildTree turns the capability set into the fixed file tree;
//     files whose capability is absent do not exist.
//   - StateCache owns the only path to the hardware, serializes every
//     transaction behind one lock, validates writes strictly, and
//     caches last-known values.
//   - Notifier polls the keypad in the background and hands events to
//     blocked readers through a single-slot mailbox.
//   - Mount wires it all into a go-fuse server.
//
// The hardware itself is behind lcd.Device; see the lcd package for
// the wire protocol and the test fake.
package lcdfs
