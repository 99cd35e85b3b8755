// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

// Capability identifies one hardware feature whose presence gates a
// file in the mount tree.
type Capability uint16

const (
	// CapInfo is the model/geometry description. Every device that
	// answers the probe has it.
	CapInfo Capability = 1 << iota

	// CapDisplay is the text display itself.
	CapDisplay

	// CapBacklight is backlight control (on/off or PWM level).
	CapBacklight

	// CapContrast is LCD contrast control.
	CapContrast

	// CapBrightness is backlight brightness control.
	CapBrightness

	// CapKeypad is the attached keypad.
	CapKeypad

	// CapLEDs is the arm panel's status LED bank.
	CapLEDs

	// CapLock is the arm panel's mechanical lock.
	CapLock
)

// CapabilitySet is the set of capabilities detected at probe time.
// It is computed once per mount and never changes afterwards.
type CapabilitySet uint16

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool { return uint16(s)&uint16(c) != 0 }

func (s CapabilitySet) with(c Capability) CapabilitySet {
	return CapabilitySet(uint16(s) | uint16(c))
}

// AccessMode is the filesystem access mode of a virtual file.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	WriteOnly
	ReadWrite
)

// ValueKind is how a virtual file's content is parsed and rendered.
type ValueKind int

const (
	// KindInfo is the static probe-time description blob.
	KindInfo ValueKind = iota

	// KindText is free text processed by the display terminal.
	KindText

	// KindInt is a bounded integer level.
	KindInt

	// KindBitmask is a bounded integer interpreted as a bit
	// pattern.
	KindBitmask

	// KindBool is a 0/1 flag.
	KindBool

	// KindEvent is a blocking key-event stream.
	KindEvent
)

// VirtualFile describes one node of the mount tree.
type VirtualFile struct {
	// Name is the path relative to the mount point.
	Name string

	// Access is the permitted direction of traffic.
	Access AccessMode

	// Kind decides parsing and rendering of the content.
	Kind ValueKind

	// Capability is the feature that must be present for the file
	// to exist.
	Capability Capability
}

// fileTable is the full tree surface in presentation order. BuildTree
// filters it against the probed capability set.
var fileTable = []VirtualFile{
	{Name: "info", Access: ReadOnly, Kind: KindInfo, Capability: CapInfo},
	{Name: "display", Access: WriteOnly, Kind: KindText, Capability: CapDisplay},
	{Name: "backlight", Access: ReadWrite, Kind: KindInt, Capability: CapBacklight},
	{Name: "contrast", Access: ReadWrite, Kind: KindInt, Capability: CapContrast},
	{Name: "brightness", Access: ReadWrite, Kind: KindInt, Capability: CapBrightness},
	{Name: "keys", Access: ReadOnly, Kind: KindEvent, Capability: CapKeypad},
	{Name: "leds", Access: WriteOnly, Kind: KindBitmask, Capability: CapLEDs},
	{Name: "locked", Access: ReadWrite, Kind: KindBool, Capability: CapLock},
}

// MountTree is the fixed path table of one mount: built once from the
// capability set, read-only afterwards.
type MountTree struct {
	files  []VirtualFile
	byName map[string]VirtualFile
}

// BuildTree produces the mount tree for a capability set. It is
// deterministic: the same set always yields the same paths in the
// same order. Files whose capability is absent do not exist at all.
// The info file is unconditional, so even an empty capability set
// yields a tree containing info.
func BuildTree(capabilities CapabilitySet) MountTree {
	tree := MountTree{byName: make(map[string]VirtualFile)}
	for _, file := range fileTable {
		if file.Capability != CapInfo && !capabilities.Has(file.Capability) {
			continue
		}
		tree.files = append(tree.files, file)
		tree.byName[file.Name] = file
	}
	return tree
}

// Files returns the tree entries in presentation order.
func (t MountTree) Files() []VirtualFile { return t.files }

// Lookup resolves a path to its descriptor.
func (t MountTree) Lookup(name string) (VirtualFile, bool) {
	file, ok := t.byName[name]
	return file, ok
}
