// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"reflect"
	"testing"
)

func names(tree MountTree) []string {
	var out []string
	for _, file := range tree.Files() {
		out = append(out, file.Name)
	}
	return out
}

func TestBuildTreeFullPanel(t *testing.T) {
	set := CapabilitySet(0).
		with(CapInfo).with(CapDisplay).with(CapBacklight).with(CapContrast).
		with(CapBrightness).with(CapKeypad).with(CapLEDs).with(CapLock)

	got := names(BuildTree(set))
	want := []string{"info", "display", "backlight", "contrast", "brightness", "keys", "leds", "locked"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestBuildTreeEmptySetYieldsInfoOnly(t *testing.T) {
	got := names(BuildTree(0))
	if !reflect.DeepEqual(got, []string{"info"}) {
		t.Errorf("paths = %v, want [info]", got)
	}
}

func TestBuildTreeGatesAbsentCapabilities(t *testing.T) {
	set := CapabilitySet(0).with(CapInfo).with(CapDisplay).with(CapBacklight).with(CapKeypad)
	tree := BuildTree(set)

	if _, ok := tree.Lookup("locked"); ok {
		t.Error("locked exists without the lock capability")
	}
	if _, ok := tree.Lookup("contrast"); ok {
		t.Error("contrast exists without the contrast capability")
	}
	if _, ok := tree.Lookup("backlight"); !ok {
		t.Error("backlight missing despite its capability")
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	set := CapabilitySet(0).with(CapInfo).with(CapDisplay).with(CapKeypad)
	if !reflect.DeepEqual(names(BuildTree(set)), names(BuildTree(set))) {
		t.Error("two builds of the same set differ")
	}
}

func TestFileTableModes(t *testing.T) {
	tree := BuildTree(^CapabilitySet(0))

	modes := map[string]AccessMode{}
	for _, file := range tree.Files() {
		modes[file.Name] = file.Access
	}

	if modes["info"] != ReadOnly || modes["keys"] != ReadOnly {
		t.Error("info and keys must be read-only")
	}
	if modes["display"] != WriteOnly || modes["leds"] != WriteOnly {
		t.Error("display and leds must be write-only")
	}
	if modes["locked"] != ReadWrite || modes["contrast"] != ReadWrite {
		t.Error("locked and contrast must be read-write")
	}
}
