// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lcdfs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
device_path: /dev/ttyUSB3
model: panel
poll_interval: 250ms
arm_panel: true
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DevicePath != "/dev/ttyUSB3" {
		t.Errorf("DevicePath = %q", cfg.DevicePath)
	}
	if cfg.Model != "panel" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if !cfg.ArmPanel {
		t.Error("ArmPanel not set")
	}
	// Untouched fields keep their defaults.
	if cfg.TransactionTimeout != time.Second {
		t.Errorf("TransactionTimeout = %s, want default 1s", cfg.TransactionTimeout)
	}
	if !cfg.Splash {
		t.Error("Splash default lost")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "device_path: /dev/ttyS0\nbogus_key: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unknown key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"empty device", func(c *Config) { c.DevicePath = "" }, "device_path"},
		{"bad model", func(c *Config) { c.Model = "lcd99" }, "model"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"negative timeout", func(c *Config) { c.TransactionTimeout = -time.Second }, "transaction_timeout"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
