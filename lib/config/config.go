// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the lcdfs daemon.
//
// Configuration comes from a single YAML file named by the --config
// flag; command-line flags override file values. There is no
// automatic discovery and no fallback search path, so a mount's
// configuration is always auditable from its command line.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/lcdfs/lib/lcd"
)

// Config is the mount-time configuration of one lcdfs daemon.
type Config struct {
	// DevicePath is the serial device of the control channel,
	// e.g. /dev/ttyAMA0.
	DevicePath string `yaml:"device_path"`

	// BaudRate is the control channel rate. Zero selects the
	// module's fixed default (9600).
	BaudRate int `yaml:"baud_rate"`

	// Model is the controller family hint: lcd03, lcd05, or panel.
	// Capability probing still decides which files exist; the hint
	// selects the protocol variant and value ranges.
	Model string `yaml:"model"`

	// PollInterval is how often the key notifier samples the
	// keypad.
	PollInterval time.Duration `yaml:"poll_interval"`

	// TransactionTimeout bounds one control-channel transaction,
	// including the probe transactions at mount time.
	TransactionTimeout time.Duration `yaml:"transaction_timeout"`

	// ArmPanel enables the robotic-arm control panel integration
	// (the leds and locked files). Ignored unless the probed
	// hardware actually advertises the panel features.
	ArmPanel bool `yaml:"arm_panel"`

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// Splash writes the hostname to the display after mounting.
	Splash bool `yaml:"splash"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file and no flags
// are given.
func Default() Config {
	return Config{
		DevicePath:         "/dev/ttyAMA0",
		Model:              "lcd03",
		PollInterval:       100 * time.Millisecond,
		TransactionTimeout: time.Second,
		Splash:             true,
		LogLevel:           "info",
	}
}

// Load reads a YAML configuration file over the defaults. Unknown
// keys are an error; a missing file is an error (the caller asked for
// it explicitly).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values. It is called by Load and again by the
// daemon after flag overrides are applied.
func (c Config) Validate() error {
	if c.DevicePath == "" {
		return fmt.Errorf("device_path is required")
	}
	if _, err := lcd.ParseModel(c.Model); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.TransactionTimeout <= 0 {
		return fmt.Errorf("transaction_timeout must be positive, got %s", c.TransactionTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}
