// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// lcdfs mounts a Devantech LCD/keypad controller as a filesystem.
//
// The daemon opens the serial control channel, probes the attached
// module for its capabilities, and exposes one file per capability
// under the mountpoint: display, backlight, contrast, brightness,
// keys, and on arm control panels leds and locked. Shell scripts
// drive the hardware with plain reads and writes:
//
//	echo $'\fhello' > /mnt/lcd/display
//	echo 0 > /mnt/lcd/backlight
//	cat /mnt/lcd/keys
//
// lcdfs runs in the foreground until interrupted or unmounted.
// On shutdown it clears the display and turns the backlight off so
// an unattended panel never shows stale text.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/lcdfs/lib/config"
	"github.com/bureau-foundation/lcdfs/lib/lcd"
	"github.com/bureau-foundation/lcdfs/lib/lcdfs"
	"github.com/bureau-foundation/lcdfs/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lcdfs: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		devicePath  string
		baudRate    int
		model       string
		armPanel    bool
		allowOther  bool
		noSplash    bool
		logLevel    string
		showVersion bool
	)

	flags := pflag.NewFlagSet("lcdfs", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "YAML configuration file (flags override file values)")
	flags.StringVar(&devicePath, "device", "", "serial device of the control channel")
	flags.IntVar(&baudRate, "baud", 0, "serial baud rate (default 9600)")
	flags.StringVar(&model, "model", "", "controller model hint: lcd03, lcd05, or panel")
	pollInterval := flags.Duration("poll-interval", 0, "keypad sampling period")
	timeout := flags.Duration("timeout", 0, "serial transaction timeout")
	flags.BoolVar(&armPanel, "arm-panel", false, "probe the arm control panel features (leds, locked)")
	flags.BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	flags.BoolVar(&noSplash, "no-splash", false, "do not write the hostname to the display after mounting")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, or error")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: lcdfs [flags] MOUNTPOINT\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("lcdfs %s\n", version.Info())
		return nil
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("exactly one mountpoint argument is required")
	}
	mountpoint := flags.Arg(0)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.Changed("device") {
		cfg.DevicePath = devicePath
	}
	if flags.Changed("baud") {
		cfg.BaudRate = baudRate
	}
	if flags.Changed("model") {
		cfg.Model = model
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = *pollInterval
	}
	if flags.Changed("timeout") {
		cfg.TransactionTimeout = *timeout
	}
	if flags.Changed("arm-panel") {
		cfg.ArmPanel = armPanel
	}
	if flags.Changed("allow-other") {
		cfg.AllowOther = allowOther
	}
	if flags.Changed("no-splash") {
		cfg.Splash = !noSplash
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	parsedModel, err := lcd.ParseModel(cfg.Model)
	if err != nil {
		return err
	}
	device, err := lcd.OpenSerial(cfg.DevicePath, cfg.BaudRate, parsedModel, cfg.TransactionTimeout)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DevicePath, err)
	}
	defer device.Close()

	server, err := lcdfs.Mount(lcdfs.Options{
		Mountpoint:   mountpoint,
		Device:       device,
		PollInterval: cfg.PollInterval,
		ArmPanel:     cfg.ArmPanel,
		AllowOther:   cfg.AllowOther,
		Splash:       cfg.Splash,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", mountpoint, err)
	}

	logger.Info("mounted",
		"mountpoint", mountpoint,
		"device", cfg.DevicePath,
		"model", cfg.Model,
	)

	// Unmount on signal; Wait below returns once the kernel
	// connection closes, whether from the signal path or from an
	// external fusermount -u.
	go func() {
		<-ctx.Done()
		server.Unmount()
	}()

	server.Wait()

	// Covers external unmounts where no signal arrived. Unmount is
	// idempotent, so the signal path and this one cannot
	// double-shutdown the hardware.
	if err := server.Unmount(); err != nil {
		logger.Warn("detaching filesystem", "error", err)
	}
	logger.Info("unmounted", "mountpoint", mountpoint)
	return nil
}

func slogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
