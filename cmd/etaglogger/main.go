// ETAG-V10
// Copyright (c) 2025 The ETAG Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of ETAG-V10.
//
// ETAG-V10 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// ETAG-V10 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ETAG-V10; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// etaglogger is the field logging daemon: it reads tags on the
// configured antenna circuits, stores detections in flash and, when a
// storage mount is given and the device is in mirrored mode, appends
// them to text files there as well.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"github.com/Eli-S-Bridge/ETAG-V10/export"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"github.com/Eli-S-Bridge/ETAG-V10/logger"
	"github.com/Eli-S-Bridge/ETAG-V10/source/gpio"
	"github.com/Eli-S-Bridge/ETAG-V10/source/uart"
	"github.com/Eli-S-Bridge/ETAG-V10/spiflash"
)

type config struct {
	sourcePath   *string
	dataPin      *string
	shutdownPins *string
	spiPort      *string
	mount        *string
	deviceID     *string
	dedupWindow  *time.Duration
	pollPause    *time.Duration
	debug        *bool
}

func parseFlags() *config {
	cfg := &config{
		sourcePath: flag.String("source", "gpio",
			"Edge source: \"gpio\" for the comparator pin, or a serial device path (e.g., /dev/ttyAMA0)."),
		dataPin: flag.String("data-pin", "GPIO17",
			"GPIO pin carrying the comparator output (gpio source only)."),
		shutdownPins: flag.String("shutdown-pins", "1:GPIO27,2:GPIO22",
			"Comma-separated circuit:pin pairs for the per-circuit shutdown lines (gpio source only)."),
		spiPort: flag.String("spi", "SPI0.0",
			"SPI port of the DataFlash chip (e.g., SPI0.0)."),
		mount: flag.String("mount", "",
			"Directory of the external store. Leave empty for flash-only logging."),
		deviceID:    flag.String("device-id", "ET01", "4-character device identifier used on first provisioning."),
		dedupWindow: flag.Duration("dedup-window", 10*time.Second, "Repeat-read suppression window."),
		pollPause:   flag.Duration("poll-pause", 10*time.Millisecond, "Idle gap between read attempts."),
		debug:       flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()

	if *cfg.debug {
		etag.SetDebug(true)
		flash.SetDebug(true)
		export.SetDebug(true)
		logger.SetDebug(true)
	}

	return cfg
}

// newEdgeSource creates an edge source from the -source flag: "gpio"
// selects the comparator pin source, anything else is treated as a
// serial device path to a head unit.
func newEdgeSource(cfg *config) (etag.EdgeSource, error) {
	if *cfg.sourcePath != "gpio" {
		src, err := uart.New(*cfg.sourcePath)
		if err != nil {
			if ports, listErr := uart.Ports(); listErr == nil && len(ports) > 0 {
				return nil, fmt.Errorf("failed to create UART edge source (available ports: %s): %w",
					strings.Join(ports, ", "), err)
			}
			return nil, fmt.Errorf("failed to create UART edge source: %w", err)
		}
		return src, nil
	}

	opts := []gpio.Option{gpio.WithDataPin(*cfg.dataPin)}
	for _, pair := range strings.Split(*cfg.shutdownPins, ",") {
		circuitText, pin, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("shutdown pin %q: want circuit:pin", pair)
		}
		circuit, err := strconv.Atoi(circuitText)
		if err != nil {
			return nil, fmt.Errorf("shutdown pin %q: %w", pair, err)
		}
		opts = append(opts, gpio.WithShutdownPin(circuit, pin))
	}
	src, err := gpio.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPIO edge source: %w", err)
	}
	return src, nil
}

// openStore opens the DataFlash chip, recovers the append cursors and
// provisions device parameters on first boot.
func openStore(cfg *config) (*flash.Store, *flash.DeviceParams, error) {
	chip, err := spiflash.New(*cfg.spiPort)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open flash chip: %w", err)
	}
	tr, err := flash.NewTranslator(chip)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create flash translator: %w", err)
	}
	store, err := flash.NewStore(tr, flash.DefaultLayout(chip.Geometry()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create flash store: %w", err)
	}
	if err := store.RecoverCursors(); err != nil {
		return nil, nil, fmt.Errorf("failed to recover flash cursors: %w", err)
	}

	defaults, err := defaultParams(cfg)
	if err != nil {
		return nil, nil, err
	}
	params, err := store.EnsureParams(defaults)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load device parameters: %w", err)
	}
	return store, params, nil
}

func defaultParams(cfg *config) (*flash.DeviceParams, error) {
	id := *cfg.deviceID
	if len(id) != 4 {
		return nil, fmt.Errorf("device id %q: want exactly 4 characters", id)
	}
	params := &flash.DeviceParams{Mode: flash.LogModeFlashOnly}
	if *cfg.mount != "" {
		params.Mode = flash.LogModeMirrored
	}
	copy(params.DeviceID[:], id)
	return params, nil
}

func buildLoop(cfg *config, reader *etag.Reader, store *flash.Store, params *flash.DeviceParams) (*logger.Loop, error) {
	loopCfg := logger.DefaultConfig()
	loopCfg.DedupWindow = *cfg.dedupWindow
	loopCfg.PollPause = *cfg.pollPause

	var ext export.Store
	if *cfg.mount != "" && params.Mode == flash.LogModeMirrored {
		dirStore, err := export.NewDirStore(*cfg.mount)
		if err != nil {
			return nil, fmt.Errorf("failed to open external store: %w", err)
		}
		ext = dirStore
		loopCfg.Mirror = true
		loopCfg.TagFile = params.ID() + "TAG.TXT"
	}

	loop, err := logger.New(reader, store, ext, loopCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging loop: %w", err)
	}

	loop.OnTagRead = func(frame *etag.TagFrame) {
		_, _ = fmt.Println(export.FormatTagFrame(frame))
	}
	loop.OnStoreDegraded = func(err error) {
		_, _ = fmt.Fprintf(os.Stderr, "external store failed, continuing flash-only: %v\n", err)
	}
	return loop, nil
}

func run() error {
	cfg := parseFlags()

	source, err := newEdgeSource(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	store, params, err := openStore(cfg)
	if err != nil {
		return err
	}
	_, _ = fmt.Printf("Device %s, mode %s, tag cursor %d, log cursor %d\n",
		params.ID(), params.Mode, store.TagCursor(), store.LogCursor())

	reader, err := etag.New(source)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}

	loop, err := buildLoop(cfg, reader, store, params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Println("Logging... press Ctrl-C to stop.")
	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Clean shutdown: no storage transaction is in flight once Run has
	// returned, so the sleep event can be recorded safely.
	if err := loop.NoteSleep(); err != nil {
		return fmt.Errorf("failed to record shutdown: %w", err)
	}
	_, _ = fmt.Println("Stopped.")
	return nil
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
