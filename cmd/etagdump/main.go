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

// etagdump exports the flash record store to text files on a mounted
// directory, resuming a previously interrupted export, and can erase
// the data regions once the export is verified.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"github.com/Eli-S-Bridge/ETAG-V10/export"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"github.com/Eli-S-Bridge/ETAG-V10/spiflash"
)

type config struct {
	spiPort   *string
	mount     *string
	eraseData *bool
	eraseChip *bool
	yes       *bool
	debug     *bool
}

func parseFlags() *config {
	cfg := &config{
		spiPort:   flag.String("spi", "SPI0.0", "SPI port of the DataFlash chip (e.g., SPI0.0)."),
		mount:     flag.String("mount", "", "Directory to export to. Leave empty to only print status."),
		eraseData: flag.Bool("erase-data", false, "Erase the tag and log regions after a successful export."),
		eraseChip: flag.Bool("erase-chip", false, "Erase the whole chip, device parameters included."),
		yes:       flag.Bool("yes", false, "Skip the confirmation prompt before erasing."),
		debug:     flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()

	if *cfg.debug {
		etag.SetDebug(true)
		flash.SetDebug(true)
		export.SetDebug(true)
	}

	return cfg
}

func openStore(cfg *config) (*flash.Store, error) {
	chip, err := spiflash.New(*cfg.spiPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash chip: %w", err)
	}
	tr, err := flash.NewTranslator(chip)
	if err != nil {
		return nil, fmt.Errorf("failed to create flash translator: %w", err)
	}
	store, err := flash.NewStore(tr, flash.DefaultLayout(chip.Geometry()))
	if err != nil {
		return nil, fmt.Errorf("failed to create flash store: %w", err)
	}
	if err := store.RecoverCursors(); err != nil {
		return nil, fmt.Errorf("failed to recover flash cursors: %w", err)
	}
	return store, nil
}

func printStatus(store *flash.Store) {
	layout := store.Layout()
	params, err := store.LoadParams()
	switch {
	case err == nil:
		_, _ = fmt.Printf("Device:     %s (mode %s)\n", params.ID(), params.Mode)
	default:
		_, _ = fmt.Println("Device:     not provisioned")
	}
	_, _ = fmt.Printf("Tag bytes:  %d of %d\n", store.TagCursor()-layout.TagStart, layout.TagEnd-layout.TagStart)
	_, _ = fmt.Printf("Log bytes:  %d of %d\n", store.LogCursor()-layout.LogStart, layout.LogEnd-layout.LogStart)
}

func exportAll(store *flash.Store, mount string) error {
	ext, err := export.NewDirStore(mount)
	if err != nil {
		return fmt.Errorf("failed to open export directory: %w", err)
	}
	rec, err := export.NewReconciler(store, ext)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}

	id := "ETAG"
	if params, paramsErr := store.LoadParams(); paramsErr == nil {
		id = params.ID()
	}

	n, err := rec.ExportTags(id + "TAG.TXT")
	if err != nil {
		return fmt.Errorf("tag export failed: %w", err)
	}
	_, _ = fmt.Printf("Exported %d tag record(s) to %sTAG.TXT\n", n, id)

	n, err = rec.ExportLogs(id + "LOG.TXT")
	if err != nil {
		return fmt.Errorf("log export failed: %w", err)
	}
	_, _ = fmt.Printf("Exported %d log record(s) to %sLOG.TXT\n", n, id)
	return nil
}

// confirm asks the operator to type "yes" before a destructive step.
func confirm(what string) bool {
	_, _ = fmt.Printf("About to %s. This cannot be undone. Type \"yes\" to continue: ", what)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

func erase(cfg *config, store *flash.Store) error {
	switch {
	case *cfg.eraseChip:
		if !*cfg.yes && !confirm("erase the WHOLE chip, device parameters included") {
			return fmt.Errorf("chip erase cancelled")
		}
		if err := store.EraseChip(); err != nil {
			return fmt.Errorf("chip erase failed: %w", err)
		}
		_, _ = fmt.Println("Chip erased.")
	case *cfg.eraseData:
		if !*cfg.yes && !confirm("erase all tag and log records") {
			return fmt.Errorf("data erase cancelled")
		}
		if err := store.EraseData(); err != nil {
			return fmt.Errorf("data erase failed: %w", err)
		}
		_, _ = fmt.Println("Data regions erased; device parameters kept.")
	}
	return nil
}

func run() error {
	cfg := parseFlags()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	printStatus(store)

	if *cfg.mount != "" {
		if err := exportAll(store, *cfg.mount); err != nil {
			return err
		}
	} else if *cfg.eraseData && !*cfg.yes {
		_, _ = fmt.Println("Note: erasing without exporting first discards all records.")
	}

	return erase(cfg, store)
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
