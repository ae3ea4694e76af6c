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

// etagsh is the interactive operator console: inspect and change
// device parameters, list stored records, export to a mount and erase
// the chip, without restarting the logging daemon binary each time.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Eli-S-Bridge/ETAG-V10/export"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"github.com/Eli-S-Bridge/ETAG-V10/spiflash"
	"github.com/abiosoft/ishell"
)

func openStore(spiPort string) (*flash.Store, error) {
	chip, err := spiflash.New(spiPort)
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

func defaultParams() *flash.DeviceParams {
	params := &flash.DeviceParams{Mode: flash.LogModeFlashOnly}
	copy(params.DeviceID[:], "ETAG")
	return params
}

func statusCmd(store *flash.Store) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "status",
		Help: "show device parameters and region usage",
		Func: func(c *ishell.Context) {
			layout := store.Layout()
			if params, err := store.LoadParams(); err == nil {
				c.Printf("Device:     %s (mode %s)\n", params.ID(), params.Mode)
			} else {
				c.Println("Device:     not provisioned")
			}
			c.Printf("Tag bytes:  %d of %d\n", store.TagCursor()-layout.TagStart, layout.TagEnd-layout.TagStart)
			c.Printf("Log bytes:  %d of %d\n", store.LogCursor()-layout.LogStart, layout.LogEnd-layout.LogStart)
		},
	}
}

func paramsCmd(store *flash.Store) *ishell.Cmd {
	cmd := &ishell.Cmd{
		Name: "params",
		Help: "show or change device parameters",
	}
	cmd.AddCmd(&ishell.Cmd{
		Name: "set-id",
		Help: "params set-id <4-char id>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 || len(c.Args[0]) != 4 {
				c.Println("usage: params set-id <4-char id>")
				return
			}
			params, err := store.EnsureParams(defaultParams())
			if err != nil {
				c.Err(err)
				return
			}
			copy(params.DeviceID[:], c.Args[0])
			if err := store.SaveParams(params); err != nil {
				c.Err(err)
				return
			}
			c.Printf("Device id set to %s\n", params.ID())
		},
	})
	cmd.AddCmd(&ishell.Cmd{
		Name: "set-mode",
		Help: "params set-mode <flash|mirror>",
		Func: func(c *ishell.Context) {
			var mode flash.LogMode
			switch strings.Join(c.Args, "") {
			case "flash":
				mode = flash.LogModeFlashOnly
			case "mirror":
				mode = flash.LogModeMirrored
			default:
				c.Println("usage: params set-mode <flash|mirror>")
				return
			}
			params, err := store.EnsureParams(defaultParams())
			if err != nil {
				c.Err(err)
				return
			}
			params.Mode = mode
			if err := store.SaveParams(params); err != nil {
				c.Err(err)
				return
			}
			c.Printf("Logging mode set to %s\n", mode)
		},
	})
	return cmd
}

// listRegion prints every record of a region as its export line.
func listRegion(c *ishell.Context, it *flash.RecordIter) {
	n := 0
	for {
		rec, err := it.Next()
		if err != nil {
			c.Err(err)
			return
		}
		if rec == nil {
			break
		}
		c.Printf("%6d  %s\n", rec.Offset, export.FormatRecord(rec))
		n++
	}
	c.Printf("%d record(s)\n", n)
}

func listCmd(store *flash.Store) *ishell.Cmd {
	cmd := &ishell.Cmd{
		Name: "list",
		Help: "list stored records",
	}
	cmd.AddCmd(&ishell.Cmd{
		Name: "tags",
		Help: "list all tag detections",
		Func: func(c *ishell.Context) { listRegion(c, store.Tags(store.Layout().TagStart)) },
	})
	cmd.AddCmd(&ishell.Cmd{
		Name: "logs",
		Help: "list all event log records",
		Func: func(c *ishell.Context) { listRegion(c, store.Logs(store.Layout().LogStart)) },
	})
	return cmd
}

func exportCmd(store *flash.Store) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "export",
		Help: "export <dir>: write pending records to a mounted directory",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: export <dir>")
				return
			}
			ext, err := export.NewDirStore(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			rec, err := export.NewReconciler(store, ext)
			if err != nil {
				c.Err(err)
				return
			}
			id := "ETAG"
			if params, paramsErr := store.LoadParams(); paramsErr == nil {
				id = params.ID()
			}
			n, err := rec.ExportTags(id + "TAG.TXT")
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Exported %d tag record(s)\n", n)
			n, err = rec.ExportLogs(id + "LOG.TXT")
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Exported %d log record(s)\n", n)
		},
	}
}

// confirmErase asks the operator to type the region name back.
func confirmErase(c *ishell.Context, what string) bool {
	c.Printf("Type %q to confirm: ", what)
	return c.ReadLine() == what
}

func eraseCmd(store *flash.Store) *ishell.Cmd {
	cmd := &ishell.Cmd{
		Name: "erase",
		Help: "erase stored data",
	}
	cmd.AddCmd(&ishell.Cmd{
		Name: "data",
		Help: "erase tag and log regions, keep device parameters",
		Func: func(c *ishell.Context) {
			if !confirmErase(c, "data") {
				c.Println("Cancelled.")
				return
			}
			if err := store.EraseData(); err != nil {
				c.Err(err)
				return
			}
			c.Println("Data regions erased.")
		},
	})
	cmd.AddCmd(&ishell.Cmd{
		Name: "chip",
		Help: "erase the whole chip, device parameters included",
		Func: func(c *ishell.Context) {
			if !confirmErase(c, "chip") {
				c.Println("Cancelled.")
				return
			}
			if err := store.EraseChip(); err != nil {
				c.Err(err)
				return
			}
			c.Println("Chip erased.")
		},
	})
	return cmd
}

func main() {
	spiPort := flag.String("spi", "SPI0.0", "SPI port of the DataFlash chip (e.g., SPI0.0).")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

	if *debug {
		flash.SetDebug(true)
		export.SetDebug(true)
	}

	store, err := openStore(*spiPort)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	shell := ishell.New()
	shell.Println("ETAG operator console. Type \"help\" for commands.")
	shell.AddCmd(statusCmd(store))
	shell.AddCmd(paramsCmd(store))
	shell.AddCmd(listCmd(store))
	shell.AddCmd(exportCmd(store))
	shell.AddCmd(eraseCmd(store))
	shell.Run()
}
