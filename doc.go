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

/*
Package etag implements the tag-reading core of a battery-powered RFID
field logger: Manchester/biphase pulse classification, EM4100 and
ISO 11784/5 (FDX-B) decode state machines, and the read-attempt
sequencing that drives them against a hardware edge source.

The demodulated output of an RFID front end (such as an EM4095) is a
stream of electrical transitions. Each transition is delivered to this
package as an Edge carrying the microsecond interval since the previous
transition and the pin level after it. Edges are classified into short,
long or invalid pulses per protocol, and fed to a per-protocol decoder
that accumulates bits, validates row/column parity (EM4100) or a
CRC-16 (ISO 11784/5), and produces a TagFrame once a whole frame checks
out. Partial or failing frames are never surfaced; an invalid pulse
simply restarts the accumulator.

Basic usage:

	import (
	    etag "github.com/Eli-S-Bridge/ETAG-V10"
	    "github.com/Eli-S-Bridge/ETAG-V10/source/gpio"
	)

	src, err := gpio.New(
	    gpio.WithDataPin("GPIO17"),
	    gpio.WithShutdownPin(1, "GPIO27"),
	    gpio.WithShutdownPin(2, "GPIO22"),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer src.Close()

	reader, err := etag.New(src,
	    etag.WithCheckDelay(50*time.Millisecond),
	    etag.WithReadTimeout(500*time.Millisecond),
	)
	if err != nil {
	    log.Fatal(err)
	}

	frame, err := reader.ReadTag(ctx, 1, etag.ProtocolEM4100)
	if errors.Is(err, etag.ErrNoTag) {
	    // nothing in the field this cycle
	} else if err == nil {
	    fmt.Println(frame.IDString())
	}

Edge sources:

The library ships two EdgeSource implementations:

  - source/gpio: edge interrupts straight from a demodulator pin via
    periph.io, including antenna shutdown pin control
  - source/uart: a serial-attached capture head streaming measured
    pulse intervals, useful for hosted development and replay

Storage:

Decoded reads are persisted by the flash package (append-only record
store over a page-organized DataFlash chip) and mirrored to removable
media by the export package. The logger package ties reading, dedup and
storage together into the field logging loop.

Error handling:

Decode failures are not errors. ReadTag returns ErrNoTag when the
presence check sees too few pulses and ErrReadTimeout when the full
read window expires without a validated frame; both are transient and
recognized by IsTransient.

Concurrency:

A Reader is not safe for concurrent use. One read attempt is in flight
at a time; the edge source is started before the attempt and stopped
unconditionally when it ends, so exactly one antenna circuit is ever
energized.
*/
package etag
