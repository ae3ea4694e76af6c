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

package etag

// Edge is one demodulated transition on the RFID input pin: the time
// elapsed since the previous transition and the pin level after it.
// Edges are ephemeral; they are produced by the hardware callback and
// consumed immediately by a decoder.
type Edge struct {
	// DeltaMicros is the interval since the previous transition, in
	// microseconds.
	DeltaMicros uint32
	// Level is the pin level after the transition.
	Level bool
}

// EdgeSource delivers demodulated pulse edges from an RFID front end.
// This can be implemented by GPIO edge interrupts, a serial capture
// head, or a mock for testing.
//
// The producer side must be non-blocking: when the consumer falls
// behind, edges are dropped rather than buffered without bound. Only
// one antenna circuit is energized at a time; Start energizes the
// requested circuit and Stop powers every circuit down again.
type EdgeSource interface {
	// Start energizes the given antenna circuit (1-based) and begins
	// delivering edges on the channel returned by Edges.
	Start(circuit int) error

	// Edges returns the channel edges are delivered on. The channel is
	// owned by the source and is only valid between Start and Stop.
	Edges() <-chan Edge

	// Stop detaches edge delivery and powers down all antenna circuits.
	Stop() error

	// Close releases the source's hardware resources.
	Close() error
}

// SourceType represents the kind of edge source
type SourceType string

const (
	// SourceGPIO represents direct GPIO edge interrupts.
	SourceGPIO SourceType = "gpio"
	// SourceUART represents a serial-attached capture head.
	SourceUART SourceType = "uart"
	// SourceMock represents a mock source for testing
	SourceMock SourceType = "mock"
)
