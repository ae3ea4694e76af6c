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

// Package testing provides synthetic pulse streams and sample tag data
// for exercising the decoders without radio hardware.
package testing

import (
	etag "github.com/Eli-S-Bridge/ETAG-V10"
)

// Pulse durations in microseconds, centered in the classifier windows.
const (
	EMShortUS  = 250
	EMLongUS   = 480
	ISOShortUS = 120
	ISOLongUS  = 240
)

// Sample tag identities used across tests.
var (
	// TestEMID is a sample EM4100 tag id.
	TestEMID = [5]byte{0x01, 0x02, 0x03, 0x04, 0x05}

	// TestISOPayload is a sample FDX-B payload: 38-bit national id
	// 0x12345678 (least-significant byte first), country code 982,
	// animal flag set.
	TestISOPayload = [8]byte{0x78, 0x56, 0x34, 0x12, 0x92, 0xF5, 0x01, 0x00}

	// TestISOTemp is the sample temperature trailer byte.
	TestISOTemp = byte(0x42)
)

// EM4100Bits expands a 5-byte tag id into the 64-bit over-the-air
// frame: 9 preamble ones, ten rows of 4 data bits plus row parity,
// 4 column-parity bits and the zero stop bit.
func EM4100Bits(id [5]byte) []bool {
	bits := make([]bool, 0, 64)
	for i := 0; i < 9; i++ {
		bits = append(bits, true)
	}
	var cols [4]byte
	for _, b := range id {
		for _, nib := range []byte{b >> 4, b & 0x0F} {
			parity := byte(0)
			for j := 3; j >= 0; j-- {
				bit := nib >> j & 1
				bits = append(bits, bit == 1)
				parity ^= bit
				cols[3-j] ^= bit
			}
			bits = append(bits, parity == 1)
		}
	}
	for c := 0; c < 4; c++ {
		bits = append(bits, cols[c] == 1)
	}
	bits = append(bits, false) // stop bit
	return bits
}

// EMEdgesFromBits renders a bit sequence as one long pulse per bit,
// level carrying the bit value, with a lead-in edge of garbage timing
// the way a freshly attached interrupt sees one.
func EMEdgesFromBits(bits []bool) []etag.Edge {
	edges := make([]etag.Edge, 0, len(bits)+1)
	edges = append(edges, etag.Edge{DeltaMicros: 10000})
	for _, b := range bits {
		edges = append(edges, etag.Edge{DeltaMicros: EMLongUS, Level: b})
	}
	return edges
}

// EM4100Edges is the common case: a clean long-pulse rendering of the
// full frame for the given id.
func EM4100Edges(id [5]byte) []etag.Edge {
	return EMEdgesFromBits(EM4100Bits(id))
}

// EM4100EdgesMixed renders every other bit as a short pulse directly
// following a long one - the qualified-short path of the decoder, where
// the first short after a completed long cell carries the bit.
func EM4100EdgesMixed(id [5]byte) []etag.Edge {
	bits := EM4100Bits(id)
	edges := make([]etag.Edge, 0, len(bits)+1)
	edges = append(edges, etag.Edge{DeltaMicros: 10000})
	for i, b := range bits {
		if i%2 == 1 {
			edges = append(edges, etag.Edge{DeltaMicros: EMShortUS, Level: b})
			continue
		}
		edges = append(edges, etag.Edge{DeltaMicros: EMLongUS, Level: b})
	}
	return edges
}

// ISOFrame assembles the 13 over-the-air bytes of an FDX-B frame:
// payload, CRC-16 (LSB first) and trailer with the temperature byte.
func ISOFrame(payload [8]byte, temp byte) [13]byte {
	var f [13]byte
	copy(f[:8], payload[:])
	crc := etag.CRC16Kermit(0, payload[:])
	f[8] = byte(crc)
	f[9] = byte(crc >> 8)
	f[10] = temp
	return f
}

// ISOEdgesFromFrame renders assembled frame bytes as a pulse stream:
// ten-zero header, header terminator, then each byte LSB first with a
// control one bit after it. Zero bits become short pulse pairs, one
// bits long pulses.
func ISOEdgesFromFrame(frame [13]byte) []etag.Edge {
	var edges []etag.Edge
	zero := func() {
		edges = append(edges,
			etag.Edge{DeltaMicros: ISOShortUS},
			etag.Edge{DeltaMicros: ISOShortUS})
	}
	one := func() {
		edges = append(edges, etag.Edge{DeltaMicros: ISOLongUS})
	}

	edges = append(edges, etag.Edge{DeltaMicros: 10000}) // lead-in garbage
	for i := 0; i < 10; i++ {
		zero()
	}
	one() // header terminator
	for i, b := range frame {
		for bit := 0; bit < 8; bit++ {
			if b>>bit&1 == 1 {
				one()
			} else {
				zero()
			}
		}
		if i < len(frame)-1 {
			one() // control bit
		}
	}
	one() // completion trigger after the final byte
	return edges
}

// ISOEdges builds the pulse stream for a payload and temperature.
func ISOEdges(payload [8]byte, temp byte) []etag.Edge {
	return ISOEdgesFromFrame(ISOFrame(payload, temp))
}

// Noise returns a stream of n pulses of unclassifiable timing, the
// kind of chatter an empty field produces.
func Noise(n int) []etag.Edge {
	edges := make([]etag.Edge, n)
	for i := range edges {
		edges[i] = etag.Edge{DeltaMicros: 50 + uint32(i%30)}
	}
	return edges
}
