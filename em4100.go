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

const (
	// em4100Preamble is the number of consecutive one bits that mark the
	// start of an EM4100 id code.
	em4100Preamble = 9

	// em4100Rows is the number of data rows (10 data rows plus one
	// column-parity row tracked as index 10).
	em4100Rows = 10

	// em4100FailMask has one bit set per row parity check plus one for
	// the column check; a read is complete when every bit has been
	// cleared.
	em4100FailMask = 0x07FF
)

// EM4100Decoder accumulates classified pulses into an EM4100 frame.
//
// The frame is 9 preamble ones followed by eleven 5-bit rows: ten rows
// of 4 data bits plus a row-parity bit, then 4 column-parity bits and a
// stop bit. Row parity mismatches are accumulated in a failure bitmask
// rather than aborting, so a frame repeated by the tag can still
// complete inside the read window. Any invalid pulse restarts the
// accumulator without reporting a failure.
//
// The zero value is not usable; call NewEM4100Decoder.
type EM4100Decoder struct {
	rows       [16]byte
	parityFail uint16
	pulseCount int
	ones       int
	rowIdx     int
	bitIdx     int
	rowParity  byte
	longSeen   bool
	pastLong   bool
}

// NewEM4100Decoder returns a decoder ready to seek a preamble.
func NewEM4100Decoder() *EM4100Decoder {
	d := &EM4100Decoder{}
	d.Reset()
	return d
}

// Reset returns the decoder to its initial state, including the pulse
// counter used by the presence check.
func (d *EM4100Decoder) Reset() {
	d.restart()
	d.pulseCount = 0
}

// Protocol returns ProtocolEM4100.
func (*EM4100Decoder) Protocol() Protocol { return ProtocolEM4100 }

// PulseCount reports how many classifiable pulses have arrived since
// the last Reset. The presence check uses it to bail out early when no
// tag is modulating the field.
func (d *EM4100Decoder) PulseCount() int { return d.pulseCount }

// Complete reports whether a fully validated frame has been
// accumulated: all eleven failure-mask bits cleared.
func (d *EM4100Decoder) Complete() bool { return d.parityFail == 0 }

// Feed advances the state machine by one demodulated edge. It performs
// no allocation and never blocks; it is safe to call from the edge
// delivery path.
func (d *EM4100Decoder) Feed(e Edge) {
	if d.Complete() {
		return
	}
	switch Classify(e.DeltaMicros, ProtocolEM4100) {
	case SymbolLong:
		d.pulseCount++
		d.longSeen = true
		d.pastLong = true
		d.bit(e.Level)
	case SymbolShort:
		d.pulseCount++
		// A short pulse only carries a bit once a long pulse has been
		// seen and the previous pulse completed a bit cell; the first
		// of two consecutive shorts is a half-cell transition.
		if d.longSeen && d.pastLong {
			d.bit(e.Level)
			d.pastLong = false
		} else {
			d.pastLong = true
		}
	default:
		if d.pulseCount != 0 {
			d.restart()
		}
	}
}

// bit routes a decoded bit either to the preamble one-counter or, once
// nine consecutive ones have been seen, to the row accumulator.
func (d *EM4100Decoder) bit(level bool) {
	if d.ones < em4100Preamble {
		if level {
			d.ones++
		} else {
			d.ones = 0
		}
		return
	}
	d.accumulate(level)
}

// accumulate stores one id bit. Bit indices count down from 4 to 0
// within a row; index 0 is the row-parity bit (or the stop bit on the
// final row), which triggers the row or column check.
func (d *EM4100Decoder) accumulate(level bool) {
	if level {
		d.rows[d.rowIdx] |= 1 << d.bitIdx
	} else {
		d.rows[d.rowIdx] &^= 1 << d.bitIdx
	}
	if d.bitIdx > 0 {
		if level {
			d.rowParity ^= 1
		}
		d.bitIdx--
		return
	}

	if d.rowIdx < em4100Rows {
		// End of a data row: check the XOR of the 4 data bits against
		// the row-parity bit and record the outcome in the mask.
		row := d.rows[d.rowIdx]
		want := (row>>4 ^ row>>3 ^ row>>2 ^ row>>1) & 1
		if want == row&1 {
			d.parityFail &^= 1 << d.rowIdx
		} else {
			d.parityFail |= 1 << d.rowIdx
		}
		d.rowParity = 0
		d.rowIdx++
		d.bitIdx = 4
		return
	}

	// Last bit of the column-parity row: XOR every data column across
	// the ten data rows and the parity row; a clean read XORs to zero.
	xor := (d.rows[em4100Rows] & 0x1F) >> 1
	for i := 0; i < em4100Rows; i++ {
		xor ^= d.rows[i] >> 1
	}
	if xor == 0 {
		d.parityFail &^= 1 << em4100Rows
	}
}

// restart abandons the frame in progress. The pulse counter survives
// so the presence check still sees field activity.
func (d *EM4100Decoder) restart() {
	d.rowParity = 0
	d.parityFail = em4100FailMask
	d.ones = 0
	d.longSeen = false
	d.pastLong = false
	d.rowIdx = 0
	d.bitIdx = 4
	d.rows = [16]byte{}
}

// Frame packs the accumulated rows into a 5-byte tag id, two 4-bit
// rows per byte, high nibble first. It returns nil until Complete.
func (d *EM4100Decoder) Frame() *TagFrame {
	if !d.Complete() {
		return nil
	}
	id := make([]byte, 5)
	for i := range id {
		id[i] = d.rows[2*i]<<3&0xF0 | d.rows[2*i+1]>>1&0x0F
	}
	return &TagFrame{Protocol: ProtocolEM4100, ID: id}
}
