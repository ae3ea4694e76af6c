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
	// isoZeroRun is the bit pattern width of the header detector: ten
	// consecutive zero bits open an FDX-B frame.
	isoZeroRunMask = 0x03FF

	// isoPayloadLen is the number of bytes covered by the CRC.
	isoPayloadLen = 8

	// isoCRCLowIdx and isoCRCHighIdx hold the transmitted CRC,
	// least-significant byte first.
	isoCRCLowIdx  = 8
	isoCRCHighIdx = 9

	// isoTempIdx is the trailer byte carrying the temperature reading
	// on tags that have the sensor option.
	isoTempIdx = 10

	// isoLastByteIdx is the final trailer byte; the frame is done once
	// it has been read in full.
	isoLastByteIdx = 12
)

// crcState tracks CRC validation progress across the frame.
type crcState uint8

const (
	crcNone    crcState = 0 // not yet checked, or check failed
	crcChecked crcState = 1 // payload CRC matched, trailer pending
	crcDone    crcState = 3 // frame complete with valid CRC
)

// isoAction is the execution path selected for one pulse.
type isoAction uint8

const (
	isoRestart isoAction = iota // pulse outside both windows
	isoShort
	isoLong
	isoFinish
)

// ISODecoder accumulates classified pulses into an ISO 11784/5 FDX-B
// frame: a run of ten zero bits and a one bit as header, then bytes
// transmitted least-significant bit first, each followed by a control
// one bit. Bytes 0-7 are payload, bytes 8-9 the CRC-16 (poly 0x8408,
// reflected, initial value 0) and bytes 10-12 trailer data, with the
// temperature reading in byte 10.
//
// In the biphase line code a zero bit arrives as two short pulses; the
// second short of the pair carries no information and is skipped to
// avoid double counting. A CRC mismatch or an invalid pulse restarts
// the header search silently.
//
// The zero value is not usable; call NewISODecoder.
type ISODecoder struct {
	bytes       [16]byte
	crc         uint16
	zeroRun     uint16
	pulseCount  int
	byteIdx     int
	bitIdx      int
	state       crcState
	secondShort bool
}

// NewISODecoder returns a decoder ready to seek a header.
func NewISODecoder() *ISODecoder {
	d := &ISODecoder{}
	d.Reset()
	return d
}

// Reset returns the decoder to its initial state, including the pulse
// counter used by the presence check.
func (d *ISODecoder) Reset() {
	d.resync()
	d.state = crcNone
	d.secondShort = false
	d.crc = 0
	d.pulseCount = 0
}

// resync restarts the search for the ten-zero header.
func (d *ISODecoder) resync() {
	d.byteIdx = 0
	d.bitIdx = 10
	d.zeroRun = 0xFFFF
	d.bytes = [16]byte{}
}

// Protocol returns ProtocolISO11784.
func (*ISODecoder) Protocol() Protocol { return ProtocolISO11784 }

// PulseCount reports how many classifiable pulses have arrived since
// the last Reset.
func (d *ISODecoder) PulseCount() int { return d.pulseCount }

// Complete reports whether a full frame with a valid CRC has been read.
func (d *ISODecoder) Complete() bool { return d.state == crcDone }

// Feed advances the state machine by one demodulated edge. The pin
// level is ignored: in this encoding the bit value is carried by the
// pulse length alone. Feed performs no allocation and never blocks.
func (d *ISODecoder) Feed(e Edge) {
	if d.Complete() {
		return
	}

	action := isoRestart
	switch Classify(e.DeltaMicros, ProtocolISO11784) {
	case SymbolShort:
		action = isoShort
	case SymbolLong:
		action = isoLong
	default:
	}

	// The CRC is checked once the two CRC bytes are in, before the
	// pulse that follows them is interpreted; a mismatch turns that
	// pulse into a restart.
	if d.byteIdx == isoCRCHighIdx && d.bitIdx == 8 {
		d.crc = CRC16Kermit(0, d.bytes[:isoPayloadLen])
		if d.crc == uint16(d.bytes[isoCRCHighIdx])<<8|uint16(d.bytes[isoCRCLowIdx]) {
			if d.state == crcNone {
				d.state = crcChecked
			}
		} else {
			action = isoRestart
		}
	}
	if d.byteIdx == isoLastByteIdx && d.bitIdx == 8 {
		action = isoFinish
	}

	switch action {
	case isoShort:
		d.shortPulse()
	case isoLong:
		d.longPulse()
	case isoRestart:
		d.state = crcNone
		d.secondShort = false
		d.resync()
	case isoFinish:
		if d.state > crcNone {
			d.state = crcDone
		}
	}
}

// shortPulse handles half-bit-period pulses: zero bits and the skipped
// second half of each zero pair.
func (d *ISODecoder) shortPulse() {
	if d.secondShort {
		d.secondShort = false
		return
	}
	if d.bitIdx == 8 {
		// A zero where the control one bit belongs: lost sync.
		d.resync()
		return
	}
	d.secondShort = true
	d.pulseCount++
	if d.zeroRun&isoZeroRunMask != 0 {
		// Still hunting the header: shift a zero into the run detector.
		d.zeroRun <<= 1
		return
	}
	// In-frame zero bit, least-significant bit first.
	d.bytes[d.byteIdx] &^= byte(1) << d.bitIdx
	d.bitIdx++
}

// longPulse handles full-bit-period pulses: one bits, the header
// terminator and the per-byte control bit.
func (d *ISODecoder) longPulse() {
	d.secondShort = false
	d.pulseCount++
	if d.zeroRun&isoZeroRunMask != 0 {
		d.zeroRun = d.zeroRun<<1 | 1
		return
	}
	switch {
	case d.bitIdx < 8:
		d.bytes[d.byteIdx] |= 1 << d.bitIdx
		d.bitIdx++
	case d.bitIdx == 8:
		// Control one bit: byte complete.
		d.bitIdx = 0
		d.byteIdx++
	default:
		// Header terminator (bit index still at its initial 10).
		d.bitIdx = 0
		d.byteIdx = 0
	}
}

// Frame returns the decoded tag: the 6-byte id (least-significant byte
// first) and the temperature trailer byte. It returns nil until
// Complete.
func (d *ISODecoder) Frame() *TagFrame {
	if !d.Complete() {
		return nil
	}
	id := make([]byte, 6)
	copy(id, d.bytes[:6])
	return &TagFrame{
		Protocol:    ProtocolISO11784,
		ID:          id,
		Temperature: d.bytes[isoTempIdx],
	}
}

// CRC16Kermit computes the CRC-16/Kermit variant used by ISO 11784/5:
// polynomial 0x8408 (reflected), no final XOR. Pass 0 as the initial
// value for a fresh computation.
func CRC16Kermit(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b)
		for k := 0; k < 8; k++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
