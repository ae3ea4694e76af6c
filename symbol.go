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

// Protocol identifies the tag protocol a decoder or classifier operates on.
type Protocol byte

const (
	// ProtocolEM4100 is the fixed-length 64-bit EM4100 protocol with
	// row and column parity.
	ProtocolEM4100 Protocol = iota
	// ProtocolISO11784 is the ISO 11784/5 FDX-B animal tag protocol with
	// CRC-16 validation and optional temperature telemetry.
	ProtocolISO11784
)

// String returns the protocol name
func (p Protocol) String() string {
	switch p {
	case ProtocolEM4100:
		return "EM4100"
	case ProtocolISO11784:
		return "ISO11784/5"
	default:
		return "unknown"
	}
}

// Symbol is the classification of a single demodulated pulse.
type Symbol byte

const (
	// SymbolInvalid is any pulse outside the protocol's timing windows.
	// Downstream decoders treat it as a stream-reset signal.
	SymbolInvalid Symbol = iota
	// SymbolShort is a half-bit-period pulse.
	SymbolShort
	// SymbolLong is a full-bit-period pulse.
	SymbolLong
)

// Pulse timing windows in microseconds. Bounds are exclusive and come from
// characterization of the EM4095 demodulator output; the windows for a
// protocol never overlap.
const (
	em4100ShortMinUS = 170
	em4100ShortMaxUS = 395
	em4100LongMinUS  = 395
	em4100LongMaxUS  = 600

	isoShortMinUS = 85
	isoShortMaxUS = 170
	isoLongMinUS  = 200
	isoLongMaxUS  = 275
)

// Classify maps the interval between two consecutive transitions to a
// pulse symbol for the given protocol. It is a pure function and total
// over its input domain: any interval outside both windows classifies
// as SymbolInvalid.
func Classify(deltaMicros uint32, proto Protocol) Symbol {
	switch proto {
	case ProtocolEM4100:
		switch {
		case deltaMicros > em4100ShortMinUS && deltaMicros < em4100ShortMaxUS:
			return SymbolShort
		case deltaMicros > em4100LongMinUS && deltaMicros < em4100LongMaxUS:
			return SymbolLong
		}
	case ProtocolISO11784:
		switch {
		case deltaMicros > isoShortMinUS && deltaMicros < isoShortMaxUS:
			return SymbolShort
		case deltaMicros > isoLongMinUS && deltaMicros < isoLongMaxUS:
			return SymbolLong
		}
	}
	return SymbolInvalid
}
