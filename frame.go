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

import (
	"fmt"
	"strings"
	"time"
)

// TagFrame is the result of a successful decode. A frame is only ever
// produced once every per-symbol validation has passed; there is no
// such thing as a partially valid frame.
type TagFrame struct {
	// DetectedAt is when the read attempt completed.
	DetectedAt time.Time
	// ID is the tag identifier: 5 bytes for EM4100, 6 bytes
	// (least-significant first) for ISO 11784/5.
	ID []byte
	// Protocol the frame was decoded with.
	Protocol Protocol
	// Circuit is the antenna circuit the tag was read on (1-based).
	Circuit int
	// Temperature is the raw temperature byte of an ISO frame; zero
	// for EM4100.
	Temperature byte
}

// CountryCode returns the 10-bit ISO 3166 country/manufacturer code of
// an ISO 11784/5 frame. It returns 0 for EM4100 frames.
func (f *TagFrame) CountryCode() uint16 {
	if f.Protocol != ProtocolISO11784 || len(f.ID) < 6 {
		return 0
	}
	return uint16(f.ID[5])<<2 | uint16(f.ID[4])>>6
}

// IDString renders the tag id the way it is written to exported logs:
// ten upper-case hex digits for EM4100, "CCC.HHHHHHHHHH" (country code,
// period, 38-bit national id zero-extended to ten hex digits) for
// ISO 11784/5.
func (f *TagFrame) IDString() string {
	switch f.Protocol {
	case ProtocolISO11784:
		if len(f.ID) < 6 {
			return ""
		}
		return fmt.Sprintf("%03X.%02X%02X%02X%02X%02X",
			f.CountryCode(), f.ID[4]&0x3F, f.ID[3], f.ID[2], f.ID[1], f.ID[0])
	default:
		var b strings.Builder
		for _, v := range f.ID {
			fmt.Fprintf(&b, "%02X", v)
		}
		return b.String()
	}
}

// String implements fmt.Stringer.
func (f *TagFrame) String() string {
	return fmt.Sprintf("%s %s", f.Protocol, f.IDString())
}
