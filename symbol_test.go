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

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		proto Protocol
		delta uint32
		want  Symbol
	}{
		{
			name:  "EM4100 short center",
			proto: ProtocolEM4100,
			delta: 250,
			want:  SymbolShort,
		},
		{
			name:  "EM4100 long center",
			proto: ProtocolEM4100,
			delta: 480,
			want:  SymbolLong,
		},
		{
			name:  "EM4100 window boundary is invalid",
			proto: ProtocolEM4100,
			delta: 395,
			want:  SymbolInvalid,
		},
		{
			name:  "EM4100 too short",
			proto: ProtocolEM4100,
			delta: 100,
			want:  SymbolInvalid,
		},
		{
			name:  "EM4100 too long",
			proto: ProtocolEM4100,
			delta: 700,
			want:  SymbolInvalid,
		},
		{
			name:  "ISO short center",
			proto: ProtocolISO11784,
			delta: 120,
			want:  SymbolShort,
		},
		{
			name:  "ISO long center",
			proto: ProtocolISO11784,
			delta: 240,
			want:  SymbolLong,
		},
		{
			name:  "ISO inter-window gap is invalid",
			proto: ProtocolISO11784,
			delta: 185,
			want:  SymbolInvalid,
		},
		{
			name:  "ISO zero delta",
			proto: ProtocolISO11784,
			delta: 0,
			want:  SymbolInvalid,
		},
		{
			name:  "EM4100 timing is invalid for ISO",
			proto: ProtocolISO11784,
			delta: 480,
			want:  SymbolInvalid,
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.delta, tt.proto); got != tt.want {
				t.Errorf("Classify(%d, %v) = %v, want %v", tt.delta, tt.proto, got, tt.want)
			}
		})
	}
}

// TestClassifyWindowsDisjoint verifies that no interval classifies as
// both short and long for either protocol.
func TestClassifyWindowsDisjoint(t *testing.T) {
	t.Parallel()
	for _, proto := range []Protocol{ProtocolEM4100, ProtocolISO11784} {
		short, long := 0, 0
		for d := uint32(0); d < 1000; d++ {
			switch Classify(d, proto) {
			case SymbolShort:
				short++
			case SymbolLong:
				long++
			case SymbolInvalid:
			}
		}
		if short == 0 || long == 0 {
			t.Errorf("protocol %v: empty classification window (short=%d long=%d)", proto, short, long)
		}
	}
}
