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

package etag_test

import (
	"testing"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	testutil "github.com/Eli-S-Bridge/ETAG-V10/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16Kermit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty",
			data: []byte{},
			want: 0x0000,
		},
		{
			name: "check string",
			data: []byte("123456789"),
			want: 0x2189, // CRC-16/KERMIT check value
		},
		{
			name: "single zero byte",
			data: []byte{0x00},
			want: 0x0000,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := etag.CRC16Kermit(0, tt.data); got != tt.want {
				t.Errorf("CRC16Kermit() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestISODecoder_ValidFrame(t *testing.T) {
	t.Parallel()

	dec := etag.NewISODecoder()
	feedAll(dec, testutil.ISOEdges(testutil.TestISOPayload, testutil.TestISOTemp))

	require.True(t, dec.Complete(), "decoder did not complete")
	frame := dec.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, etag.ProtocolISO11784, frame.Protocol)
	assert.Equal(t, testutil.TestISOPayload[:6], frame.ID)
	assert.Equal(t, testutil.TestISOTemp, frame.Temperature)
	assert.Equal(t, uint16(982), frame.CountryCode())
}

func TestISODecoder_CorruptPayloadNeverFalsePositive(t *testing.T) {
	t.Parallel()

	// Corrupt each payload byte in turn after the CRC was computed over
	// the clean payload: the CRC check must fail and no frame appear.
	for i := 0; i < 8; i++ {
		frame := testutil.ISOFrame(testutil.TestISOPayload, testutil.TestISOTemp)
		frame[i] ^= 0x01

		dec := etag.NewISODecoder()
		feedAll(dec, testutil.ISOEdgesFromFrame(frame))

		if dec.Complete() {
			t.Fatalf("corrupted payload byte %d produced a frame", i)
		}
		assert.Nil(t, dec.Frame())
	}
}

func TestISODecoder_CorruptCRCByte(t *testing.T) {
	t.Parallel()

	frame := testutil.ISOFrame(testutil.TestISOPayload, testutil.TestISOTemp)
	frame[8] ^= 0x80

	dec := etag.NewISODecoder()
	feedAll(dec, testutil.ISOEdgesFromFrame(frame))

	assert.False(t, dec.Complete())
}

func TestISODecoder_RestartAfterCRCFailure(t *testing.T) {
	t.Parallel()

	bad := testutil.ISOFrame(testutil.TestISOPayload, testutil.TestISOTemp)
	bad[2] ^= 0xFF

	stream := testutil.ISOEdgesFromFrame(bad)
	stream = append(stream, testutil.ISOEdges(testutil.TestISOPayload, testutil.TestISOTemp)...)

	dec := etag.NewISODecoder()
	feedAll(dec, stream)

	require.True(t, dec.Complete(), "decoder did not recover after CRC failure")
	assert.Equal(t, testutil.TestISOPayload[:6], dec.Frame().ID)
}

func TestISODecoder_InvalidPulseForcesRestart(t *testing.T) {
	t.Parallel()

	clean := testutil.ISOEdges(testutil.TestISOPayload, testutil.TestISOTemp)
	// Truncate mid-frame, inject noise, then replay the full frame.
	stream := append([]etag.Edge{}, clean[:40]...)
	stream = append(stream, etag.Edge{DeltaMicros: 500}) // invalid for ISO
	stream = append(stream, clean...)

	dec := etag.NewISODecoder()
	feedAll(dec, stream)

	require.True(t, dec.Complete())
	assert.Equal(t, testutil.TestISOPayload[:6], dec.Frame().ID)
}

func TestISODecoder_IncompleteFrameYieldsNothing(t *testing.T) {
	t.Parallel()

	edges := testutil.ISOEdges(testutil.TestISOPayload, testutil.TestISOTemp)
	dec := etag.NewISODecoder()
	feedAll(dec, edges[:len(edges)-10])

	assert.False(t, dec.Complete())
	assert.Nil(t, dec.Frame())
}
