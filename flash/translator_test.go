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

package flash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTranslator builds a translator over a small in-memory chip
// with the settle delay stubbed out.
func newTestTranslator(t *testing.T, opts ...TranslatorOption) (*Translator, *MemChip) {
	t.Helper()
	chip := NewMemChip(SmallTestGeometry())
	opts = append([]TranslatorOption{withSleep(func(time.Duration) {})}, opts...)
	tr, err := NewTranslator(chip, opts...)
	require.NoError(t, err)
	return tr, chip
}

func TestTranslator_RoundTrip(t *testing.T) {
	t.Parallel()

	// Q=32 for the test geometry; offsets chosen to cover in-page,
	// boundary-touching and boundary-crossing writes.
	tests := []struct {
		name string
		off  uint32
		data []byte
	}{
		{
			name: "within one page",
			off:  3,
			data: []byte{0x10, 0x20, 0x30},
		},
		{
			name: "ends exactly at page boundary",
			off:  28,
			data: []byte{1, 2, 3, 4},
		},
		{
			name: "crosses page boundary",
			off:  28,
			data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		{
			name: "starts at page boundary",
			off:  32,
			data: []byte{0xAA, 0xBB},
		},
		{
			name: "spans three pages",
			off:  30,
			data: make([]byte, 70),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, _ := newTestTranslator(t)

			next, err := tr.WriteAt(tt.off, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.off+uint32(len(tt.data)), next)

			got := make([]byte, len(tt.data))
			require.NoError(t, tr.ReadAt(tt.off, got))
			assert.Equal(t, tt.data, got)
		})
	}
}

// TestTranslator_RoundTripAllOffsets sweeps every offset and length up
// to one page within the first two pages.
func TestTranslator_RoundTripAllOffsets(t *testing.T) {
	t.Parallel()

	geom := SmallTestGeometry()
	q := geom.DataPerPage
	for off := 0; off < q; off++ {
		for length := 1; length <= q; length++ {
			tr, _ := newTestTranslator(t)
			data := make([]byte, length)
			for i := range data {
				data[i] = byte(i + off)
			}
			_, err := tr.WriteAt(uint32(off), data)
			require.NoError(t, err, "write off=%d len=%d", off, length)

			got := make([]byte, length)
			require.NoError(t, tr.ReadAt(uint32(off), got))
			require.Equal(t, data, got, "off=%d len=%d", off, length)
		}
	}
}

func TestTranslator_BoundarySplitsTransactions(t *testing.T) {
	t.Parallel()

	tr, chip := newTestTranslator(t)
	_, err := tr.WriteAt(28, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	// 4 bytes into page 0, 6 into page 1.
	assert.Equal(t, 2, chip.WriteCalls)
	assert.Equal(t, byte(4), chip.PageData(0)[31])
	assert.Equal(t, byte(5), chip.PageData(1)[0])
}

func TestTranslator_SettleDelayPerTransaction(t *testing.T) {
	t.Parallel()

	chip := NewMemChip(SmallTestGeometry())
	sleeps := 0
	tr, err := NewTranslator(chip, withSleep(func(d time.Duration) {
		assert.Equal(t, DefaultSettleDelay, d)
		sleeps++
	}))
	require.NoError(t, err)

	_, err = tr.WriteAt(28, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, sleeps, "one settle per physical write")
}

func TestTranslator_OutOfRange(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTranslator(t)
	capacity := tr.Geometry().Capacity()

	_, err := tr.WriteAt(capacity-2, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrOutOfRange)

	err = tr.ReadAt(capacity, make([]byte, 1))
	require.ErrorIs(t, err, ErrOutOfRange)

	// The last valid window still works.
	_, err = tr.WriteAt(capacity-2, []byte{1, 2})
	require.NoError(t, err)
}

// mangleChip corrupts the first byte of every write, for exercising
// write verification.
type mangleChip struct {
	*MemChip
}

func (c *mangleChip) WritePage(page, byteInPage int, data []byte) error {
	mangled := append([]byte(nil), data...)
	mangled[0] &^= 0x01
	return c.MemChip.WritePage(page, byteInPage, mangled)
}

func TestTranslator_WriteVerify(t *testing.T) {
	t.Parallel()

	chip := &mangleChip{MemChip: NewMemChip(SmallTestGeometry())}
	tr, err := NewTranslator(chip,
		withSleep(func(time.Duration) {}),
		WithWriteVerify(true),
	)
	require.NoError(t, err)

	_, err = tr.WriteAt(0, []byte{0x0F})
	require.ErrorIs(t, err, ErrWriteVerify)

	// A write the mangling cannot touch verifies clean.
	_, err = tr.WriteAt(4, []byte{0x0E})
	require.NoError(t, err)
}

func TestNewTranslator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTranslator(nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewTranslator(NewMemChip(SmallTestGeometry()), WithSettleDelay(-time.Millisecond))
	require.ErrorIs(t, err, ErrInvalidParameter)
}
