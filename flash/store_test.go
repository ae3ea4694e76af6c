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

package flash_test

import (
	"testing"

	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLayout fits the small test geometry: params in page 0, log
// records in pages 1-2, tag records in pages 3-7 (Q=32).
func testLayout() flash.Layout {
	return flash.Layout{
		ParamsStart: 0,
		LogStart:    32,
		LogEnd:      96,
		TagStart:    96,
		TagEnd:      256,
	}
}

// newTestStore builds a store over a fresh in-memory chip.
func newTestStore(t *testing.T) (*flash.Store, *flash.MemChip) {
	t.Helper()
	chip := flash.NewMemChip(flash.SmallTestGeometry())
	store := reopenStore(t, chip)
	return store, chip
}

// reopenStore builds a new store over existing chip contents, the way
// a reboot does.
func reopenStore(t *testing.T, chip *flash.MemChip) *flash.Store {
	t.Helper()
	tr, err := flash.NewTranslator(chip, flash.WithSettleDelay(0))
	require.NoError(t, err)
	store, err := flash.NewStore(tr, testLayout())
	require.NoError(t, err)
	require.NoError(t, store.RecoverCursors())
	return store
}

func TestNewStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := flash.NewStore(nil, testLayout())
	require.ErrorIs(t, err, flash.ErrInvalidParameter)

	chip := flash.NewMemChip(flash.SmallTestGeometry())
	tr, err := flash.NewTranslator(chip, flash.WithSettleDelay(0))
	require.NoError(t, err)

	misaligned := testLayout()
	misaligned.TagStart = 100
	_, err = flash.NewStore(tr, misaligned)
	require.ErrorIs(t, err, flash.ErrInvalidParameter)

	tooBig := testLayout()
	tooBig.TagEnd = 512
	_, err = flash.NewStore(tr, tooBig)
	require.ErrorIs(t, err, flash.ErrOutOfRange)
}

func TestStore_AppendReturnsOffsetBeforeWrite(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	off, err := store.AppendTag(emFrame(1, [5]byte{1, 2, 3, 4, 5}))
	require.NoError(t, err)
	assert.Equal(t, uint32(96), off)
	assert.Equal(t, uint32(106), store.TagCursor())

	off, err = store.AppendTag(isoFrame(2, [6]byte{9, 8, 7, 6, 5, 4}, 0x20))
	require.NoError(t, err)
	assert.Equal(t, uint32(106), off)
	assert.Equal(t, uint32(118), store.TagCursor())

	off, err = store.AppendLog(flash.EventLoggingStarted, testTime)
	require.NoError(t, err)
	assert.Equal(t, uint32(32), off)
	assert.Equal(t, uint32(37), store.LogCursor())
}

func TestStore_RecoverCursors(t *testing.T) {
	t.Parallel()

	store, chip := newTestStore(t)

	// Fresh chip: cursors sit at the region starts.
	assert.Equal(t, uint32(96), store.TagCursor())
	assert.Equal(t, uint32(32), store.LogCursor())

	// Four EM records: 96, 106, 116, 126. The last one spans the
	// page 3 / page 4 boundary at offset 128.
	for i := 0; i < 4; i++ {
		_, err := store.AppendTag(emFrame(1, [5]byte{byte(i), 2, 3, 4, 5}))
		require.NoError(t, err)
	}
	_, err := store.AppendLog(flash.EventGoingToSleep, testTime)
	require.NoError(t, err)

	wantTag, wantLog := store.TagCursor(), store.LogCursor()
	assert.Equal(t, uint32(136), wantTag)

	// Reboot: a fresh store over the same chip recovers the same
	// cursors by scanning.
	reopened := reopenStore(t, chip)
	assert.Equal(t, wantTag, reopened.TagCursor())
	assert.Equal(t, wantLog, reopened.LogCursor())

	// Idempotence: scanning again moves nothing.
	require.NoError(t, reopened.RecoverCursors())
	assert.Equal(t, wantTag, reopened.TagCursor())
	assert.Equal(t, wantLog, reopened.LogCursor())
}

func TestStore_RecoverAfterManyRecords(t *testing.T) {
	t.Parallel()

	store, chip := newTestStore(t)
	var want uint32
	for i := 0; i < 12; i++ {
		off, err := store.AppendTag(emFrame(1, [5]byte{byte(i), 0x10, 0x20, 0x30, 0x40}))
		require.NoError(t, err)
		want = off + flash.EMRecordLen
	}

	reopened := reopenStore(t, chip)
	assert.Equal(t, want, reopened.TagCursor())
}

func TestStore_RegionFull(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	// Tag region holds 160 bytes: 16 EM records fill it exactly.
	for i := 0; i < 16; i++ {
		_, err := store.AppendTag(emFrame(1, [5]byte{1, 2, 3, 4, 5}))
		require.NoError(t, err)
	}
	_, err := store.AppendTag(emFrame(1, [5]byte{1, 2, 3, 4, 5}))
	require.ErrorIs(t, err, flash.ErrRegionFull)
	assert.Equal(t, uint32(256), store.TagCursor())
}

func TestStore_RecoverFullRegion(t *testing.T) {
	t.Parallel()

	store, chip := newTestStore(t)
	for i := 0; i < 16; i++ {
		_, err := store.AppendTag(emFrame(1, [5]byte{1, 2, 3, 4, 5}))
		require.NoError(t, err)
	}

	reopened := reopenStore(t, chip)
	assert.Equal(t, uint32(256), reopened.TagCursor())
}

func TestStore_EraseData(t *testing.T) {
	t.Parallel()

	store, chip := newTestStore(t)
	require.NoError(t, store.SaveParams(&flash.DeviceParams{
		DeviceID: [4]byte{'E', 'T', '0', '1'},
		Mode:     flash.LogModeMirrored,
	}))
	for i := 0; i < 5; i++ {
		_, err := store.AppendTag(emFrame(1, [5]byte{byte(i), 2, 3, 4, 5}))
		require.NoError(t, err)
	}
	_, err := store.AppendLog(flash.EventLoggingStarted, testTime)
	require.NoError(t, err)

	require.NoError(t, store.EraseData())
	assert.Equal(t, uint32(96), store.TagCursor())
	assert.Equal(t, uint32(32), store.LogCursor())

	// The record pages read erased again.
	assert.Equal(t, byte(flash.Erased), chip.PageData(3)[0])
	assert.Equal(t, byte(flash.Erased), chip.PageData(1)[0])

	// Parameters survive a data erase.
	p, err := store.LoadParams()
	require.NoError(t, err)
	assert.Equal(t, "ET01", p.ID())

	// Recovery over the erased regions agrees.
	reopened := reopenStore(t, chip)
	assert.Equal(t, uint32(96), reopened.TagCursor())
}

func TestStore_EraseChip(t *testing.T) {
	t.Parallel()

	store, chip := newTestStore(t)
	require.NoError(t, store.SaveParams(&flash.DeviceParams{Mode: flash.LogModeFlashOnly}))
	_, err := store.AppendTag(emFrame(1, [5]byte{1, 2, 3, 4, 5}))
	require.NoError(t, err)

	require.NoError(t, store.EraseChip())
	assert.Equal(t, 1, chip.ChipErases)
	assert.Equal(t, uint32(96), store.TagCursor())

	_, err = store.LoadParams()
	require.ErrorIs(t, err, flash.ErrParamsMissing)
}

func TestStore_Iterators(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	frames := []struct {
		iso  bool
		temp byte
	}{
		{iso: false},
		{iso: true, temp: 0x33},
		{iso: false},
	}
	for i, f := range frames {
		var err error
		if f.iso {
			_, err = store.AppendTag(isoFrame(2, [6]byte{byte(i), 1, 2, 3, 4, 5}, f.temp))
		} else {
			_, err = store.AppendTag(emFrame(1, [5]byte{byte(i), 1, 2, 3, 4}))
		}
		require.NoError(t, err)
	}
	_, err := store.AppendLog(flash.EventWakeFromSleep, testTime)
	require.NoError(t, err)

	it := store.Tags(store.Layout().TagStart)
	var got []*flash.Record
	for {
		rec, err := it.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	assert.Equal(t, flash.RecordTagEM, got[0].Kind)
	assert.Equal(t, flash.RecordTagISO, got[1].Kind)
	assert.Equal(t, byte(0x33), got[1].Temperature)
	assert.Equal(t, uint32(96), got[0].Offset)
	assert.Equal(t, uint32(106), got[1].Offset)
	assert.Equal(t, uint32(118), got[2].Offset)

	logs := store.Logs(store.Layout().LogStart)
	rec, err := logs.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, flash.EventWakeFromSleep, rec.Event)
	rec, err = logs.Next()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_IteratorMisalignment(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	_, err := store.AppendTag(emFrame(1, [5]byte{0x0B, 1, 2, 3, 4}))
	require.NoError(t, err)
	_, err = store.AppendTag(emFrame(1, [5]byte{0x0C, 1, 2, 3, 4}))
	require.NoError(t, err)

	// One byte into the first record the discriminant is an id byte,
	// which is outside the tag discriminant ranges here.
	it := store.Tags(store.Layout().TagStart + 1)
	_, err = it.Next()
	require.ErrorIs(t, err, flash.ErrBadRecord)
}
