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

package export_test

import (
	"strings"
	"testing"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"github.com/Eli-S-Bridge/ETAG-V10/export"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tagFile = "ET01TAG.TXT"

// fixture bundles a flash store over an in-memory chip with a
// directory-backed external store.
type fixture struct {
	store *flash.Store
	tr    *flash.Translator
	ext   *export.DirStore
	rec   *export.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chip := flash.NewMemChip(flash.SmallTestGeometry())
	tr, err := flash.NewTranslator(chip, flash.WithSettleDelay(0))
	require.NoError(t, err)
	layout := flash.Layout{ParamsStart: 0, LogStart: 32, LogEnd: 96, TagStart: 96, TagEnd: 256}
	store, err := flash.NewStore(tr, layout)
	require.NoError(t, err)
	require.NoError(t, store.RecoverCursors())

	ext, err := export.NewDirStore(t.TempDir())
	require.NoError(t, err)
	rec, err := export.NewReconciler(store, ext)
	require.NoError(t, err)
	return &fixture{store: store, tr: tr, ext: ext, rec: rec}
}

func (f *fixture) appendEM(t *testing.T, n byte) uint32 {
	t.Helper()
	off, err := f.store.AppendTag(&etag.TagFrame{
		Protocol: etag.ProtocolEM4100, ID: []byte{n, 2, 3, 4, 5},
		Circuit: 1, DetectedAt: exportTime,
	})
	require.NoError(t, err)
	return off
}

func TestReconciler_EmptyEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	off, need, err := f.rec.ResumeTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(96), off)
	assert.False(t, need, "nothing logged, nothing to export")
}

func TestReconciler_FirstExport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := byte(1); i <= 3; i++ {
		f.appendEM(t, i)
	}

	off, need, err := f.rec.ResumeTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(96), off)
	assert.True(t, need)

	n, err := f.rec.ExportTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	last, err := f.ext.LastLine(tagFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(last, "0302030405, 1, "), "last line %q", last)
}

func TestReconciler_NoExportWhenCaughtUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appendEM(t, 1)
	_, err := f.rec.ExportTags(tagFile)
	require.NoError(t, err)

	// Last exported line matches the final flash record and the
	// cursor sits right past it.
	off, need, err := f.rec.ResumeTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, f.store.TagCursor(), off)
	assert.False(t, need)

	n, err := f.rec.ExportTags(tagFile)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconciler_ResumesAfterInterruption(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appendEM(t, 1)
	f.appendEM(t, 2)

	// Simulate an export interrupted after the first record: only its
	// line made it to the external store.
	it := f.store.Tags(f.store.Layout().TagStart)
	first, err := it.Next()
	require.NoError(t, err)
	require.NoError(t, f.ext.Append(tagFile, []string{export.FormatRecord(first)}))

	off, need, err := f.rec.ResumeTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(106), off, "resume just past the matched record")
	assert.True(t, need)

	n, err := f.rec.ExportTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the second record is exported")

	last, err := f.ext.LastLine(tagFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(last, "0202030405, "), "last line %q", last)
}

func TestReconciler_UnmatchedLastLineFallsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appendEM(t, 1)
	f.appendEM(t, 2)

	// A well-formed line that matches no flash record, as after a
	// data erase with a stale card.
	require.NoError(t, f.ext.Append(tagFile, []string{"AA02030405, 1, 03/15/2024 09:00:00"}))

	off, need, err := f.rec.ResumeTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(96), off, "fall back to region start")
	assert.True(t, need)
}

func TestReconciler_GarbageLastLineFallsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appendEM(t, 1)
	require.NoError(t, f.ext.Append(tagFile, []string{"### not a record ###"}))

	off, need, err := f.rec.ResumeTags(tagFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(96), off)
	assert.True(t, need)
}

func TestReconciler_HaltsOnMisalignedRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appendEM(t, 1)

	// Corrupt flash directly behind the store's back: a discriminant
	// outside the tag ranges followed by non-erased filler, then
	// recover cursors so the garbage sits below the cursor.
	_, err := f.tr.WriteAt(f.store.TagCursor(), []byte{0x7F, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, err)
	require.NoError(t, f.store.RecoverCursors())

	_, err = f.rec.ExportTags(tagFile)
	require.ErrorIs(t, err, flash.ErrBadRecord)
	assert.False(t, f.ext.Exists(tagFile), "nothing may be appended from a halted batch")
}

func TestReconciler_LogExport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.store.AppendLog(flash.EventLoggingStarted, exportTime)
	require.NoError(t, err)
	_, err = f.store.AppendLog(flash.EventGoingToSleep, exportTime.Add(time.Minute))
	require.NoError(t, err)

	const logFile = "ET01LOG.TXT"
	n, err := f.rec.ExportLogs(logFile)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-running exports nothing new.
	n, err = f.rec.ExportLogs(logFile)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.store.AppendLog(flash.EventWakeFromSleep, exportTime.Add(2*time.Minute))
	require.NoError(t, err)
	n, err = f.rec.ExportLogs(logFile)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	last, err := f.ext.LastLine(logFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(last, "Wake from sleep, "), "last line %q", last)
}
