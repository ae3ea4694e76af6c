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
	"fmt"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
)

// erasedRunLen is the lookahead used to declare flash unwritten: a run
// of this many 0xFF bytes cannot span a record boundary, because no
// record starts or ends with 0xFF.
const erasedRunLen = 5

// Layout fixes the logical byte ranges of the persisted regions. End
// offsets are exclusive. All boundaries must be page-aligned so the
// recovery scan and logical erase can work page-wise.
type Layout struct {
	// ParamsStart is the device parameters region (one page).
	ParamsStart uint32
	// LogStart..LogEnd is the log event record region.
	LogStart uint32
	LogEnd   uint32
	// TagStart..TagEnd is the tag detection record region.
	TagStart uint32
	TagEnd   uint32
}

// DefaultLayout places the parameters in page 0, log records in pages
// 1 through 15 and tag records in the rest of the chip.
func DefaultLayout(g Geometry) Layout {
	q := uint32(g.DataPerPage)
	return Layout{
		ParamsStart: 0,
		LogStart:    q,
		LogEnd:      16 * q,
		TagStart:    16 * q,
		TagEnd:      g.Capacity(),
	}
}

// validate checks ordering and page alignment of the layout.
func (l Layout) validate(g Geometry) error {
	q := uint32(g.DataPerPage)
	for _, off := range []uint32{l.ParamsStart, l.LogStart, l.LogEnd, l.TagStart, l.TagEnd} {
		if off%q != 0 {
			return fmt.Errorf("region boundary %d not page aligned: %w", off, ErrInvalidParameter)
		}
		if off > g.Capacity() {
			return fmt.Errorf("region boundary %d: %w", off, ErrOutOfRange)
		}
	}
	if l.LogStart >= l.LogEnd || l.TagStart >= l.TagEnd {
		return fmt.Errorf("empty record region: %w", ErrInvalidParameter)
	}
	return nil
}

// Store is the append-only record store. It owns two logical cursors,
// one per record region; the cursors are never written to flash but
// recovered by scanning, which tolerates power loss at any point
// between a record write and a would-be pointer update.
//
// Thread Safety: Store is NOT thread-safe. The logging loop is the
// only writer; exports run between read attempts, never concurrently
// with them.
type Store struct {
	tr     *Translator
	layout Layout

	tagCursor uint32
	logCursor uint32
}

// NewStore creates a Store over the translator with the given layout.
// Call RecoverCursors before the first append.
func NewStore(tr *Translator, layout Layout) (*Store, error) {
	if tr == nil {
		return nil, ErrInvalidParameter
	}
	if err := layout.validate(tr.Geometry()); err != nil {
		return nil, err
	}
	return &Store{tr: tr, layout: layout, tagCursor: layout.TagStart, logCursor: layout.LogStart}, nil
}

// Layout returns the store's region layout.
func (s *Store) Layout() Layout { return s.layout }

// TagCursor returns the next free logical offset of the tag region.
func (s *Store) TagCursor() uint32 { return s.tagCursor }

// LogCursor returns the next free logical offset of the log region.
func (s *Store) LogCursor() uint32 { return s.logCursor }

// RecoverCursors locates the end of written data in both record
// regions. It is idempotent: against unchanged flash it always finds
// the same offsets.
func (s *Store) RecoverCursors() error {
	tagCursor, err := s.recoverCursor(s.layout.TagStart, s.layout.TagEnd)
	if err != nil {
		return fmt.Errorf("recover tag cursor: %w", err)
	}
	logCursor, err := s.recoverCursor(s.layout.LogStart, s.layout.LogEnd)
	if err != nil {
		return fmt.Errorf("recover log cursor: %w", err)
	}
	s.tagCursor = tagCursor
	s.logCursor = logCursor
	debugf("cursors recovered: tag=%d log=%d", tagCursor, logCursor)
	return nil
}

// recoverCursor scans [start, end) for the first unwritten byte.
//
// Phase one strides page-wise, checking only each page's final bytes:
// the first page whose tail is still erased bounds the search to that
// one page. Phase two scans that page byte-wise for the first run of
// erasedRunLen 0xFF bytes; the run's first byte is the cursor.
func (s *Store) recoverCursor(start, end uint32) (uint32, error) {
	q := uint32(s.tr.Geometry().DataPerPage)
	tail := make([]byte, erasedRunLen)

	cursorPage := uint32(0)
	found := false
	for pageStart := start; pageStart < end; pageStart += q {
		if err := s.tr.ReadAt(pageStart+q-erasedRunLen, tail); err != nil {
			return 0, err
		}
		if isErased(tail) {
			cursorPage = pageStart
			found = true
			break
		}
	}
	if !found {
		// Every page tail is written: the region is full.
		return end, nil
	}

	page := make([]byte, q)
	if err := s.tr.ReadAt(cursorPage, page); err != nil {
		return 0, err
	}
	for i := 0; i+erasedRunLen <= len(page); i++ {
		if isErased(page[i : i+erasedRunLen]) {
			return cursorPage + uint32(i), nil
		}
	}
	// Unreachable while the tail check above holds.
	return cursorPage + q, nil
}

func isErased(buf []byte) bool {
	for _, b := range buf {
		if b != Erased {
			return false
		}
	}
	return true
}

// AppendTag persists a decoded tag frame and returns the logical
// offset the record was written at.
func (s *Store) AppendTag(f *etag.TagFrame) (uint32, error) {
	rec, err := EncodeTagRecord(f)
	if err != nil {
		return 0, err
	}
	return s.append(&s.tagCursor, s.layout.TagEnd, rec)
}

// AppendLog persists a log event and returns the logical offset the
// record was written at.
func (s *Store) AppendLog(event EventCode, ts time.Time) (uint32, error) {
	rec, err := EncodeLogRecord(event, ts)
	if err != nil {
		return 0, err
	}
	return s.append(&s.logCursor, s.layout.LogEnd, rec)
}

// append writes rec at the cursor and advances it. The returned offset
// is the cursor value before the write.
func (s *Store) append(cursor *uint32, regionEnd uint32, rec []byte) (uint32, error) {
	at := *cursor
	if at+uint32(len(rec)) > regionEnd {
		return 0, ErrRegionFull
	}
	next, err := s.tr.WriteAt(at, rec)
	if err != nil {
		return 0, err
	}
	*cursor = next
	return at, nil
}

// EraseData performs a logical erase of both record regions: every
// page from each region's start through its cursor page is erased and
// the cursors reset. Device parameters survive.
func (s *Store) EraseData() error {
	if err := s.eraseRegion(s.layout.TagStart, s.tagCursor, s.layout.TagEnd); err != nil {
		return fmt.Errorf("erase tag region: %w", err)
	}
	if err := s.eraseRegion(s.layout.LogStart, s.logCursor, s.layout.LogEnd); err != nil {
		return fmt.Errorf("erase log region: %w", err)
	}
	s.tagCursor = s.layout.TagStart
	s.logCursor = s.layout.LogStart
	return nil
}

// eraseRegion erases pages from start through the cursor's page,
// inclusive. A cursor at the region start still erases the first page
// so a partially written page is never left behind.
func (s *Store) eraseRegion(start, cursor, end uint32) error {
	q := uint32(s.tr.Geometry().DataPerPage)
	last := cursor
	if last >= end {
		last = end - 1
	}
	for pageStart := start; pageStart <= last; pageStart += q {
		if err := s.tr.Chip().ErasePage(int(pageStart / q)); err != nil {
			return err
		}
	}
	return nil
}

// EraseChip performs a factory reset of the entire chip, parameters
// included, and resets the cursors. It blocks for the full chip erase
// time, tens of seconds on real hardware.
func (s *Store) EraseChip() error {
	if err := s.tr.Chip().EraseChip(); err != nil {
		return err
	}
	s.tagCursor = s.layout.TagStart
	s.logCursor = s.layout.LogStart
	return nil
}

// decodeFunc decodes one record from the front of a buffer.
type decodeFunc func([]byte) (*Record, int, error)

// RecordIter walks a record region from a logical offset up to the
// current cursor.
type RecordIter struct {
	store  *Store
	decode decodeFunc
	cursor func() uint32
	off    uint32
}

// Tags iterates tag records from the logical offset from, which must
// be a record boundary. Iterating from the region start is always
// aligned.
func (s *Store) Tags(from uint32) *RecordIter {
	return &RecordIter{store: s, decode: DecodeTagRecord, cursor: s.TagCursor, off: from}
}

// Logs iterates log records from the logical offset from.
func (s *Store) Logs(from uint32) *RecordIter {
	return &RecordIter{store: s, decode: DecodeLogRecord, cursor: s.LogCursor, off: from}
}

// Next decodes the record at the iterator position and advances past
// it. It returns nil once the cursor is reached; a decode failure
// (misaligned or corrupt data) returns an error and does not advance.
func (it *RecordIter) Next() (*Record, error) {
	cursor := it.cursor()
	if it.off >= cursor {
		return nil, nil
	}
	window := uint32(MaxRecordLen)
	if cursor-it.off < window {
		window = cursor - it.off
	}
	buf := make([]byte, window)
	if err := it.store.tr.ReadAt(it.off, buf); err != nil {
		return nil, err
	}
	rec, n, err := it.decode(buf)
	if err != nil {
		return nil, fmt.Errorf("record at offset %d: %w", it.off, err)
	}
	rec.Offset = it.off
	it.off += uint32(n)
	return rec, nil
}

// Offset returns the iterator's current logical offset.
func (it *RecordIter) Offset() uint32 { return it.off }
