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

package export

import (
	"bytes"
	"fmt"

	"github.com/Eli-S-Bridge/ETAG-V10/flash"
)

// Reconciler resumes interrupted exports. It re-encodes the external
// store's last text line into record bytes and scans the flash stream
// for a byte-for-byte match; export restarts just past it. The scan
// is linear, but bounded by the data logged since the last successful
// export, not device lifetime.
type Reconciler struct {
	store *flash.Store
	ext   Store
}

// NewReconciler creates a Reconciler between the flash store and the
// external store.
func NewReconciler(store *flash.Store, ext Store) (*Reconciler, error) {
	if store == nil || ext == nil {
		return nil, flash.ErrInvalidParameter
	}
	return &Reconciler{store: store, ext: ext}, nil
}

// region abstracts the differences between the tag and log record
// streams for reconciliation.
type region struct {
	iter     func(from uint32) *flash.RecordIter
	reencode func(string) ([]byte, error)
	start    uint32
	cursor   uint32
}

func (r *Reconciler) tagRegion() region {
	return region{
		start:    r.store.Layout().TagStart,
		cursor:   r.store.TagCursor(),
		iter:     r.store.Tags,
		reencode: ReencodeTagLine,
	}
}

func (r *Reconciler) logRegion() region {
	return region{
		start:    r.store.Layout().LogStart,
		cursor:   r.store.LogCursor(),
		iter:     r.store.Logs,
		reencode: ReencodeLogLine,
	}
}

// ResumeTags returns the flash offset tag export should restart from
// and whether any export is needed at all.
func (r *Reconciler) ResumeTags(name string) (uint32, bool, error) {
	return r.resume(name, r.tagRegion())
}

// ResumeLogs is ResumeTags for the log record stream.
func (r *Reconciler) ResumeLogs(name string) (uint32, bool, error) {
	return r.resume(name, r.logRegion())
}

func (r *Reconciler) resume(name string, reg region) (uint32, bool, error) {
	last, err := r.ext.LastLine(name)
	if err != nil {
		return 0, false, err
	}
	offset := reg.start
	if last != "" {
		offset = r.matchOffset(last, reg)
	}
	return offset, offset < reg.cursor, nil
}

// matchOffset scans the region for the record the line was rendered
// from. Any failure to match, an unparseable line included, falls back
// to the region start: re-exporting duplicates is recoverable,
// skipping records is not.
func (r *Reconciler) matchOffset(line string, reg region) uint32 {
	target, err := reg.reencode(line)
	if err != nil {
		debugf("last line does not re-encode, re-exporting from start: %v", err)
		return reg.start
	}
	it := reg.iter(reg.start)
	for {
		rec, err := it.Next()
		if err != nil {
			debugf("match scan stopped at offset %d: %v", it.Offset(), err)
			return reg.start
		}
		if rec == nil {
			debugf("no record matches last exported line, re-exporting from start")
			return reg.start
		}
		if bytes.Equal(rec.Raw, target) {
			return rec.Offset + uint32(len(rec.Raw))
		}
	}
}

// ExportTags appends every tag record past the reconciled resume
// point to the named file and returns the number of lines written.
//
// A record that fails to decode mid-batch is a data-integrity
// anomaly: the batch is abandoned, nothing is appended and the error
// is surfaced to the operator rather than emitting corrupt text.
func (r *Reconciler) ExportTags(name string) (int, error) {
	return r.export(name, r.tagRegion())
}

// ExportLogs is ExportTags for the log record stream.
func (r *Reconciler) ExportLogs(name string) (int, error) {
	return r.export(name, r.logRegion())
}

func (r *Reconciler) export(name string, reg region) (int, error) {
	offset, need, err := r.resume(name, reg)
	if err != nil {
		return 0, err
	}
	if !need {
		return 0, nil
	}

	var lines []string
	it := reg.iter(offset)
	for {
		rec, err := it.Next()
		if err != nil {
			return 0, fmt.Errorf("export halted, nothing written: %w", err)
		}
		if rec == nil {
			break
		}
		lines = append(lines, FormatRecord(rec))
	}
	if err := r.ext.Append(name, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}
