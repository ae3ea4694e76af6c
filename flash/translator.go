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
	"bytes"
	"fmt"
	"time"
)

// DefaultSettleDelay is the pause after each physical write. It is a
// hardware characterization constant; it must stay at or above the
// chip's documented program-cycle time but the exact value is tunable
// per board.
const DefaultSettleDelay = 30 * time.Millisecond

// Translator presents the chip as a flat byte-addressable space.
// Logical offsets count only data bytes; a read or write that crosses
// a page boundary is split into two physical transfers, so callers
// never see page geometry.
type Translator struct {
	chip   Chip
	sleep  func(time.Duration)
	geom   Geometry
	settle time.Duration
	verify bool
}

// TranslatorOption is a functional option for configuring a Translator
type TranslatorOption func(*Translator) error

// WithSettleDelay overrides the post-write settle pause.
func WithSettleDelay(d time.Duration) TranslatorOption {
	return func(t *Translator) error {
		if d < 0 {
			return ErrInvalidParameter
		}
		t.settle = d
		return nil
	}
}

// WithWriteVerify enables a read-back-and-compare after every
// physical write.
func WithWriteVerify(enabled bool) TranslatorOption {
	return func(t *Translator) error {
		t.verify = enabled
		return nil
	}
}

// withSleep overrides the settle sleeper; tests use it to avoid real
// delays.
func withSleep(sleep func(time.Duration)) TranslatorOption {
	return func(t *Translator) error {
		t.sleep = sleep
		return nil
	}
}

// NewTranslator creates a Translator over the given chip.
func NewTranslator(chip Chip, opts ...TranslatorOption) (*Translator, error) {
	if chip == nil {
		return nil, ErrInvalidParameter
	}
	t := &Translator{
		chip:   chip,
		geom:   chip.Geometry(),
		settle: DefaultSettleDelay,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Geometry returns the underlying chip geometry.
func (t *Translator) Geometry() Geometry { return t.geom }

// Chip returns the underlying chip.
func (t *Translator) Chip() Chip { return t.chip }

// WriteAt programs data at the logical offset and returns the next
// free logical offset.
func (t *Translator) WriteAt(off uint32, data []byte) (uint32, error) {
	if uint64(off)+uint64(len(data)) > uint64(t.geom.Capacity()) {
		return off, fmt.Errorf("write %d bytes at %d: %w", len(data), off, ErrOutOfRange)
	}
	q := uint32(t.geom.DataPerPage)
	for len(data) > 0 {
		page := int(off / q)
		byteInPage := int(off % q)
		n := t.geom.DataPerPage - byteInPage
		if n > len(data) {
			n = len(data)
		}
		if err := t.chip.WritePage(page, byteInPage, data[:n]); err != nil {
			return off, fmt.Errorf("program page %d: %w", page, err)
		}
		t.sleep(t.settle)
		if t.verify {
			if err := t.verifyWrite(page, byteInPage, data[:n]); err != nil {
				return off, err
			}
		}
		off += uint32(n)
		data = data[n:]
	}
	return off, nil
}

// ReadAt fills buf from the logical offset.
func (t *Translator) ReadAt(off uint32, buf []byte) error {
	if uint64(off)+uint64(len(buf)) > uint64(t.geom.Capacity()) {
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), off, ErrOutOfRange)
	}
	q := uint32(t.geom.DataPerPage)
	for len(buf) > 0 {
		page := int(off / q)
		byteInPage := int(off % q)
		n := t.geom.DataPerPage - byteInPage
		if n > len(buf) {
			n = len(buf)
		}
		if err := t.chip.ReadPage(page, byteInPage, buf[:n]); err != nil {
			return fmt.Errorf("read page %d: %w", page, err)
		}
		off += uint32(n)
		buf = buf[n:]
	}
	return nil
}

// verifyWrite reads the just-programmed window back and compares.
func (t *Translator) verifyWrite(page, byteInPage int, want []byte) error {
	got := make([]byte, len(want))
	if err := t.chip.ReadPage(page, byteInPage, got); err != nil {
		return fmt.Errorf("verify read page %d: %w", page, err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("page %d byte %d: %w", page, byteInPage, ErrWriteVerify)
	}
	return nil
}
