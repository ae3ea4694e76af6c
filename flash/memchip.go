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
	"sync"
)

// SmallTestGeometry is a tiny chip for hosted tests: 8 pages of 32
// data bytes, so boundary and recovery cases stay readable.
func SmallTestGeometry() Geometry {
	return Geometry{
		PageSize:    36,
		DataPerPage: 32,
		PageShift:   6,
		Pages:       8,
	}
}

// MemChip is an in-memory Chip for hosted tests. It models NOR
// program semantics: a write ANDs the new bytes into the page, so
// only an erase can bring a bit back to one. Exported counters let
// tests assert physical transaction counts.
type MemChip struct {
	pages [][]byte
	geom  Geometry
	mu    sync.Mutex

	// WriteCalls counts WritePage transactions.
	WriteCalls int
	// EraseCalls counts ErasePage transactions.
	EraseCalls int
	// ChipErases counts EraseChip calls.
	ChipErases int
}

// NewMemChip creates a fully erased in-memory chip.
func NewMemChip(g Geometry) *MemChip {
	pages := make([][]byte, g.Pages)
	for i := range pages {
		pages[i] = erasedPage(g.DataPerPage)
	}
	return &MemChip{geom: g, pages: pages}
}

func erasedPage(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = Erased
	}
	return p
}

// Geometry implements Chip.
func (m *MemChip) Geometry() Geometry { return m.geom }

// ReadPage implements Chip.
func (m *MemChip) ReadPage(page, byteInPage int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.geom.valid(page, byteInPage, len(buf)) {
		return fmt.Errorf("read page %d byte %d len %d: %w", page, byteInPage, len(buf), ErrOutOfRange)
	}
	copy(buf, m.pages[page][byteInPage:])
	return nil
}

// WritePage implements Chip.
func (m *MemChip) WritePage(page, byteInPage int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.geom.valid(page, byteInPage, len(data)) {
		return fmt.Errorf("write page %d byte %d len %d: %w", page, byteInPage, len(data), ErrOutOfRange)
	}
	m.WriteCalls++
	for i, b := range data {
		m.pages[page][byteInPage+i] &= b
	}
	return nil
}

// ErasePage implements Chip.
func (m *MemChip) ErasePage(page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page < 0 || page >= m.geom.Pages {
		return fmt.Errorf("erase page %d: %w", page, ErrOutOfRange)
	}
	m.EraseCalls++
	m.pages[page] = erasedPage(m.geom.DataPerPage)
	return nil
}

// EraseChip implements Chip.
func (m *MemChip) EraseChip() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChipErases++
	for i := range m.pages {
		m.pages[i] = erasedPage(m.geom.DataPerPage)
	}
	return nil
}

// Close implements Chip.
func (*MemChip) Close() error { return nil }

// PageData returns a copy of a page's data bytes, for test
// assertions.
func (m *MemChip) PageData(page int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.pages[page]...)
}

// Ensure MemChip implements Chip.
var _ Chip = (*MemChip)(nil)
