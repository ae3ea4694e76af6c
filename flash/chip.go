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

import "errors"

// Erased is the value unprogrammed flash reads as. It doubles as the
// implicit end-of-data marker of the record regions.
const Erased = 0xFF

// Storage errors.
var (
	// ErrOutOfRange means an address or length fell outside the chip
	// or a configured region.
	ErrOutOfRange = errors.New("flash address out of range")

	// ErrWriteVerify means a read-back after a write did not return
	// the bytes just programmed.
	ErrWriteVerify = errors.New("flash write verification failed")

	// ErrRegionFull means an append would run past the end of its
	// record region.
	ErrRegionFull = errors.New("record region full")

	// ErrBadRecord means record bytes did not decode: an unknown
	// discriminant or a field outside its valid range.
	ErrBadRecord = errors.New("malformed record")

	// ErrTimestampRange means a timestamp cannot be stored without
	// violating the never-ends-with-0xFF record rule.
	ErrTimestampRange = errors.New("timestamp outside storable range")

	// ErrParamsMissing means the parameters region carries no
	// initialization marker; the device has never been provisioned.
	ErrParamsMissing = errors.New("device parameters not initialized")

	// ErrInvalidParameter means a configuration value is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Geometry describes the page organization of a DataFlash chip.
//
// Pages carry PageSize physical bytes of which DataPerPage are used
// for data; the remainder is left to the chip's spare area. Physical
// addresses are formed as page<<PageShift | byteInPage.
type Geometry struct {
	// PageSize is the physical page size in bytes.
	PageSize int
	// DataPerPage is the number of usable data bytes per page.
	DataPerPage int
	// PageShift positions the page number within a physical address.
	PageShift uint
	// Pages is the page count of the chip.
	Pages int
}

// AT45DB321Geometry is the 32-Mbit DataFlash fitted to the logger
// board: 8192 pages of 528 bytes, 512 of them used for data.
func AT45DB321Geometry() Geometry {
	return Geometry{
		PageSize:    528,
		DataPerPage: 512,
		PageShift:   10,
		Pages:       8192,
	}
}

// Capacity returns the logical capacity in data bytes.
func (g Geometry) Capacity() uint32 {
	return uint32(g.DataPerPage) * uint32(g.Pages)
}

// Physical forms the physical chip address of a byte within a page.
func (g Geometry) Physical(page, byteInPage int) uint32 {
	return uint32(page)<<g.PageShift | uint32(byteInPage)
}

// valid reports whether a (page, byteInPage, length) window lies
// within one page of the chip.
func (g Geometry) valid(page, byteInPage, length int) bool {
	return page >= 0 && page < g.Pages &&
		byteInPage >= 0 && length >= 0 &&
		byteInPage+length <= g.DataPerPage
}

// Chip is the physical flash interface. All transfers stay within a
// single page; splitting across pages is the Translator's job.
//
// Implementations model NOR program semantics: a write can only clear
// bits, an erase sets a whole page back to 0xFF.
type Chip interface {
	// Geometry returns the chip's page organization.
	Geometry() Geometry
	// ReadPage reads len(buf) bytes starting at byteInPage of page.
	ReadPage(page, byteInPage int, buf []byte) error
	// WritePage programs data starting at byteInPage of page, leaving
	// the rest of the page untouched.
	WritePage(page, byteInPage int, data []byte) error
	// ErasePage resets every byte of page to 0xFF.
	ErasePage(page int) error
	// EraseChip resets the whole chip. Long-blocking; the device is
	// unavailable for its duration.
	EraseChip() error
	// Close releases the underlying bus.
	Close() error
}
