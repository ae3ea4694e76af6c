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

// Package flash implements the durable record store of the field
// logger: a byte-addressable virtual-memory layer over page-organized
// DataFlash, an append-only record codec, power-loss cursor recovery
// and the persisted device parameters.
//
// The package is built in layers:
//
//   - Chip is the physical page interface; spiflash implements it for
//     real AT45DB-family hardware, MemChip implements it in memory for
//     hosted tests.
//   - Translator maps logical byte offsets onto pages and splits
//     reads and writes that cross a page boundary, so no caller ever
//     sees page geometry.
//   - Store appends self-delimiting tag and log records behind two
//     logical cursors and recovers those cursors after power loss by
//     scanning for the first erased run.
//
// Records never start or end with the erased sentinel 0xFF, which is
// what makes the recovery scan unambiguous.
package flash
