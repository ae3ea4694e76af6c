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

package etag

import (
	"log"
	"os"
)

// Debug tracing is off unless ETAG_DEBUG is set; transient decode
// outcomes are noise in normal operation.
var debugEnabled = os.Getenv("ETAG_DEBUG") != ""

// SetDebug enables or disables debug tracing at runtime.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

func debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf("etag: "+format, args...)
	}
}

func debugln(args ...any) {
	if debugEnabled {
		log.Println(append([]any{"etag:"}, args...)...)
	}
}
