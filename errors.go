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
	"errors"
	"fmt"
)

// Read outcome errors. ErrNoTag and ErrReadTimeout are the expected
// results of polling an empty field; callers treat them as "nothing
// this cycle", not as failures.
var (
	// ErrNoTag means the presence check saw too few pulses to bother
	// with a full read.
	ErrNoTag = errors.New("no tag present")

	// ErrReadTimeout means the full-read window expired before a
	// validated frame was accumulated.
	ErrReadTimeout = errors.New("tag read timeout")

	// ErrSourceClosed means the edge source shut down mid-attempt.
	ErrSourceClosed = errors.New("edge source closed")

	// ErrInvalidParameter means a configuration value is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ReadError wraps an edge-source failure with the attempt it occurred
// in.
type ReadError struct {
	Err     error
	Op      string
	Circuit int
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("%s (circuit %d): %v", e.Op, e.Circuit, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error { return e.Err }

// IsTransient reports whether an error is an expected per-cycle outcome
// that the polling loop should absorb and move past. Anything else is
// a real fault the caller must look at.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoTag), errors.Is(err, ErrReadTimeout):
		return true
	default:
		return false
	}
}
