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
	"time"
)

// Option is a functional option for configuring a Reader
type Option func(*Reader) error

// WithCheckDelay sets the presence-check window: how long pulses are
// counted before deciding whether a tag is in the field at all.
func WithCheckDelay(d time.Duration) Option {
	return func(r *Reader) error {
		if d <= 0 {
			return ErrInvalidParameter
		}
		r.config.CheckDelay = d
		return nil
	}
}

// WithReadTimeout sets the full-read window measured from the start of
// the attempt. It must be longer than the presence-check window.
func WithReadTimeout(d time.Duration) Option {
	return func(r *Reader) error {
		if d <= 0 {
			return ErrInvalidParameter
		}
		r.config.ReadTimeout = d
		return nil
	}
}

// WithPresenceSlack sets how many pulses below the one-per-millisecond
// carrier rate the presence check tolerates before declaring the field
// empty.
func WithPresenceSlack(pulses int) Option {
	return func(r *Reader) error {
		if pulses < 0 {
			return ErrInvalidParameter
		}
		r.config.PresenceSlack = pulses
		return nil
	}
}

// WithClock overrides the time source used to stamp completed frames.
// Firmware builds inject the RTC-backed clock here; tests inject a
// fixed one.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) error {
		if now == nil {
			return ErrInvalidParameter
		}
		r.clock = now
		return nil
	}
}
