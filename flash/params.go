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
	"errors"
	"fmt"
)

// Parameters region wire layout, relative to Layout.ParamsStart:
// marker byte, 4-byte device id, logging-mode byte.
const (
	paramsMarker = 0xAA
	paramsIDLen  = 4
	paramsLen    = 1 + paramsIDLen + 1
)

// LogMode selects where detections are written.
type LogMode byte

// Logging modes.
const (
	// LogModeFlashOnly writes detections to flash only.
	LogModeFlashOnly LogMode = 0
	// LogModeMirrored additionally appends each detection to the
	// external store.
	LogModeMirrored LogMode = 1
)

// String returns the mode name.
func (m LogMode) String() string {
	switch m {
	case LogModeFlashOnly:
		return "flash-only"
	case LogModeMirrored:
		return "flash+external"
	default:
		return "unknown"
	}
}

// DeviceParams is the persisted device configuration. It is written
// once at first boot, read at every boot and mutated only through
// explicit operator commands.
type DeviceParams struct {
	// DeviceID is the 4-character identifier stamped into exported
	// file names.
	DeviceID [paramsIDLen]byte
	// Mode selects flash-only or mirrored logging.
	Mode LogMode
}

// ID returns the device identifier as a string.
func (p *DeviceParams) ID() string { return string(p.DeviceID[:]) }

// LoadParams reads the parameters region. ErrParamsMissing means the
// device was never provisioned.
func (s *Store) LoadParams() (*DeviceParams, error) {
	buf := make([]byte, paramsLen)
	if err := s.tr.ReadAt(s.layout.ParamsStart, buf); err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	if buf[0] != paramsMarker {
		return nil, ErrParamsMissing
	}
	p := &DeviceParams{Mode: LogMode(buf[1+paramsIDLen])}
	copy(p.DeviceID[:], buf[1:1+paramsIDLen])
	return p, nil
}

// SaveParams rewrites the parameters region. The page is erased first
// so a mode flag can be cleared as well as set.
func (s *Store) SaveParams(p *DeviceParams) error {
	if p == nil || (p.Mode != LogModeFlashOnly && p.Mode != LogModeMirrored) {
		return ErrInvalidParameter
	}
	q := uint32(s.tr.Geometry().DataPerPage)
	if err := s.tr.Chip().ErasePage(int(s.layout.ParamsStart / q)); err != nil {
		return fmt.Errorf("erase parameters page: %w", err)
	}
	buf := make([]byte, 0, paramsLen)
	buf = append(buf, paramsMarker)
	buf = append(buf, p.DeviceID[:]...)
	buf = append(buf, byte(p.Mode))
	if _, err := s.tr.WriteAt(s.layout.ParamsStart, buf); err != nil {
		return fmt.Errorf("write parameters: %w", err)
	}
	return nil
}

// EnsureParams loads the parameters, provisioning the region with
// defaults on first boot.
func (s *Store) EnsureParams(defaults *DeviceParams) (*DeviceParams, error) {
	p, err := s.LoadParams()
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrParamsMissing) {
		return nil, err
	}
	debugf("parameters missing, provisioning defaults")
	if err := s.SaveParams(defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}
