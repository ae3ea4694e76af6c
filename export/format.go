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

// Package export renders flash records as text lines for the external
// store and reconciles a partially transferred export after
// interruption.
package export

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
)

// TimeLayout is the timestamp format of exported lines.
const TimeLayout = "01/02/2006 15:04:05"

// ErrBadLine means an external store line did not parse back into a
// record.
var ErrBadLine = errors.New("unparseable export line")

// FormatRecord renders a record as its export line:
//
//	EM tag:  "HHHHHHHHHH, C, MM/DD/YYYY HH:MM:SS"
//	ISO tag: "CCC.HHHHHHHHHH, TTT, C, MM/DD/YYYY HH:MM:SS"
//	log:     "<EventText>, MM/DD/YYYY HH:MM:SS"
func FormatRecord(rec *flash.Record) string {
	if frame := rec.Frame(); frame != nil {
		return FormatTagFrame(frame)
	}
	return fmt.Sprintf("%s, %s", rec.Event, rec.Timestamp.Format(TimeLayout))
}

// FormatTagFrame renders a live detection as its export line; the
// mirror path uses it without round-tripping through record bytes.
func FormatTagFrame(f *etag.TagFrame) string {
	ts := f.DetectedAt.Format(TimeLayout)
	if f.Protocol == etag.ProtocolISO11784 {
		return fmt.Sprintf("%s, %d, %d, %s", f.IDString(), f.Temperature, f.Circuit, ts)
	}
	return fmt.Sprintf("%s, %d, %s", f.IDString(), f.Circuit, ts)
}

// ReencodeTagLine parses a tag export line back into the record bytes
// it was rendered from. The reconciler compares these byte-for-byte
// against the flash stream.
func ReencodeTagLine(line string) ([]byte, error) {
	fields := strings.Split(strings.TrimSpace(line), ", ")
	switch len(fields) {
	case 3:
		return reencodeEMLine(fields)
	case 4:
		return reencodeISOLine(fields)
	default:
		return nil, fmt.Errorf("%d fields: %w", len(fields), ErrBadLine)
	}
}

func reencodeEMLine(fields []string) ([]byte, error) {
	id, err := parseHexBytes(fields[0], 5)
	if err != nil {
		return nil, err
	}
	circuit, ts, err := parseCircuitAndTime(fields[1], fields[2])
	if err != nil {
		return nil, err
	}
	rec, err := flash.EncodeTagRecord(&etag.TagFrame{
		Protocol:   etag.ProtocolEM4100,
		ID:         id,
		Circuit:    circuit,
		DetectedAt: ts,
	})
	if err != nil {
		return nil, fmt.Errorf("re-encode EM line: %w", err)
	}
	return rec, nil
}

func reencodeISOLine(fields []string) ([]byte, error) {
	country, national, err := parseISOID(fields[0])
	if err != nil {
		return nil, err
	}
	temp, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("temperature %q: %w", fields[1], ErrBadLine)
	}
	circuit, ts, err := parseCircuitAndTime(fields[2], fields[3])
	if err != nil {
		return nil, err
	}

	// Rebuild the 6 stored id bytes from country code and national
	// id, inverting the IDString rendering.
	id := []byte{
		national[4], national[3], national[2], national[1],
		national[0]&0x3F | byte(country&0x03)<<6,
		byte(country >> 2),
	}
	rec, err := flash.EncodeTagRecord(&etag.TagFrame{
		Protocol:    etag.ProtocolISO11784,
		ID:          id,
		Circuit:     circuit,
		Temperature: byte(temp),
		DetectedAt:  ts,
	})
	if err != nil {
		return nil, fmt.Errorf("re-encode ISO line: %w", err)
	}
	return rec, nil
}

// ReencodeLogLine parses a log export line back into record bytes.
func ReencodeLogLine(line string) ([]byte, error) {
	text, tsText, ok := strings.Cut(strings.TrimSpace(line), ", ")
	if !ok {
		return nil, fmt.Errorf("log line %q: %w", line, ErrBadLine)
	}
	var event flash.EventCode
	switch text {
	case flash.EventLoggingStarted.String():
		event = flash.EventLoggingStarted
	case flash.EventGoingToSleep.String():
		event = flash.EventGoingToSleep
	case flash.EventWakeFromSleep.String():
		event = flash.EventWakeFromSleep
	default:
		return nil, fmt.Errorf("event %q: %w", text, ErrBadLine)
	}
	ts, err := time.ParseInLocation(TimeLayout, tsText, time.Local)
	if err != nil {
		return nil, fmt.Errorf("timestamp %q: %w", tsText, ErrBadLine)
	}
	rec, err := flash.EncodeLogRecord(event, ts)
	if err != nil {
		return nil, fmt.Errorf("re-encode log line: %w", err)
	}
	return rec, nil
}

// parseHexBytes decodes 2n upper-hex digits into n bytes.
func parseHexBytes(s string, n int) ([]byte, error) {
	if len(s) != 2*n {
		return nil, fmt.Errorf("hex id %q: %w", s, ErrBadLine)
	}
	out := make([]byte, n)
	for i := range out {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("hex id %q: %w", s, ErrBadLine)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// parseISOID splits "CCC.HHHHHHHHHH" into the country code and the 5
// national id bytes, most significant first.
func parseISOID(s string) (uint16, []byte, error) {
	countryText, idText, ok := strings.Cut(s, ".")
	if !ok || len(countryText) != 3 {
		return 0, nil, fmt.Errorf("ISO id %q: %w", s, ErrBadLine)
	}
	country, err := strconv.ParseUint(countryText, 16, 10)
	if err != nil {
		return 0, nil, fmt.Errorf("country code %q: %w", countryText, ErrBadLine)
	}
	national, err := parseHexBytes(idText, 5)
	if err != nil {
		return 0, nil, err
	}
	return uint16(country), national, nil
}

func parseCircuitAndTime(circuitText, tsText string) (int, time.Time, error) {
	circuit, err := strconv.Atoi(circuitText)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("circuit %q: %w", circuitText, ErrBadLine)
	}
	ts, err := time.ParseInLocation(TimeLayout, tsText, time.Local)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("timestamp %q: %w", tsText, ErrBadLine)
	}
	return circuit, ts, nil
}
