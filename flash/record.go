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
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
)

// Record wire format. Every record opens with a discriminant byte and
// closes with a 4-byte Unix-seconds timestamp stored least-significant
// byte first. The byte order is a deliberate wire rule, not a memory
// layout artifact: the most-significant byte lands at the end of the
// record, and for any operative Unix time it is never 0xFF, so no
// record can end with the erased sentinel. Discriminants are likewise
// never 0xFF, so no record can start with it either.
const (
	// EMRecordLen is the size of an EM4100 tag record.
	EMRecordLen = 10
	// ISORecordLen is the size of an ISO 11784/5 tag record.
	ISORecordLen = 12
	// LogRecordLen is the size of a log event record.
	LogRecordLen = 5

	// MaxRecordLen bounds every record kind.
	MaxRecordLen = ISORecordLen

	// isoDiscFlag marks a tag record's circuit byte as ISO.
	isoDiscFlag = 0x80

	// maxCircuit bounds the circuit number stored in a discriminant.
	maxCircuit = 8

	timestampLen = 4
)

// EventCode identifies a log record event.
type EventCode byte

// Log event codes as stored in flash.
const (
	EventLoggingStarted EventCode = 11
	EventGoingToSleep   EventCode = 12
	EventWakeFromSleep  EventCode = 13
)

// String returns the event text used in exported logs.
func (e EventCode) String() string {
	switch e {
	case EventLoggingStarted:
		return "Logging started"
	case EventGoingToSleep:
		return "Going to sleep"
	case EventWakeFromSleep:
		return "Wake from sleep"
	default:
		return fmt.Sprintf("event %d", byte(e))
	}
}

func (e EventCode) valid() bool {
	return e >= EventLoggingStarted && e <= EventWakeFromSleep
}

// RecordKind discriminates decoded records.
type RecordKind byte

// Record kinds.
const (
	RecordTagEM RecordKind = iota
	RecordTagISO
	RecordLog
)

// Record is a decoded flash record together with its encoded form and
// the logical offset it was read from.
type Record struct {
	// Timestamp is the record's wall-clock time.
	Timestamp time.Time
	// ID is the tag id of a tag record; nil for log records.
	ID []byte
	// Raw is the record exactly as stored.
	Raw []byte
	// Offset is the logical offset of the record's first byte.
	Offset uint32
	// Kind discriminates the remaining fields.
	Kind RecordKind
	// Circuit is the antenna circuit of a tag record.
	Circuit int
	// Event is the event code of a log record.
	Event EventCode
	// Temperature is the raw temperature byte of an ISO tag record.
	Temperature byte
}

// Frame rebuilds the tag frame of a tag record, for formatting with
// the same helpers the live read path uses. Returns nil for log
// records.
func (r *Record) Frame() *etag.TagFrame {
	switch r.Kind {
	case RecordTagEM:
		return &etag.TagFrame{
			Protocol:   etag.ProtocolEM4100,
			ID:         r.ID,
			Circuit:    r.Circuit,
			DetectedAt: r.Timestamp,
		}
	case RecordTagISO:
		return &etag.TagFrame{
			Protocol:    etag.ProtocolISO11784,
			ID:          r.ID,
			Circuit:     r.Circuit,
			Temperature: r.Temperature,
			DetectedAt:  r.Timestamp,
		}
	default:
		return nil
	}
}

// putTimestamp appends ts as 4 Unix-seconds bytes, LSB first.
func putTimestamp(dst []byte, ts time.Time) ([]byte, error) {
	u := ts.Unix()
	if u < 0 || u>>24 >= 0xFF {
		return nil, ErrTimestampRange
	}
	return append(dst,
		byte(u), byte(u>>8), byte(u>>16), byte(u>>24)), nil
}

// readTimestamp decodes 4 Unix-seconds bytes, LSB first.
func readTimestamp(src []byte) time.Time {
	u := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	return time.Unix(int64(u), 0)
}

// EncodeTagRecord serializes a decoded tag frame for storage. The
// frame's DetectedAt stamps the record.
func EncodeTagRecord(f *etag.TagFrame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("nil frame: %w", ErrBadRecord)
	}
	if f.Circuit < 1 || f.Circuit > maxCircuit {
		return nil, fmt.Errorf("circuit %d: %w", f.Circuit, ErrBadRecord)
	}
	var buf []byte
	switch f.Protocol {
	case etag.ProtocolEM4100:
		if len(f.ID) != 5 {
			return nil, fmt.Errorf("EM4100 id length %d: %w", len(f.ID), ErrBadRecord)
		}
		buf = make([]byte, 0, EMRecordLen)
		buf = append(buf, byte(f.Circuit))
		buf = append(buf, f.ID...)
	case etag.ProtocolISO11784:
		if len(f.ID) != 6 {
			return nil, fmt.Errorf("ISO id length %d: %w", len(f.ID), ErrBadRecord)
		}
		buf = make([]byte, 0, ISORecordLen)
		buf = append(buf, byte(f.Circuit)|isoDiscFlag)
		buf = append(buf, f.ID...)
		buf = append(buf, f.Temperature)
	default:
		return nil, fmt.Errorf("protocol %d: %w", f.Protocol, ErrBadRecord)
	}
	return putTimestamp(buf, f.DetectedAt)
}

// EncodeLogRecord serializes a log event.
func EncodeLogRecord(event EventCode, ts time.Time) ([]byte, error) {
	if !event.valid() {
		return nil, fmt.Errorf("event %d: %w", byte(event), ErrBadRecord)
	}
	buf := make([]byte, 0, LogRecordLen)
	buf = append(buf, byte(event))
	return putTimestamp(buf, ts)
}

// TagRecordLen returns the full record length implied by a tag record
// discriminant byte, or ErrBadRecord for a discriminant outside the
// expected ranges. Export uses it to detect record misalignment.
func TagRecordLen(disc byte) (int, error) {
	circuit := int(disc &^ byte(isoDiscFlag))
	if circuit < 1 || circuit > maxCircuit {
		return 0, fmt.Errorf("tag discriminant 0x%02X: %w", disc, ErrBadRecord)
	}
	if disc&isoDiscFlag != 0 {
		return ISORecordLen, nil
	}
	return EMRecordLen, nil
}

// DecodeTagRecord decodes one tag record from the front of buf and
// returns it with the number of bytes consumed.
func DecodeTagRecord(buf []byte) (*Record, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("empty record: %w", ErrBadRecord)
	}
	length, err := TagRecordLen(buf[0])
	if err != nil {
		return nil, 0, err
	}
	if len(buf) < length {
		return nil, 0, fmt.Errorf("tag record truncated at %d of %d bytes: %w",
			len(buf), length, ErrBadRecord)
	}
	rec := &Record{
		Raw:       append([]byte(nil), buf[:length]...),
		Circuit:   int(buf[0] &^ byte(isoDiscFlag)),
		Timestamp: readTimestamp(buf[length-timestampLen:]),
	}
	if buf[0]&isoDiscFlag != 0 {
		rec.Kind = RecordTagISO
		rec.ID = append([]byte(nil), buf[1:7]...)
		rec.Temperature = buf[7]
	} else {
		rec.Kind = RecordTagEM
		rec.ID = append([]byte(nil), buf[1:6]...)
	}
	return rec, length, nil
}

// DecodeLogRecord decodes one log record from the front of buf and
// returns it with the number of bytes consumed.
func DecodeLogRecord(buf []byte) (*Record, int, error) {
	if len(buf) < LogRecordLen {
		return nil, 0, fmt.Errorf("log record truncated at %d bytes: %w", len(buf), ErrBadRecord)
	}
	event := EventCode(buf[0])
	if !event.valid() {
		return nil, 0, fmt.Errorf("log discriminant 0x%02X: %w", buf[0], ErrBadRecord)
	}
	return &Record{
		Kind:      RecordLog,
		Event:     event,
		Raw:       append([]byte(nil), buf[:LogRecordLen]...),
		Timestamp: readTimestamp(buf[1:]),
	}, LogRecordLen, nil
}
