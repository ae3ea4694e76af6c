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

package export_test

import (
	"testing"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"github.com/Eli-S-Bridge/ETAG-V10/export"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exportTime is built in the local zone so formatted output is
// deterministic regardless of where tests run.
var exportTime = time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local)

func emRecord(t *testing.T, circuit int, id [5]byte) *flash.Record {
	t.Helper()
	raw, err := flash.EncodeTagRecord(&etag.TagFrame{
		Protocol: etag.ProtocolEM4100, ID: id[:], Circuit: circuit, DetectedAt: exportTime,
	})
	require.NoError(t, err)
	rec, _, err := flash.DecodeTagRecord(raw)
	require.NoError(t, err)
	return rec
}

func isoRecord(t *testing.T, circuit int, id [6]byte, temp byte) *flash.Record {
	t.Helper()
	raw, err := flash.EncodeTagRecord(&etag.TagFrame{
		Protocol: etag.ProtocolISO11784, ID: id[:], Circuit: circuit,
		Temperature: temp, DetectedAt: exportTime,
	})
	require.NoError(t, err)
	rec, _, err := flash.DecodeTagRecord(raw)
	require.NoError(t, err)
	return rec
}

func TestFormatRecord(t *testing.T) {
	t.Parallel()

	em := emRecord(t, 1, [5]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	assert.Equal(t, "0102030405, 1, 03/15/2024 10:30:00", export.FormatRecord(em))

	iso := isoRecord(t, 2, [6]byte{0x78, 0x56, 0x34, 0x12, 0x92, 0xF5}, 66)
	assert.Equal(t, "3D6.1212345678, 66, 2, 03/15/2024 10:30:00", export.FormatRecord(iso))

	raw, err := flash.EncodeLogRecord(flash.EventGoingToSleep, exportTime)
	require.NoError(t, err)
	logRec, _, err := flash.DecodeLogRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "Going to sleep, 03/15/2024 10:30:00", export.FormatRecord(logRec))
}

func TestReencodeTagLine_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rec  *flash.Record
		name string
	}{
		{name: "EM", rec: emRecord(t, 1, [5]byte{0x01, 0x02, 0x03, 0x04, 0x05})},
		{name: "EM high bytes", rec: emRecord(t, 2, [5]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01})},
		{name: "ISO", rec: isoRecord(t, 2, [6]byte{0x78, 0x56, 0x34, 0x12, 0x92, 0xF5}, 66)},
		{name: "ISO zero temp", rec: isoRecord(t, 1, [6]byte{1, 2, 3, 4, 5, 6}, 0)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			line := export.FormatRecord(tt.rec)
			raw, err := export.ReencodeTagLine(line)
			require.NoError(t, err)
			assert.Equal(t, tt.rec.Raw, raw, "line %q", line)
		})
	}
}

func TestReencodeLogLine_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, event := range []flash.EventCode{
		flash.EventLoggingStarted, flash.EventGoingToSleep, flash.EventWakeFromSleep,
	} {
		raw, err := flash.EncodeLogRecord(event, exportTime)
		require.NoError(t, err)
		rec, _, err := flash.DecodeLogRecord(raw)
		require.NoError(t, err)

		got, err := export.ReencodeLogLine(export.FormatRecord(rec))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}

func TestReencodeTagLine_BadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
	}{
		{name: "empty", line: ""},
		{name: "wrong field count", line: "0102030405, 1"},
		{name: "short id", line: "01020304, 1, 03/15/2024 10:30:00"},
		{name: "non-hex id", line: "01020304XX, 1, 03/15/2024 10:30:00"},
		{name: "bad circuit", line: "0102030405, x, 03/15/2024 10:30:00"},
		{name: "bad timestamp", line: "0102030405, 1, yesterday"},
		{name: "circuit out of range", line: "0102030405, 9, 03/15/2024 10:30:00"},
		{name: "ISO missing period", line: "3D61212345678, 66, 2, 03/15/2024 10:30:00"},
		{name: "ISO bad temperature", line: "3D6.1212345678, hot, 2, 03/15/2024 10:30:00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := export.ReencodeTagLine(tt.line)
			require.Error(t, err)
		})
	}
}

func TestReencodeLogLine_BadInput(t *testing.T) {
	t.Parallel()

	_, err := export.ReencodeLogLine("Never happened, 03/15/2024 10:30:00")
	require.ErrorIs(t, err, export.ErrBadLine)

	_, err = export.ReencodeLogLine("no comma here")
	require.ErrorIs(t, err, export.ErrBadLine)
}
