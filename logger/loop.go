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

// Package logger runs the field logging loop: alternate antenna
// circuits, read tags, suppress repeats, persist to flash and mirror
// to the external store when configured.
package logger

import (
	"context"
	"fmt"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"github.com/Eli-S-Bridge/ETAG-V10/export"
	"github.com/Eli-S-Bridge/ETAG-V10/flash"
)

// Circuit binds an antenna circuit to the tag protocol read on it.
type Circuit struct {
	Number   int
	Protocol etag.Protocol
}

// Config contains configuration options for the Loop
type Config struct {
	// Circuits is the alternation order of read attempts.
	Circuits []Circuit
	// DedupWindow suppresses repeats of the same tag on the same
	// circuit within this span of the stored read.
	DedupWindow time.Duration
	// PollPause is the idle gap between read attempts.
	PollPause time.Duration
	// Mirror appends each stored detection to the external store as
	// well as flash.
	Mirror bool
	// TagFile is the external store file mirrored detections append
	// to.
	TagFile string
}

// DefaultConfig returns the two-circuit configuration of the field
// logger build: EM4100 on circuit 1, ISO 11784/5 on circuit 2.
func DefaultConfig() *Config {
	return &Config{
		Circuits: []Circuit{
			{Number: 1, Protocol: etag.ProtocolEM4100},
			{Number: 2, Protocol: etag.ProtocolISO11784},
		},
		DedupWindow: 10 * time.Second,
		PollPause:   10 * time.Millisecond,
	}
}

// Loop sequences read attempts and persists accepted detections.
//
// A missing or failing external store never halts logging: the loop
// degrades to flash-only, warns once through OnStoreDegraded and
// keeps going.
type Loop struct {
	reader *etag.Reader
	store  *flash.Store
	ext    export.Store
	config *Config
	clock  func() time.Time

	// OnTagRead fires after a detection is persisted.
	OnTagRead func(*etag.TagFrame)
	// OnRepeatSuppressed fires when a read is dropped as a repeat.
	OnRepeatSuppressed func(*etag.TagFrame)
	// OnStoreDegraded fires once when mirroring is abandoned.
	OnStoreDegraded func(error)

	lastKey  string
	lastAt   time.Time
	next     int
	degraded bool
}

// New creates a logging loop. ext may be nil when cfg.Mirror is off.
func New(reader *etag.Reader, store *flash.Store, ext export.Store, cfg *Config) (*Loop, error) {
	if reader == nil || store == nil {
		return nil, flash.ErrInvalidParameter
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Circuits) == 0 || cfg.DedupWindow < 0 {
		return nil, flash.ErrInvalidParameter
	}
	if cfg.Mirror && ext == nil {
		return nil, flash.ErrInvalidParameter
	}
	return &Loop{
		reader: reader,
		store:  store,
		ext:    ext,
		config: cfg,
		clock:  time.Now,
	}, nil
}

// SetClock overrides the dedup time source; tests use it.
func (l *Loop) SetClock(now func() time.Time) { l.clock = now }

// Run logs until the context is cancelled. A LoggingStarted event is
// recorded on entry.
func (l *Loop) Run(ctx context.Context) error {
	if _, err := l.store.AppendLog(flash.EventLoggingStarted, l.clock()); err != nil {
		return fmt.Errorf("record logging start: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := l.Cycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.config.PollPause):
		}
	}
}

// Cycle performs one read attempt on the next circuit in the
// alternation order. Transient outcomes (no tag, decode timeout,
// suppressed repeat) are absorbed; real faults return.
func (l *Loop) Cycle(ctx context.Context) error {
	circuit := l.config.Circuits[l.next]
	l.next = (l.next + 1) % len(l.config.Circuits)

	frame, err := l.reader.ReadTag(ctx, circuit.Number, circuit.Protocol)
	if err != nil {
		if etag.IsTransient(err) {
			debugf("circuit %d: %v", circuit.Number, err)
			return nil
		}
		return err
	}

	if l.suppressed(frame) {
		debugf("circuit %d: repeat of %s suppressed", frame.Circuit, frame.IDString())
		if l.OnRepeatSuppressed != nil {
			l.OnRepeatSuppressed(frame)
		}
		return nil
	}
	return l.persist(frame)
}

// suppressed applies the repeat-read window. The key covers the full
// id and the circuit; the window is anchored at the stored read, so a
// tag parked on the antenna still logs once per window.
func (l *Loop) suppressed(frame *etag.TagFrame) bool {
	key := fmt.Sprintf("%s/%d", frame.IDString(), frame.Circuit)
	if key == l.lastKey && l.clock().Sub(l.lastAt) < l.config.DedupWindow {
		return true
	}
	return false
}

// persist stores the detection in flash and mirrors it if configured.
func (l *Loop) persist(frame *etag.TagFrame) error {
	if _, err := l.store.AppendTag(frame); err != nil {
		return fmt.Errorf("persist detection: %w", err)
	}
	l.lastKey = fmt.Sprintf("%s/%d", frame.IDString(), frame.Circuit)
	l.lastAt = l.clock()

	if l.config.Mirror && !l.degraded {
		line := export.FormatTagFrame(frame)
		if err := l.ext.Append(l.config.TagFile, []string{line}); err != nil {
			// Flash has the record; give up on mirroring, not on
			// logging.
			l.degraded = true
			debugf("external store failed, degrading to flash-only: %v", err)
			if l.OnStoreDegraded != nil {
				l.OnStoreDegraded(err)
			}
		}
	}

	if l.OnTagRead != nil {
		l.OnTagRead(frame)
	}
	return nil
}

// Degraded reports whether mirroring has been abandoned.
func (l *Loop) Degraded() bool { return l.degraded }

// NoteSleep records the GoingToSleep event. The caller must let all
// storage transactions finish before actually powering down; no
// operation may be in flight across a sleep transition.
func (l *Loop) NoteSleep() error {
	_, err := l.store.AppendLog(flash.EventGoingToSleep, l.clock())
	return err
}

// NoteWake records the WakeFromSleep event.
func (l *Loop) NoteWake() error {
	_, err := l.store.AppendLog(flash.EventWakeFromSleep, l.clock())
	return err
}
