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
	"context"
	"errors"
	"time"
)

// ReaderConfig contains configuration options for the Reader
type ReaderConfig struct {
	// CheckDelay is the presence-check window. During it only the pulse
	// count matters; a quiet field aborts the attempt immediately.
	CheckDelay time.Duration
	// ReadTimeout bounds the whole attempt, presence check included.
	ReadTimeout time.Duration
	// PresenceSlack is subtracted from the expected one-pulse-per-
	// millisecond count when judging whether a tag is present.
	PresenceSlack int
}

// DefaultReaderConfig returns the read windows used by the field
// logger build.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		CheckDelay:    50 * time.Millisecond,
		ReadTimeout:   500 * time.Millisecond,
		PresenceSlack: 25,
	}
}

// decoder is the per-protocol state machine driven by a read attempt.
type decoder interface {
	Feed(Edge)
	Complete() bool
	Frame() *TagFrame
	PulseCount() int
	Reset()
	Protocol() Protocol
}

// Reader sequences tag read attempts against an edge source.
//
// Thread Safety: Reader is NOT thread-safe. A read attempt is strictly
// sequential: the source is started, the presence window elapses, the
// full-read window races the decoder against its deadline, and the
// source is stopped unconditionally. No second attempt may start while
// one is in flight, and only one antenna circuit is energized at a
// time.
type Reader struct {
	source EdgeSource
	config *ReaderConfig
	clock  func() time.Time
}

// New creates a Reader over the given edge source.
func New(source EdgeSource, opts ...Option) (*Reader, error) {
	if source == nil {
		return nil, errors.New("edge source cannot be nil")
	}
	r := &Reader{
		source: source,
		config: DefaultReaderConfig(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.config.ReadTimeout <= r.config.CheckDelay {
		return nil, ErrInvalidParameter
	}
	return r, nil
}

// Source returns the underlying edge source
func (r *Reader) Source() EdgeSource { return r.source }

// newDecoder returns a fresh state machine for the protocol.
func newDecoder(proto Protocol) decoder {
	if proto == ProtocolISO11784 {
		return NewISODecoder()
	}
	return NewEM4100Decoder()
}

// ReadTag performs one tag read attempt on the given antenna circuit.
//
// The attempt has two phases. First a short presence check: edges are
// consumed for CheckDelay, and if fewer pulses arrived than the window
// length in milliseconds minus PresenceSlack, the field is considered
// empty and ErrNoTag is returned without waiting out the full window.
// Otherwise the decoder races the ReadTimeout deadline; expiry without
// a validated frame returns ErrReadTimeout. Both are transient
// outcomes, not faults.
//
// The edge source is stopped - and with it every antenna circuit
// powered down - before ReadTag returns, regardless of outcome.
func (r *Reader) ReadTag(ctx context.Context, circuit int, proto Protocol) (*TagFrame, error) {
	dec := newDecoder(proto)

	if err := r.source.Start(circuit); err != nil {
		return nil, &ReadError{Op: "start source", Circuit: circuit, Err: err}
	}
	defer func() {
		if err := r.source.Stop(); err != nil {
			debugf("stopping edge source: %v", err)
		}
	}()

	deadline := time.NewTimer(r.config.ReadTimeout)
	defer deadline.Stop()

	if err := r.presenceCheck(ctx, dec, circuit); err != nil {
		return nil, err
	}
	return r.fullRead(ctx, dec, circuit, deadline)
}

// presenceCheck consumes edges for the check window and decides
// whether a tag is worth a full read.
func (r *Reader) presenceCheck(ctx context.Context, dec decoder, circuit int) error {
	window := time.NewTimer(r.config.CheckDelay)
	defer window.Stop()

	edges := r.source.Edges()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-edges:
			if !ok {
				return &ReadError{Op: "presence check", Circuit: circuit, Err: ErrSourceClosed}
			}
			dec.Feed(e)
		case <-window.C:
			threshold := int(r.config.CheckDelay/time.Millisecond) - r.config.PresenceSlack
			if dec.PulseCount() <= threshold {
				debugf("circuit %d: %d pulses in check window, no tag", circuit, dec.PulseCount())
				return ErrNoTag
			}
			return nil
		}
	}
}

// fullRead races the decoder against the attempt deadline. The
// completion check runs before each wait: the frame may already have
// validated on edges consumed during the presence window.
func (r *Reader) fullRead(ctx context.Context, dec decoder, circuit int, deadline *time.Timer) (*TagFrame, error) {
	edges := r.source.Edges()
	for {
		if dec.Complete() {
			frame := dec.Frame()
			frame.Circuit = circuit
			frame.DetectedAt = r.clock()
			debugf("circuit %d: read %s", circuit, frame)
			return frame, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case e, ok := <-edges:
			if !ok {
				return nil, &ReadError{Op: "full read", Circuit: circuit, Err: ErrSourceClosed}
			}
			dec.Feed(e)
		case <-deadline.C:
			debugf("circuit %d: read window expired", circuit)
			return nil, ErrReadTimeout
		}
	}
}
