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

// Package uart provides an edge source over a serial-attached capture
// head: a small front-end board that timestamps demodulator edges and
// streams them as 3-byte frames. It lets the whole decode stack run
// on a host machine against live antenna hardware.
//
// Wire protocol, head to host: each edge is 3 bytes. The first byte
// has bit 7 set (the only byte that does, for resync) and carries the
// pin level in bit 0. The next two bytes carry a 14-bit microsecond
// delta, high 7 bits first. Host to head: 0xA1 followed by a circuit
// byte starts streaming on that circuit, 0xA0 stops it.
package uart

import (
	"fmt"
	"sync"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"go.bug.st/serial"
)

const (
	cmdStop  = 0xA0
	cmdStart = 0xA1

	frameSync  = 0x80
	frameLevel = 0x01

	defaultBaudRate = 115200
	defaultBuffer   = 512

	// readTimeout bounds each serial read so the reader goroutine
	// notices Stop promptly.
	readTimeout = 20 * time.Millisecond
)

// Source is an etag.EdgeSource over a serial capture head.
type Source struct {
	port     serial.Port
	portName string
	ch       chan etag.Edge
	quit     chan struct{}
	wg       sync.WaitGroup
	buffer   int
	started  bool
	closed   bool
}

// Option is a functional option for configuring a Source
type Option func(*config) error

type config struct {
	baudRate int
	buffer   int
}

// WithBaudRate overrides the default 115200 baud.
func WithBaudRate(rate int) Option {
	return func(c *config) error {
		if rate <= 0 {
			return etag.ErrInvalidParameter
		}
		c.baudRate = rate
		return nil
	}
}

// WithBuffer sets the edge channel depth.
func WithBuffer(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return etag.ErrInvalidParameter
		}
		c.buffer = n
		return nil
	}
}

// Ports lists the serial ports present on the host, for operator
// guidance when the configured capture head port does not open.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// New opens the capture head's serial port.
func New(portName string, opts ...Option) (*Source, error) {
	cfg := &config{baudRate: defaultBaudRate, buffer: defaultBuffer}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	mode := &serial.Mode{BaudRate: cfg.baudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &Source{port: port, portName: portName, buffer: cfg.buffer}, nil
}

// Start implements etag.EdgeSource.
func (s *Source) Start(circuit int) error {
	if s.closed {
		return etag.ErrSourceClosed
	}
	if s.started {
		return fmt.Errorf("circuit %d: source already started: %w", circuit, etag.ErrInvalidParameter)
	}
	if circuit < 1 || circuit > 0x7F {
		return fmt.Errorf("circuit %d: %w", circuit, etag.ErrInvalidParameter)
	}

	if err := s.drain(); err != nil {
		return err
	}
	if _, err := s.port.Write([]byte{cmdStart, byte(circuit)}); err != nil {
		return fmt.Errorf("start command on %s: %w", s.portName, err)
	}

	s.ch = make(chan etag.Edge, s.buffer)
	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.read(s.ch, s.quit)
	s.started = true
	return nil
}

// drain discards stale bytes buffered from a previous attempt.
func (s *Source) drain() error {
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("drain %s: %w", s.portName, err)
	}
	return nil
}

// frameParser accumulates wire bytes into edge frames, resyncing on
// any byte with the sync bit set.
type frameParser struct {
	frame [3]byte
	have  int
}

// feed consumes one wire byte and reports a completed edge.
func (p *frameParser) feed(b byte) (etag.Edge, bool) {
	if b&frameSync != 0 {
		p.frame[0] = b
		p.have = 1
		return etag.Edge{}, false
	}
	if p.have == 0 {
		return etag.Edge{}, false // between frames, hunting for sync
	}
	p.frame[p.have] = b
	p.have++
	if p.have < len(p.frame) {
		return etag.Edge{}, false
	}
	p.have = 0
	return etag.Edge{
		DeltaMicros: uint32(p.frame[1])<<7 | uint32(p.frame[2]),
		Level:       p.frame[0]&frameLevel != 0,
	}, true
}

// read parses edge frames until quit closes.
func (s *Source) read(ch chan<- etag.Edge, quit <-chan struct{}) {
	defer s.wg.Done()

	var parser frameParser
	buf := make([]byte, 64)
	for {
		select {
		case <-quit:
			return
		default:
		}
		n, err := s.port.Read(buf)
		if err != nil {
			// The port went away mid-stream; closing the channel
			// surfaces ErrSourceClosed at the reader.
			close(ch)
			return
		}
		for _, b := range buf[:n] {
			edge, ok := parser.feed(b)
			if !ok {
				continue
			}
			select {
			case ch <- edge:
			default:
				// Consumer is behind; drop rather than stall the
				// serial reader.
			}
		}
	}
}

// Edges implements etag.EdgeSource.
func (s *Source) Edges() <-chan etag.Edge { return s.ch }

// Stop implements etag.EdgeSource.
func (s *Source) Stop() error {
	if !s.started {
		return nil
	}
	close(s.quit)
	s.wg.Wait()
	s.started = false

	if _, err := s.port.Write([]byte{cmdStop}); err != nil {
		return fmt.Errorf("stop command on %s: %w", s.portName, err)
	}
	return nil
}

// Close implements etag.EdgeSource.
func (s *Source) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close serial port %s: %w", s.portName, err)
	}
	return nil
}

// Ensure Source implements etag.EdgeSource.
var _ etag.EdgeSource = (*Source)(nil)
