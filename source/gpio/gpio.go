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

// Package gpio provides an edge source over periph.io GPIO pins: the
// demodulated RFID data line as an edge interrupt input plus one
// shutdown pin per antenna circuit.
package gpio

import (
	"fmt"
	"sync"
	"time"

	etag "github.com/Eli-S-Bridge/ETAG-V10"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Shutdown pins are active high: driving one high powers its antenna
// circuit down. Both circuits are forced off at creation, after every
// Stop and on Close.
const shutdownOff = gpio.High

const (
	defaultBuffer = 512

	// edgePollTimeout bounds each WaitForEdge call so the capture
	// goroutine notices Stop promptly.
	edgePollTimeout = 10 * time.Millisecond
)

// Source is an etag.EdgeSource over GPIO edge interrupts.
//
// Thread Safety: the capture goroutine only timestamps edges and
// performs a non-blocking channel send; an edge arriving while the
// channel is full is dropped, never blocked on. All pin control stays
// on the caller's goroutine.
type Source struct {
	data     gpio.PinIO
	shutdown map[int]gpio.PinIO
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
	dataPin      string
	shutdownPins map[int]string
	buffer       int
}

// WithDataPin names the demodulated data input pin.
func WithDataPin(name string) Option {
	return func(c *config) error {
		if name == "" {
			return etag.ErrInvalidParameter
		}
		c.dataPin = name
		return nil
	}
}

// WithShutdownPin names the shutdown pin of an antenna circuit.
func WithShutdownPin(circuit int, name string) Option {
	return func(c *config) error {
		if circuit < 1 || name == "" {
			return etag.ErrInvalidParameter
		}
		c.shutdownPins[circuit] = name
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

// New resolves the configured pins and powers all circuits down.
func New(opts ...Option) (*Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	cfg := &config{shutdownPins: make(map[int]string), buffer: defaultBuffer}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.dataPin == "" || len(cfg.shutdownPins) == 0 {
		return nil, etag.ErrInvalidParameter
	}

	data := gpioreg.ByName(cfg.dataPin)
	if data == nil {
		return nil, fmt.Errorf("data pin %q not found", cfg.dataPin)
	}

	s := &Source{
		data:     data,
		shutdown: make(map[int]gpio.PinIO, len(cfg.shutdownPins)),
		buffer:   cfg.buffer,
	}
	for circuit, name := range cfg.shutdownPins {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("shutdown pin %q for circuit %d not found", name, circuit)
		}
		s.shutdown[circuit] = pin
	}
	if err := s.allOff(); err != nil {
		return nil, err
	}
	return s, nil
}

// allOff drives every shutdown pin high.
func (s *Source) allOff() error {
	for circuit, pin := range s.shutdown {
		if err := pin.Out(shutdownOff); err != nil {
			return fmt.Errorf("shut down circuit %d: %w", circuit, err)
		}
	}
	return nil
}

// Start implements etag.EdgeSource: it energizes the one requested
// circuit, arms the edge interrupt and begins streaming edges.
func (s *Source) Start(circuit int) error {
	if s.closed {
		return etag.ErrSourceClosed
	}
	if s.started {
		return fmt.Errorf("circuit %d: source already started: %w", circuit, etag.ErrInvalidParameter)
	}
	pin, ok := s.shutdown[circuit]
	if !ok {
		return fmt.Errorf("unknown circuit %d: %w", circuit, etag.ErrInvalidParameter)
	}

	if err := s.allOff(); err != nil {
		return err
	}
	if err := pin.Out(!shutdownOff); err != nil {
		return fmt.Errorf("energize circuit %d: %w", circuit, err)
	}
	if err := s.data.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		_ = s.allOff()
		return fmt.Errorf("arm edge input %s: %w", s.data, err)
	}

	s.ch = make(chan etag.Edge, s.buffer)
	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.capture(s.ch, s.quit)
	s.started = true
	return nil
}

// capture timestamps edges until quit closes.
func (s *Source) capture(ch chan<- etag.Edge, quit <-chan struct{}) {
	defer s.wg.Done()
	last := time.Now()
	for {
		select {
		case <-quit:
			return
		default:
		}
		if !s.data.WaitForEdge(edgePollTimeout) {
			continue
		}
		now := time.Now()
		delta := now.Sub(last)
		last = now
		edge := etag.Edge{
			DeltaMicros: uint32(delta.Microseconds()),
			Level:       s.data.Read() == gpio.High,
		}
		select {
		case ch <- edge:
		default:
			// Consumer is behind; dropping keeps the capture loop
			// non-blocking.
		}
	}
}

// Edges implements etag.EdgeSource.
func (s *Source) Edges() <-chan etag.Edge { return s.ch }

// Stop implements etag.EdgeSource: it disarms the interrupt and powers
// every circuit down.
func (s *Source) Stop() error {
	if !s.started {
		return nil
	}
	close(s.quit)
	s.wg.Wait()
	s.started = false

	if err := s.data.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		_ = s.allOff()
		return fmt.Errorf("disarm edge input %s: %w", s.data, err)
	}
	return s.allOff()
}

// Close implements etag.EdgeSource.
func (s *Source) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.closed = true
	return nil
}

// Ensure Source implements etag.EdgeSource.
var _ etag.EdgeSource = (*Source)(nil)
