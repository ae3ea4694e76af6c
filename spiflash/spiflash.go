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

// Package spiflash implements flash.Chip for AT45DB-family DataFlash
// over periph.io SPI.
package spiflash

import (
	"errors"
	"fmt"
	"time"

	"github.com/Eli-S-Bridge/ETAG-V10/flash"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// AT45DB opcodes.
const (
	opStatus        = 0xD7
	opArrayRead     = 0x03 // legacy continuous read, no dummy bytes
	opPageToBuffer  = 0x53 // main memory page to buffer 1
	opBufferWrite   = 0x84 // buffer 1 write
	opBufferProgram = 0x83 // buffer 1 to main memory with built-in erase
	opPageErase     = 0x81

	statusReady = 0x80

	addrLen = 3
)

// chipEraseSeq is the four-byte chip erase command.
var chipEraseSeq = []byte{0xC7, 0x94, 0x80, 0x9A}

// ErrNotReady means the chip did not signal ready within the
// operation's deadline.
var ErrNotReady = errors.New("flash chip not ready")

// ErrNoDevice means nothing answered on the SPI port.
var ErrNoDevice = errors.New("no flash device detected")

// Default operation deadlines. A page program is milliseconds; a chip
// erase is tens of seconds by design.
const (
	defaultReadyTimeout     = 500 * time.Millisecond
	defaultChipEraseTimeout = 2 * time.Minute

	// maxClockFreq is conservative for the legacy read opcode.
	maxClockFreq = 10 * physic.MegaHertz
)

// Chip drives an AT45DB DataFlash as a flash.Chip.
//
// Thread Safety: Chip is NOT thread-safe. The foreground loop owns
// all flash bus access; nothing else may touch the SPI bus.
type Chip struct {
	conn             spi.Conn
	port             spi.PortCloser
	portName         string
	geom             flash.Geometry
	readyTimeout     time.Duration
	chipEraseTimeout time.Duration
}

// Option is a functional option for configuring a Chip
type Option func(*Chip) error

// WithGeometry overrides the default AT45DB321 geometry, for other
// DataFlash densities.
func WithGeometry(g flash.Geometry) Option {
	return func(c *Chip) error {
		if g.Pages <= 0 || g.DataPerPage <= 0 || g.DataPerPage > g.PageSize {
			return flash.ErrInvalidParameter
		}
		c.geom = g
		return nil
	}
}

// WithReadyTimeout sets the deadline for program and page erase
// cycles.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Chip) error {
		if d <= 0 {
			return flash.ErrInvalidParameter
		}
		c.readyTimeout = d
		return nil
	}
}

// New opens the SPI port and probes the chip.
func New(portName string, opts ...Option) (*Chip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(maxClockFreq, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect on %s: %w", portName, err)
	}

	c := &Chip{
		conn:             conn,
		port:             port,
		portName:         portName,
		geom:             flash.AT45DB321Geometry(),
		readyTimeout:     defaultReadyTimeout,
		chipEraseTimeout: defaultChipEraseTimeout,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	if err := c.probe(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return c, nil
}

// probe reads the status register once to confirm a device answers.
// A floating bus reads all zeros or all ones.
func (c *Chip) probe() error {
	status, err := c.status()
	if err != nil {
		return err
	}
	if status == 0x00 || status == 0xFF {
		return fmt.Errorf("port %s status 0x%02X: %w", c.portName, status, ErrNoDevice)
	}
	return nil
}

// Geometry implements flash.Chip.
func (c *Chip) Geometry() flash.Geometry { return c.geom }

// status reads the status register.
func (c *Chip) status() (byte, error) {
	w := []byte{opStatus, 0x00}
	r := make([]byte, len(w))
	if err := c.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("status read on %s: %w", c.portName, err)
	}
	return r[1], nil
}

// waitReady polls the status register until the ready bit sets or the
// deadline expires.
func (c *Chip) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		status, err := c.status()
		if err != nil {
			return err
		}
		if status&statusReady != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("port %s: %w", c.portName, ErrNotReady)
		}
		time.Sleep(time.Millisecond)
	}
}

// putAddr writes a 24-bit physical address big-endian.
func putAddr(dst []byte, addr uint32) {
	dst[0] = byte(addr >> 16)
	dst[1] = byte(addr >> 8)
	dst[2] = byte(addr)
}

// ReadPage implements flash.Chip.
func (c *Chip) ReadPage(page, byteInPage int, buf []byte) error {
	if err := c.waitReady(c.readyTimeout); err != nil {
		return err
	}
	w := make([]byte, 1+addrLen+len(buf))
	w[0] = opArrayRead
	putAddr(w[1:], c.geom.Physical(page, byteInPage))
	r := make([]byte, len(w))
	if err := c.conn.Tx(w, r); err != nil {
		return fmt.Errorf("read page %d on %s: %w", page, c.portName, err)
	}
	copy(buf, r[1+addrLen:])
	return nil
}

// WritePage implements flash.Chip. DataFlash has no in-place partial
// program, so the page round-trips through the chip's SRAM buffer:
// page to buffer, patch the buffer, program the buffer back with the
// built-in erase.
func (c *Chip) WritePage(page, byteInPage int, data []byte) error {
	if err := c.waitReady(c.readyTimeout); err != nil {
		return err
	}
	pageAddr := c.geom.Physical(page, 0)

	cmd := make([]byte, 1+addrLen)
	cmd[0] = opPageToBuffer
	putAddr(cmd[1:], pageAddr)
	if err := c.conn.Tx(cmd, make([]byte, len(cmd))); err != nil {
		return fmt.Errorf("page %d to buffer on %s: %w", page, c.portName, err)
	}
	if err := c.waitReady(c.readyTimeout); err != nil {
		return err
	}

	w := make([]byte, 1+addrLen+len(data))
	w[0] = opBufferWrite
	putAddr(w[1:], uint32(byteInPage))
	copy(w[1+addrLen:], data)
	if err := c.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("buffer write on %s: %w", c.portName, err)
	}

	cmd[0] = opBufferProgram
	putAddr(cmd[1:], pageAddr)
	if err := c.conn.Tx(cmd, make([]byte, len(cmd))); err != nil {
		return fmt.Errorf("program page %d on %s: %w", page, c.portName, err)
	}
	return c.waitReady(c.readyTimeout)
}

// ErasePage implements flash.Chip.
func (c *Chip) ErasePage(page int) error {
	if err := c.waitReady(c.readyTimeout); err != nil {
		return err
	}
	cmd := make([]byte, 1+addrLen)
	cmd[0] = opPageErase
	putAddr(cmd[1:], c.geom.Physical(page, 0))
	if err := c.conn.Tx(cmd, make([]byte, len(cmd))); err != nil {
		return fmt.Errorf("erase page %d on %s: %w", page, c.portName, err)
	}
	return c.waitReady(c.readyTimeout)
}

// EraseChip implements flash.Chip. Blocks for the full erase cycle,
// tens of seconds; the chip offers no partial-progress signal.
func (c *Chip) EraseChip() error {
	if err := c.waitReady(c.readyTimeout); err != nil {
		return err
	}
	if err := c.conn.Tx(chipEraseSeq, make([]byte, len(chipEraseSeq))); err != nil {
		return fmt.Errorf("chip erase on %s: %w", c.portName, err)
	}
	return c.waitReady(c.chipEraseTimeout)
}

// Close implements flash.Chip.
func (c *Chip) Close() error {
	if c.port == nil {
		return nil
	}
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("close SPI port %s: %w", c.portName, err)
	}
	c.port = nil
	return nil
}

// Ensure Chip implements flash.Chip.
var _ flash.Chip = (*Chip)(nil)
