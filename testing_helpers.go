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
	"sync"
)

// MockEdgeSource is a scriptable edge source for hosted tests. Each
// circuit can be given a pre-recorded edge sequence; Start delivers
// that sequence immediately on a buffered channel and then leaves the
// channel open, so a reader that has not completed sits out its
// deadline exactly as it would against quiet hardware.
type MockEdgeSource struct {
	scripts     map[int][]Edge
	ch          chan Edge
	StartErr    error
	mu          sync.Mutex
	LastCircuit int
	StartCalls  int
	StopCalls   int
	started     bool
	closed      bool
}

// NewMockEdgeSource creates an empty mock source.
func NewMockEdgeSource() *MockEdgeSource {
	return &MockEdgeSource{
		scripts: make(map[int][]Edge),
	}
}

// SetEdges scripts the edge sequence delivered when the given circuit
// is started.
func (m *MockEdgeSource) SetEdges(circuit int, edges []Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[circuit] = edges
}

// Start implements EdgeSource.
func (m *MockEdgeSource) Start(circuit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	m.LastCircuit = circuit
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.closed {
		return ErrSourceClosed
	}
	script := m.scripts[circuit]
	m.ch = make(chan Edge, len(script)+1)
	for _, e := range script {
		m.ch <- e
	}
	m.started = true
	return nil
}

// Edges implements EdgeSource.
func (m *MockEdgeSource) Edges() <-chan Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch
}

// Stop implements EdgeSource.
func (m *MockEdgeSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	m.started = false
	return nil
}

// Close implements EdgeSource.
func (m *MockEdgeSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Started reports whether the source is between Start and Stop.
func (m *MockEdgeSource) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}
