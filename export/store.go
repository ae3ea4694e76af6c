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

package export

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store is the external (removable) storage the logger mirrors and
// exports to. Implementations wrap simple file primitives; all
// reconciliation logic stays in this package.
type Store interface {
	// Exists reports whether the named file is present.
	Exists(name string) bool
	// Append appends lines to the named file, creating it if needed.
	Append(name string, lines []string) error
	// LastLine returns the final non-empty line of the named file, or
	// "" when the file is missing or empty.
	LastLine(name string) (string, error)
	// Remove deletes the named file. Removing a missing file is not
	// an error.
	Remove(name string) error
}

// DirStore is a Store over a mounted directory, typically the
// removable card's mount point.
type DirStore struct {
	dir string
}

// NewDirStore creates a store rooted at dir. The directory must
// already exist; a missing mount is how an absent card presents.
func NewDirStore(dir string) (*DirStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("external store %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("external store %s: not a directory", dir)
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) path(name string) string {
	return filepath.Join(d.dir, name)
}

// Exists implements Store.
func (d *DirStore) Exists(name string) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}

// Append implements Store. Lines are flushed and synced before
// returning; a mirrored detection must survive losing power right
// after the append.
func (d *DirStore) Append(name string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	f, err := os.OpenFile(d.path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// LastLine implements Store.
func (d *DirStore) LastLine(name string) (string, error) {
	f, err := os.Open(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	last := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return last, nil
}

// Remove implements Store.
func (d *DirStore) Remove(name string) error {
	err := os.Remove(d.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Ensure DirStore implements Store.
var _ Store = (*DirStore)(nil)
