// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrOutOfRange is returned for accesses past the end of a region.
var ErrOutOfRange = errors.New("store: access outside region")

// Region is a fixed-size persistent byte area. Reads of bytes that were
// never written return zeros.
type Region interface {
	ReadBytes(offset, length int) ([]byte, error)
	WriteBytes(offset int, b []byte) error
	Size() int
}

func checkRange(size, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > size {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfRange, offset, length, size)
	}
	return nil
}

// MemoryRegion is a volatile Region backed by a byte slice.
type MemoryRegion struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemoryRegion returns a zeroed region of size bytes.
func NewMemoryRegion(size int) *MemoryRegion {
	return &MemoryRegion{buf: make([]byte, size)}
}

func (m *MemoryRegion) Size() int { return len(m.buf) }

func (m *MemoryRegion) ReadBytes(offset, length int) ([]byte, error) {
	if err := checkRange(len(m.buf), offset, length); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.buf[offset:offset+length]...), nil
}

func (m *MemoryRegion) WriteBytes(offset int, b []byte) error {
	if err := checkRange(len(m.buf), offset, len(b)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.buf[offset:], b)
	return nil
}

// FileRegion keeps the region in a single file. Every write rewrites the
// whole file through a temporary file and a rename, so a reader never sees
// a half-written region. A missing file reads as zeros.
type FileRegion struct {
	path string
	size int
}

// NewFileRegion returns a region of size bytes stored at path. The file is
// created lazily on first write.
func NewFileRegion(path string, size int) *FileRegion {
	return &FileRegion{path: path, size: size}
}

func (f *FileRegion) Size() int { return f.size }

// Path is the backing file.
func (f *FileRegion) Path() string { return f.path }

func (f *FileRegion) load() ([]byte, error) {
	buf := make([]byte, f.size)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return buf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.path, err)
	}
	// short or oversized files are treated like raw EEPROM contents:
	// whatever is there, zero beyond the end
	copy(buf, data)
	return buf, nil
}

func (f *FileRegion) ReadBytes(offset, length int) ([]byte, error) {
	if err := checkRange(f.size, offset, length); err != nil {
		return nil, err
	}
	buf, err := f.load()
	if err != nil {
		return nil, err
	}
	return buf[offset : offset+length], nil
}

func (f *FileRegion) WriteBytes(offset int, b []byte) error {
	if err := checkRange(f.size, offset, len(b)); err != nil {
		return err
	}
	buf, err := f.load()
	if err != nil {
		return err
	}
	copy(buf[offset:], b)

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("store: rename to %s: %w", f.path, err)
	}
	return nil
}
