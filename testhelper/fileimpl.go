// Package testhelper provides a backend.Storage double for exercising the
// pack accessor without a real disk image, the way
// github.com/diskfs/go-diskfs's own tests stub a util.File.
package testhelper

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rstspack/rstspack/backend"
)

// MemStorage is an in-memory backend.Storage backed by a growable byte
// buffer, safe for concurrent use.
type MemStorage struct {
	mu       sync.Mutex
	data     []byte
	pos      int64
	writable bool
}

// NewFileImpl wraps data as a backend.Storage. If writable is false,
// Writable() returns backend.ErrIncorrectOpenMode, mirroring the real
// file backend's read-only behavior.
func NewFileImpl(data []byte, writable bool) *MemStorage {
	return &MemStorage{data: data, writable: writable}
}

var _ backend.Storage = (*MemStorage)(nil)

// Sys reports ErrNotSuitable: a memory buffer has no underlying *os.File.
func (m *MemStorage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

// Writable returns m itself when the store was created writable.
func (m *MemStorage) Writable() (backend.WritableFile, error) {
	if !m.writable {
		return nil, backend.ErrIncorrectOpenMode
	}
	return m, nil
}

type memFileInfo struct{ size int64 }

func (i memFileInfo) Name() string       { return "memstorage" }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0o600 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() interface{}   { return nil }

func (m *MemStorage) Stat() (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memFileInfo{size: int64(len(m.data))}, nil
}

func (m *MemStorage) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.readAtLocked(b, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *MemStorage) ReadAt(b []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readAtLocked(b, off)
}

func (m *MemStorage) readAtLocked(b []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(b, m.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStorage) WriteAt(b []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(b))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	n := copy(m.data[off:], b)
	return n, nil
}

func (m *MemStorage) Seek(offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	}
	m.pos = base + offset
	return m.pos, nil
}

func (m *MemStorage) Close() error { return nil }

// Bytes returns a copy of the storage's current contents.
func (m *MemStorage) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.data)
}
