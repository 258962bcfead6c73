//go:build unix

package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mapped is a Handle that serves reads from a read-only memory mapping of
// the file, so index scans avoid a syscall per window.
type Mapped struct {
	*File
	data   []byte
	reader *bytes.Reader

	mu sync.Mutex // guards the cursor

	// life keeps Close from unmapping under an in-flight read
	life   sync.RWMutex
	closed bool
}

// OpenMapped opens path like Open and maps its contents.
func OpenMapped(path string) (Handle, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(f.file.Fd()), 0, int(f.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map %s: %w", f.path, err)
	}

	return &Mapped{
		File:   f,
		data:   data,
		reader: bytes.NewReader(data),
	}, nil
}

// ReadAt copies from the mapping. It returns os.ErrClosed once Close has run.
func (m *Mapped) ReadAt(p []byte, off int64) (int, error) {
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return 0, os.ErrClosed
	}
	return m.reader.ReadAt(p, off)
}

// WithCursor runs fn with a cursor over the mapping.
func (m *Mapped) WithCursor(fn func(io.ReadSeeker) error) error {
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return os.ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.reader)
}

// Close waits for in-flight reads, then unmaps the data and closes the file.
// Later calls are no-ops.
func (m *Mapped) Close() error {
	m.life.Lock()
	defer m.life.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	unmapErr := unix.Munmap(m.data)
	m.data = nil
	m.reader = nil
	return errors.Join(unmapErr, m.File.Close())
}
