package source

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory is a Handle over an in-memory buffer, used for uploads held in
// memory and in tests.
type Memory struct {
	name        string
	reader      *bytes.Reader
	format      Format
	fingerprint string

	mu sync.Mutex
}

// NewMemory wraps data and detects its format.
func NewMemory(name string, data []byte) (*Memory, error) {
	header := data
	if len(header) > HeaderProbeSize {
		header = header[:HeaderProbeSize]
	}
	format, err := DetectFormat(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Memory{
		name:        name,
		reader:      bytes.NewReader(data),
		format:      format,
		fingerprint: fingerprint(name, int64(len(data)), time.Time{}, header),
	}, nil
}

// ReadAt implements io.ReaderAt
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	return m.reader.ReadAt(p, off)
}

// Size returns the buffer length
func (m *Memory) Size() int64 { return m.reader.Size() }

// Format returns the detected format
func (m *Memory) Format() Format { return m.format }

// Name returns the name given at construction
func (m *Memory) Name() string { return m.name }

// Fingerprint returns the cache identity of this buffer
func (m *Memory) Fingerprint() string { return m.fingerprint }

// WithCursor runs fn while holding the cursor lock
func (m *Memory) WithCursor(fn func(io.ReadSeeker) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.reader)
}

// Close is a no-op
func (m *Memory) Close() error { return nil }
