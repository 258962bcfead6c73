package source

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Handle is an open media source. ReadAt never touches the cursor and is
// safe for concurrent use; the cursor is only reachable through WithCursor,
// which serialises callers.
type Handle interface {
	io.ReaderAt
	Size() int64
	Format() Format
	Name() string
	// Fingerprint identifies the content revision for cache keys
	Fingerprint() string
	// WithCursor runs fn with exclusive access to the read cursor
	WithCursor(fn func(io.ReadSeeker) error) error
	Close() error
}

// File is a Handle backed by a file on disk.
type File struct {
	path        string
	file        *os.File
	size        int64
	format      Format
	fingerprint string

	mu sync.Mutex // guards the file cursor
}

// Open opens path, classifies open failures and detects the format.
func Open(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, classifyOpenError(abs, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, abs)
	}

	header, err := readHeader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	format, err := DetectFormat(header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	return &File{
		path:        abs,
		file:        f,
		size:        info.Size(),
		format:      format,
		fingerprint: fingerprint(abs, info.Size(), info.ModTime(), header),
	}, nil
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
}

func readHeader(r io.ReaderAt, size int64) ([]byte, error) {
	n := int64(HeaderProbeSize)
	if size < n {
		n = size
	}
	header := make([]byte, n)
	read, err := r.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return header[:read], nil
}

// fingerprint combines identity, size, mtime and a header checksum
func fingerprint(name string, size int64, modTime time.Time, header []byte) string {
	return fmt.Sprintf("%s:%d:%d:%08x", name, size, modTime.UnixNano(), crc32.ChecksumIEEE(header))
}

// ReadAt implements io.ReaderAt without moving the cursor
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

// Size returns the file size in bytes
func (f *File) Size() int64 { return f.size }

// Format returns the detected format
func (f *File) Format() Format { return f.format }

// Name returns the absolute path
func (f *File) Name() string { return f.path }

// Fingerprint returns the cache identity of this file revision
func (f *File) Fingerprint() string { return f.fingerprint }

// WithCursor runs fn while holding the cursor lock.
func (f *File) WithCursor(fn func(io.ReadSeeker) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f.file)
}

// Close closes the underlying file
func (f *File) Close() error {
	return f.file.Close()
}
