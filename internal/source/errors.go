package source

import "errors"

var (
	// ErrFileNotFound is returned when the source path does not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrPermissionDenied is returned when the source cannot be opened for reading
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCorruptedFile is returned when the header is too short or lacks expected start codes
	ErrCorruptedFile = errors.New("corrupted file")
	// ErrUnsupportedFormat is returned when neither H.264 nor MP4 is detected
	ErrUnsupportedFormat = errors.New("unsupported format")
)
