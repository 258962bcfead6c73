package source

import (
	"bytes"
	"fmt"
)

// Format is the coarse container format of a source
type Format int

const (
	FormatUnknown Format = iota
	FormatH264           // Annex-B elementary stream
	FormatMP4            // ISO BMFF container
)

// minHeaderSize is the smallest header format detection accepts
const minHeaderSize = 8

// HeaderProbeSize is how many leading bytes DetectFormat needs at most
const HeaderProbeSize = 4096

func (f Format) String() string {
	switch f {
	case FormatH264:
		return "h264"
	case FormatMP4:
		return "mp4"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Format) UnmarshalText(text []byte) error {
	switch string(text) {
	case "h264":
		*f = FormatH264
	case "mp4":
		*f = FormatMP4
	case "unknown":
		*f = FormatUnknown
	default:
		return fmt.Errorf("unknown format %q", text)
	}
	return nil
}

// mp4BoxTypes are box types that can open an ISO BMFF file
var mp4BoxTypes = [][]byte{
	[]byte("ftyp"),
	[]byte("styp"),
	[]byte("moov"),
	[]byte("mdat"),
	[]byte("free"),
	[]byte("skip"),
	[]byte("wide"),
}

// DetectFormat classifies a source from its leading bytes.
func DetectFormat(header []byte) (Format, error) {
	if len(header) < minHeaderSize {
		return FormatUnknown, fmt.Errorf("%w: header is %d bytes, need at least %d", ErrCorruptedFile, len(header), minHeaderSize)
	}

	for _, box := range mp4BoxTypes {
		if bytes.Equal(header[4:8], box) {
			return FormatMP4, nil
		}
	}

	// Annex-B streams open with zero bytes leading into 00 00 01
	zeros := 0
	for zeros < len(header) && header[zeros] == 0 {
		zeros++
	}
	if zeros < 2 {
		return FormatUnknown, ErrUnsupportedFormat
	}
	if zeros == len(header) || header[zeros] != 1 {
		return FormatUnknown, fmt.Errorf("%w: leading zero bytes without a start code", ErrCorruptedFile)
	}
	if zeros+1 >= len(header) {
		return FormatUnknown, fmt.Errorf("%w: start code without NAL header", ErrCorruptedFile)
	}

	nal := header[zeros+1]
	if nal&0x80 != 0 || nal&0x1F == 0 {
		return FormatUnknown, fmt.Errorf("%w: invalid NAL header 0x%02x", ErrCorruptedFile, nal)
	}
	return FormatH264, nil
}
