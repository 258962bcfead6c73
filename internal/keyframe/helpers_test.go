package keyframe

import (
	"bytes"
)

// memSource is an in-memory Source that also tracks a cursor for seeks
type memSource struct {
	*bytes.Reader
}

func newMemSource(data []byte) *memSource {
	return &memSource{Reader: bytes.NewReader(data)}
}

// nalUnit builds an Annex-B NAL unit with a 4-byte start code. The payload
// is filled with 0xAB so it never contains a start code.
func nalUnit(nalType byte, payload int) []byte {
	unit := []byte{0x00, 0x00, 0x00, 0x01, 0x60 | nalType}
	for i := 0; i < payload; i++ {
		unit = append(unit, 0xAB)
	}
	return unit
}

// idrStream builds count IDR units of 14 bytes each.
func idrStream(count int) []byte {
	var buf []byte
	for i := 0; i < count; i++ {
		buf = append(buf, nalUnit(NALTypeIDR, 9)...)
	}
	return buf
}

// streamWithIDRsAt returns size filler bytes with a 4-byte IDR start code
// written at each offset.
func streamWithIDRsAt(size int, offsets ...int) []byte {
	buf := bytes.Repeat([]byte{0xAB}, size)
	for _, off := range offsets {
		copy(buf[off:], []byte{0x00, 0x00, 0x00, 0x01, 0x65})
	}
	return buf
}

// scenarioStream is SPS + PPS in the first 14 bytes followed by three
// 14-byte IDR units at offsets 14, 28 and 42.
func scenarioStream() []byte {
	var buf []byte
	buf = append(buf, nalUnit(NALTypeSPS, 2)...)
	buf = append(buf, nalUnit(NALTypePPS, 2)...)
	buf = append(buf, idrStream(3)...)
	return buf
}
