package keyframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWindow(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		base int64
		want []Keyframe
	}{
		{
			name: "empty buffer",
			data: []byte{},
			want: nil,
		},
		{
			name: "start code without header byte",
			data: []byte{0x00, 0x00, 0x00, 0x01},
			want: nil,
		},
		{
			name: "single IDR with 3-byte start code",
			data: []byte{0x00, 0x00, 0x01, 0x65, 0xAB},
			want: []Keyframe{{Offset: 0, Size: FallbackFrameSize}},
		},
		{
			name: "non-IDR units are not keyframes",
			data: append(nalUnit(NALTypeSlice, 4), nalUnit(NALTypeSEI, 4)...),
			want: nil,
		},
		{
			name: "size is distance to next start code",
			data: append(nalUnit(NALTypeIDR, 5), nalUnit(NALTypeSlice, 3)...),
			base: 1000,
			want: []Keyframe{{Offset: 1000, Size: 10}},
		},
		{
			name: "parameter sets are skipped",
			data: scenarioStream(),
			want: []Keyframe{
				{Offset: 14, Size: 14},
				{Offset: 28, Size: 14},
				{Offset: 42, Size: FallbackFrameSize},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanWindow(tt.data, tt.base))
		})
	}
}

func TestScanWindow_MissesSplitStartCode(t *testing.T) {
	data := streamWithIDRsAt(64, 30)

	// independent windows split the start code at byte 32
	first := ScanWindow(data[:32], 0)
	second := ScanWindow(data[32:], 32)

	assert.Empty(t, first)
	assert.Empty(t, second)
	assert.Len(t, ScanWindow(data, 0), 1)
}

func TestScanner_OverlapFindsSplitStartCode(t *testing.T) {
	data := streamWithIDRsAt(64, 30)
	scanner := NewScanner()

	first := scanner.Scan(data[:32], 0, false)
	next := NextOffset(0, 32)
	require.Equal(t, int64(28), next)
	second := scanner.Scan(data[next:], next, true)

	assert.Empty(t, first)
	require.Len(t, second, 1)
	assert.Equal(t, int64(30), second[0].Offset)
	assert.Equal(t, uint8(NALTypeIDR), second[0].Type)
}

func TestScanner_NoDuplicateAcrossOverlap(t *testing.T) {
	// 4-byte start code at 27: reported in the first window, and its 3-byte
	// tail at 28 is visible again in the second
	data := streamWithIDRsAt(64, 27)
	scanner := NewScanner()

	first := scanner.Scan(data[:32], 0, false)
	next := NextOffset(0, 32)
	second := scanner.Scan(data[next:], next, true)

	require.Len(t, first, 1)
	assert.Equal(t, int64(27), first[0].Offset)
	assert.Empty(t, second)
}

func TestNALType(t *testing.T) {
	assert.Equal(t, uint8(NALTypeIDR), NALType(0x65))
	assert.Equal(t, uint8(NALTypeSlice), NALType(0x41))
	assert.Equal(t, uint8(NALTypeSPS), NALType(0x67))
	assert.True(t, IsParameterSet(NALType(0x68)))
	assert.False(t, IsParameterSet(NALType(0x65)))
}
