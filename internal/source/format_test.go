package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		header  []byte
		want    Format
		wantErr error
	}{
		{
			name:   "annex-b with 4-byte start code",
			header: annexB,
			want:   FormatH264,
		},
		{
			name:   "annex-b with 3-byte start code",
			header: []byte{0x00, 0x00, 0x01, 0x09, 0x10, 0x00, 0x00, 0x01, 0x67},
			want:   FormatH264,
		},
		{
			name:   "mp4 ftyp box",
			header: []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'},
			want:   FormatMP4,
		},
		{
			name:   "mp4 starting with mdat",
			header: []byte{0x00, 0x00, 0x10, 0x00, 'm', 'd', 'a', 't'},
			want:   FormatMP4,
		},
		{
			name:    "too short",
			header:  []byte{0x00, 0x00, 0x01, 0x65},
			wantErr: ErrCorruptedFile,
		},
		{
			name:    "zeros without start code",
			header:  make([]byte, 64),
			wantErr: ErrCorruptedFile,
		},
		{
			name:    "forbidden bit set",
			header:  []byte{0x00, 0x00, 0x00, 0x01, 0xE5, 0x00, 0x00, 0x00},
			wantErr: ErrCorruptedFile,
		},
		{
			name:    "unrelated bytes",
			header:  []byte("RIFF\x00\x00\x00\x00AVI "),
			wantErr: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, FormatUnknown, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_Text(t *testing.T) {
	for _, f := range []Format{FormatUnknown, FormatH264, FormatMP4} {
		text, err := f.MarshalText()
		assert.NoError(t, err)

		var got Format
		assert.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, f, got)
	}

	var f Format
	assert.Error(t, f.UnmarshalText([]byte("avi")))
}
