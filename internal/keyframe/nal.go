package keyframe

// H.264 NAL unit types the engine cares about
const (
	NALTypeSlice = 1 // Non-IDR slice
	NALTypeIDR   = 5 // IDR slice
	NALTypeSEI   = 6 // Supplemental enhancement information
	NALTypeSPS   = 7 // Sequence parameter set
	NALTypePPS   = 8 // Picture parameter set
	NALTypeAUD   = 9 // Access unit delimiter
)

// nalTypeMask selects the nal_unit_type bits of the NAL header byte
const nalTypeMask = 0x1F

// NALType extracts the NAL unit type from the first byte after a start code.
func NALType(header byte) uint8 {
	return header & nalTypeMask
}

// IsParameterSet reports whether the NAL type is SPS or PPS.
func IsParameterSet(nalType uint8) bool {
	return nalType == NALTypeSPS || nalType == NALTypePPS
}

// startCodeAt returns the length of the Annex-B start code beginning at i
// (4 for 00 00 00 01, 3 for 00 00 01) or 0 when there is none.
func startCodeAt(data []byte, i int) int {
	if i+2 >= len(data) || data[i] != 0 || data[i+1] != 0 {
		return 0
	}
	if data[i+2] == 1 {
		return 3
	}
	if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
		return 4
	}
	return 0
}
