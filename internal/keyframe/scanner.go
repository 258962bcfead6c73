package keyframe

// FallbackFrameSize is the size assumed for a NAL unit whose end is not
// visible inside the scanned window
const FallbackFrameSize = 1024

// WindowOverlap is the number of trailing bytes of a window that the Scanner
// defers to the next window. It covers a 4-byte start code, so the start code
// and its NAL header byte always land together in one window.
const WindowOverlap = 4

// Keyframe is an IDR unit located in a byte window.
type Keyframe struct {
	Offset int64 // absolute offset of the start code
	Size   int64 // estimated size up to the next start code
}

// Unit is a NAL unit located in a byte window.
type Unit struct {
	Type   uint8
	Offset int64
	Size   int64

	codeLen int
}

// ScanWindow returns every IDR unit whose start code and header byte lie
// inside buf. base is the absolute offset of buf[0].
//
// Windows are scanned independently: a start code split across two calls is
// not found. Use Scanner with overlapping windows to avoid that.
func ScanWindow(buf []byte, base int64) []Keyframe {
	var keyframes []Keyframe
	for _, u := range scanUnits(buf, base, len(buf)) {
		if u.Type == NALTypeIDR {
			keyframes = append(keyframes, Keyframe{Offset: u.Offset, Size: u.Size})
		}
	}
	return keyframes
}

// Scanner finds NAL units across a sequence of overlapping windows without
// reporting any unit twice.
type Scanner struct {
	resume int64 // units starting before this offset were already reported
}

// NewScanner creates a scanner positioned at the start of a stream
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan reports the NAL units in buf, read at absolute offset base. Unless
// final is set, units starting in the last WindowOverlap bytes are held back
// and the next window must start at NextOffset(base, len(buf)).
func (s *Scanner) Scan(buf []byte, base int64, final bool) []Unit {
	limit := len(buf)
	if !final {
		limit -= WindowOverlap
		if limit < 0 {
			limit = 0
		}
	}

	units := scanUnits(buf, base, limit)
	out := units[:0]
	for _, u := range units {
		if u.Offset < s.resume {
			continue
		}
		out = append(out, u)
		s.resume = u.Offset + int64(u.codeLen)
	}
	return out
}

// NextOffset returns where the window following [base, base+n) must start.
func NextOffset(base int64, n int) int64 {
	if n <= WindowOverlap {
		return base + int64(n)
	}
	return base + int64(n) - WindowOverlap
}

type startCode struct {
	pos int
	len int
}

// scanUnits locates start codes in buf and returns the units whose start code
// begins before limit and whose header byte is inside buf.
func scanUnits(buf []byte, base int64, limit int) []Unit {
	var codes []startCode
	for i := 0; i+2 < len(buf); {
		n := startCodeAt(buf, i)
		if n == 0 {
			i++
			continue
		}
		codes = append(codes, startCode{pos: i, len: n})
		i += n
	}

	units := make([]Unit, 0, len(codes))
	for k, sc := range codes {
		if sc.pos >= limit {
			break
		}
		header := sc.pos + sc.len
		if header >= len(buf) {
			continue
		}

		size := int64(FallbackFrameSize)
		if k+1 < len(codes) {
			size = int64(codes[k+1].pos - sc.pos)
		}

		units = append(units, Unit{
			Type:    NALType(buf[header]),
			Offset:  base + int64(sc.pos),
			Size:    size,
			codeLen: sc.len,
		})
	}
	return units
}
