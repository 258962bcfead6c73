package keyframe

import (
	"fmt"
	"math"
)

// TimelineKeyframe is a keyframe reported by an external metadata extractor.
type TimelineKeyframe struct {
	Timestamp  float64 `json:"timestamp"`
	FileOffset int64   `json:"file_offset"`
	FrameSize  int64   `json:"frame_size"`
}

// Timeline is a precomputed keyframe list with decoded timestamps.
type Timeline struct {
	Keyframes     []TimelineKeyframe `json:"keyframes"`
	TotalDuration float64            `json:"total_duration"`
	FrameRate     float64            `json:"frame_rate"`
}

// FromTimeline converts a timeline into a Full index without scanning. Each
// entry is treated as independently decodable (GOP size 1). Entries with a
// negative timestamp, offset or frame size are rejected. Keyframe order is
// kept as given; run Validate before trusting the result.
func FromTimeline(tl Timeline) (*Index, error) {
	if tl.FrameRate <= 0 {
		return nil, fmt.Errorf("timeline frame rate must be positive, got %g", tl.FrameRate)
	}
	if tl.TotalDuration <= 0 {
		return nil, fmt.Errorf("timeline duration must be positive, got %g", tl.TotalDuration)
	}

	entries := make([]Entry, len(tl.Keyframes))
	for i, kf := range tl.Keyframes {
		if kf.Timestamp < 0 || math.IsNaN(kf.Timestamp) || math.IsInf(kf.Timestamp, 0) {
			return nil, fmt.Errorf("timeline keyframe %d: invalid timestamp %g", i, kf.Timestamp)
		}
		if kf.FileOffset < 0 {
			return nil, fmt.Errorf("timeline keyframe %d: negative file offset %d", i, kf.FileOffset)
		}
		if kf.FrameSize < 0 {
			return nil, fmt.Errorf("timeline keyframe %d: negative frame size %d", i, kf.FrameSize)
		}
		entries[i] = Entry{
			Timestamp:  kf.Timestamp,
			FileOffset: kf.FileOffset,
			FrameSize:  kf.FrameSize,
			GOPSize:    1,
			FrameType:  FrameTypeI,
		}
	}

	return &Index{
		Entries:         entries,
		TotalDuration:   tl.TotalDuration,
		IndexPrecision:  indexPrecision(entries, tl.FrameRate),
		MemoryOptimized: false,
		Strategy:        StrategyFull,
		MemoryUsage:     int64(len(entries)) * entrySize,
	}, nil
}
