package keyframe

import (
	"time"
	"unsafe"
)

// FrameTypeI tags entries that point at an intra-coded (IDR) frame
const FrameTypeI = "I"

// DefaultFrameRate is the assumed frame rate when no decoded timing is available
const DefaultFrameRate = 30.0

// Entry is one random-access point in a stream.
type Entry struct {
	Timestamp  float64 `json:"timestamp"`   // seconds
	FileOffset int64   `json:"file_offset"` // byte offset of the start code
	FrameSize  int64   `json:"frame_size"`  // estimated bytes
	GOPSize    int     `json:"gop_size"`    // frames until the next keyframe
	FrameType  string  `json:"frame_type"`
}

// entrySize is the accounted in-memory cost of one retained entry
var entrySize = int64(unsafe.Sizeof(Entry{}))

// Index is an immutable table of keyframes in ascending timestamp order.
// It is shared by reference and must not be modified after construction.
type Index struct {
	Entries         []Entry  `json:"entries"`
	TotalDuration   float64  `json:"total_duration"`
	IndexPrecision  float64  `json:"index_precision"`
	MemoryOptimized bool     `json:"memory_optimized"`
	Strategy        Strategy `json:"optimization_strategy"`
	MemoryUsage     int64    `json:"memory_usage"`
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Entries)
}

// Empty reports whether the index has no entries.
func (idx *Index) Empty() bool {
	return idx.Len() == 0
}

// SeekResult describes the outcome of a seek against an index.
type SeekResult struct {
	RequestedTime  float64 `json:"requested_time"`
	ActualTime     float64 `json:"actual_time"`
	KeyframeOffset int64   `json:"keyframe_offset"`
	// PrecisionAchieved is |RequestedTime - ActualTime| in seconds; 0 is exact.
	PrecisionAchieved float64       `json:"precision_achieved"`
	KeyframeUsed      *Entry        `json:"keyframe_used,omitempty"`
	ExecutionTime     time.Duration `json:"execution_time"`
}

// Closeness returns a 0..1 score where 1 means the keyframe matched the
// requested time exactly.
func (r *SeekResult) Closeness() float64 {
	if r.RequestedTime <= 0 {
		if r.PrecisionAchieved == 0 {
			return 1.0
		}
		return 0.0
	}
	return 1.0 - minFloat(r.PrecisionAchieved/r.RequestedTime, 1.0)
}

// Stats summarises an index.
type Stats struct {
	TotalKeyframes             int      `json:"total_keyframes"`
	MemoryUsageBytes           int64    `json:"memory_usage_bytes"`
	IndexPrecisionSeconds      float64  `json:"index_precision_seconds"`
	AverageGOPSize             float64  `json:"average_gop_size"`
	AverageFrameSizeBytes      float64  `json:"average_frame_size_bytes"`
	OptimizationStrategy       Strategy `json:"optimization_strategy"`
	SupportsSubSecondPrecision bool     `json:"supports_sub_second_precision"`
}

// GetIndexStats computes summary statistics for an index.
func GetIndexStats(idx *Index) Stats {
	stats := Stats{}
	if idx == nil {
		return stats
	}

	stats.TotalKeyframes = len(idx.Entries)
	stats.MemoryUsageBytes = idx.MemoryUsage
	stats.IndexPrecisionSeconds = idx.IndexPrecision
	stats.OptimizationStrategy = idx.Strategy
	stats.SupportsSubSecondPrecision = idx.IndexPrecision < 1.0

	if len(idx.Entries) > 0 {
		var gopTotal, sizeTotal int64
		for _, e := range idx.Entries {
			gopTotal += int64(e.GOPSize)
			sizeTotal += e.FrameSize
		}
		n := float64(len(idx.Entries))
		stats.AverageGOPSize = float64(gopTotal) / n
		stats.AverageFrameSizeBytes = float64(sizeTotal) / n
	}

	return stats
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
