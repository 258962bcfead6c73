package keyframe

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"
)

const (
	hierarchicalChunks = 10 // chunks searched by hierarchical lookup
	adaptiveEntryCost  = 64 // bytes per entry above which Adaptive lookup goes sparse
)

// FindNearest returns the last entry at or before t, or the first entry when
// t precedes them all. ok is false for an empty index.
func FindNearest(idx *Index, t float64) (entry Entry, ok bool) {
	if idx.Empty() {
		return Entry{}, false
	}
	return nearestBinary(idx.Entries, t), true
}

// Lookup finds the keyframe for t using the search suited to the index
// strategy. ok is false for an empty index.
func Lookup(idx *Index, t float64) (entry Entry, ok bool) {
	if idx.Empty() {
		return Entry{}, false
	}

	switch idx.Strategy {
	case StrategySparse:
		return nearestSparse(idx.Entries, t), true
	case StrategyHierarchical:
		return nearestHierarchical(idx.Entries, t), true
	case StrategyAdaptive:
		if idx.MemoryUsage > int64(len(idx.Entries))*adaptiveEntryCost {
			return nearestSparse(idx.Entries, t), true
		}
		return nearestBinary(idx.Entries, t), true
	default:
		return nearestBinary(idx.Entries, t), true
	}
}

// nearestBinary binary searches for the rightmost entry with Timestamp <= t.
func nearestBinary(entries []Entry, t float64) Entry {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Timestamp > t
	})
	if i == 0 {
		return entries[0]
	}
	return entries[i-1]
}

// nearestSparse scans every entry at or before t for the smallest gap.
func nearestSparse(entries []Entry, t float64) Entry {
	best := -1
	bestGap := math.Inf(1)
	for i, e := range entries {
		if e.Timestamp > t {
			continue
		}
		if gap := t - e.Timestamp; gap < bestGap {
			best, bestGap = i, gap
		}
	}
	if best < 0 {
		return entries[0]
	}
	return entries[best]
}

// nearestHierarchical narrows the search to one of ~10 chunks first.
func nearestHierarchical(entries []Entry, t float64) Entry {
	chunkSize := (len(entries) + hierarchicalChunks - 1) / hierarchicalChunks
	if chunkSize < 1 {
		chunkSize = 1
	}

	var chosen []Entry
	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]
		if chunk[0].Timestamp > t {
			break
		}
		// nearest preceding chunk unless a later one brackets t
		chosen = chunk
		if t <= chunk[len(chunk)-1].Timestamp {
			break
		}
	}

	if chosen == nil {
		return entries[0]
	}
	return nearestBinary(chosen, t)
}

// SeekToTime moves src to the keyframe for t and returns its offset.
func SeekToTime(src io.Seeker, t float64, idx *Index) (int64, error) {
	result, err := SeekToTimeWithResult(src, t, idx)
	if err != nil {
		return 0, err
	}
	return result.KeyframeOffset, nil
}

// SeekToTimeWithResult moves src to the keyframe for t and reports how close
// it landed. An empty index seeks to offset 0 with PrecisionAchieved = t.
//
// The index is not validated here; callers run Validate once before use.
func SeekToTimeWithResult(src io.Seeker, t float64, idx *Index) (*SeekResult, error) {
	start := time.Now()

	if idx == nil {
		return nil, &InvalidIndexError{Reason: "index is nil"}
	}
	if t < 0 || math.IsNaN(t) {
		return nil, fmt.Errorf("%w: %.3fs", ErrInvalidSeekPosition, t)
	}
	if t > idx.TotalDuration {
		return nil, fmt.Errorf("%w: requested %.3fs, duration %.3fs", ErrSeekBeyondEnd, t, idx.TotalDuration)
	}

	entry, ok := Lookup(idx, t)
	if !ok {
		if err := seekExact(src, 0); err != nil {
			return nil, err
		}
		return &SeekResult{
			RequestedTime:     t,
			ActualTime:        0,
			KeyframeOffset:    0,
			PrecisionAchieved: t,
			ExecutionTime:     time.Since(start),
		}, nil
	}

	if err := seekExact(src, entry.FileOffset); err != nil {
		return nil, err
	}

	used := entry
	return &SeekResult{
		RequestedTime:     t,
		ActualTime:        entry.Timestamp,
		KeyframeOffset:    entry.FileOffset,
		PrecisionAchieved: math.Abs(t - entry.Timestamp),
		KeyframeUsed:      &used,
		ExecutionTime:     time.Since(start),
	}, nil
}

// seekExact positions src at offset and checks that it got there.
func seekExact(src io.Seeker, offset int64) error {
	pos, err := src.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}
	if pos != offset {
		return fmt.Errorf("%w: requested offset %d, source at %d", ErrSeekFailed, offset, pos)
	}
	return nil
}
