package keyframe

import "fmt"

// Validate checks the structural invariants of an index and returns the
// first violation as an *InvalidIndexError. It never repairs the index.
func Validate(idx *Index) error {
	if idx.Empty() {
		return &InvalidIndexError{Reason: "index contains no keyframes"}
	}

	for i := 1; i < len(idx.Entries); i++ {
		prev, cur := idx.Entries[i-1].Timestamp, idx.Entries[i].Timestamp
		if cur < prev {
			return &InvalidIndexError{
				Reason: fmt.Sprintf("keyframes not sorted by timestamp at entry %d (%.3fs after %.3fs)", i, cur, prev),
			}
		}
	}

	if last := idx.Entries[len(idx.Entries)-1].Timestamp; last > idx.TotalDuration {
		return &InvalidIndexError{
			Reason: fmt.Sprintf("last keyframe at %.3fs exceeds total duration %.3fs", last, idx.TotalDuration),
		}
	}

	if !(idx.IndexPrecision > 0) {
		return &InvalidIndexError{
			Reason: fmt.Sprintf("index precision must be positive, got %g", idx.IndexPrecision),
		}
	}

	return nil
}
