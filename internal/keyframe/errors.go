package keyframe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeekPosition is returned for a negative seek time
	ErrInvalidSeekPosition = errors.New("invalid seek position")
	// ErrSeekBeyondEnd is returned when the seek time exceeds the index duration
	ErrSeekBeyondEnd = errors.New("seek beyond end of stream")
	// ErrSeekFailed is returned when the source position after a seek differs from the keyframe offset
	ErrSeekFailed = errors.New("seek failed")
	// ErrInvalidKeyframeIndex is matched by every InvalidIndexError
	ErrInvalidKeyframeIndex = errors.New("invalid keyframe index")
)

// InvalidIndexError describes the first structural violation found in an index
type InvalidIndexError struct {
	Reason string
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("invalid keyframe index: %s", e.Reason)
}

// Is makes errors.Is(err, ErrInvalidKeyframeIndex) hold for any InvalidIndexError.
func (e *InvalidIndexError) Is(target error) bool {
	return target == ErrInvalidKeyframeIndex
}
