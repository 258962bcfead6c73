package keyframe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/keyseek/internal/logger"
)

const (
	// DefaultMaxScanBytes bounds how much of a source is scanned
	DefaultMaxScanBytes = 100 * 1024 * 1024

	// DefaultMemoryBudget is the Adaptive budget when no limit is given
	DefaultMemoryBudget = 20 * 1024 * 1024

	sparseInterval       = 30   // Sparse keeps every 30th keyframe
	adaptiveInterval     = 60   // Adaptive keeps every 60th keyframe once over budget
	hierarchicalInterval = 30   // Hierarchical keeps every 30th keyframe after the dense span
	hierarchicalDense    = 10.0 // seconds kept at full density by Hierarchical
)

// Source is a random-access byte source of known size.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Builder scans sources and builds keyframe indexes.
//
// Timestamps are synthetic: the n-th keyframe found is placed at
// n / frameRate seconds. Use FromTimeline when decoded timestamps exist.
type Builder struct {
	frameRate    float64
	maxScanBytes int64
	memoryBudget int64
	limiter      *rate.Limiter
	logger       logger.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithFrameRate sets the assumed frame rate for synthetic timestamps.
func WithFrameRate(fps float64) BuilderOption {
	return func(b *Builder) {
		if fps > 0 {
			b.frameRate = fps
		}
	}
}

// WithMaxScanBytes caps how many bytes of a source are scanned.
func WithMaxScanBytes(n int64) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.maxScanBytes = n
		}
	}
}

// WithMemoryBudget sets the Adaptive strategy budget in bytes.
func WithMemoryBudget(n int64) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.memoryBudget = n
		}
	}
}

// WithReadLimiter throttles scan reads. The limiter burst must be at least
// MaxWindowSize.
func WithReadLimiter(l *rate.Limiter) BuilderOption {
	return func(b *Builder) {
		b.limiter = l
	}
}

// WithLogger sets the builder logger.
func WithLogger(l logger.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a builder with the given options
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		frameRate:    DefaultFrameRate,
		maxScanBytes: DefaultMaxScanBytes,
		memoryBudget: DefaultMemoryBudget,
		logger:       logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FrameRate returns the frame rate used for synthetic timestamps.
func (b *Builder) FrameRate() float64 {
	return b.frameRate
}

// Build scans src and builds an index with the given strategy.
//
// Only ReadAt is used, so a cursor kept by src is left where it was.
// Read errors are returned wrapped but keep their original kind. If ctx is
// cancelled no index is returned.
func (b *Builder) Build(ctx context.Context, src Source, strategy Strategy) (*Index, error) {
	return b.build(ctx, src, strategy, b.memoryBudget)
}

// BuildWithMemoryLimit picks a strategy from limitMB and builds an index
// whose Adaptive budget is the same limit.
func (b *Builder) BuildWithMemoryLimit(ctx context.Context, src Source, limitMB int) (*Index, error) {
	strategy := StrategyForMemoryLimit(limitMB)
	budget := int64(limitMB) * 1024 * 1024
	if budget <= 0 {
		budget = b.memoryBudget
	}
	return b.build(ctx, src, strategy, budget)
}

func (b *Builder) build(ctx context.Context, src Source, strategy Strategy, budget int64) (*Index, error) {
	start := time.Now()
	size := src.Size()
	window := strategy.WindowSize()
	buf := make([]byte, window)
	scanner := NewScanner()

	var (
		entries     []Entry
		memoryUsage int64
		frameCount  int
		gopOpen     bool // last IDR seen was retained and is collecting slices
		offset      int64
		scanned     int64
	)

	for offset < size && offset < b.maxScanBytes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := window
		if remaining := size - offset; remaining < int64(n) {
			n = int(remaining)
		}

		if b.limiter != nil {
			if err := b.limiter.WaitN(ctx, n); err != nil {
				return nil, fmt.Errorf("read throttle: %w", err)
			}
		}

		read, err := src.ReadAt(buf[:n], offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read source at offset %d: %w", offset, err)
		}
		if read == 0 {
			break
		}

		end := offset + int64(read)
		scanned = end
		final := read < n || end >= size || end >= b.maxScanBytes

		for _, u := range scanner.Scan(buf[:read], offset, final) {
			switch u.Type {
			case NALTypeIDR:
				ts := float64(frameCount) / b.frameRate
				if strategy.retains(frameCount, ts, memoryUsage, budget) {
					entries = append(entries, Entry{
						Timestamp:  ts,
						FileOffset: u.Offset,
						FrameSize:  u.Size,
						FrameType:  FrameTypeI,
					})
					memoryUsage += entrySize
					gopOpen = true
				} else {
					gopOpen = false
				}
				frameCount++
			case NALTypeSlice:
				if gopOpen {
					entries[len(entries)-1].GOPSize++
				}
			}
		}

		if final {
			break
		}
		offset = NextOffset(offset, read)
	}

	idx := &Index{
		Entries:         entries,
		TotalDuration:   b.estimateDuration(entries, size),
		IndexPrecision:  indexPrecision(entries, b.frameRate),
		MemoryOptimized: strategy.MemoryOptimized(),
		Strategy:        strategy,
		MemoryUsage:     memoryUsage,
	}

	b.logger.WithFields(map[string]interface{}{
		"strategy":       strategy.String(),
		"keyframes_seen": frameCount,
		"entries":        len(entries),
		"bytes_scanned":  scanned,
		"source_size":    size,
		"duration":       idx.TotalDuration,
		"precision":      idx.IndexPrecision,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	}).Debug("Keyframe index built")

	return idx, nil
}

// PlaybackIndex returns an entry-less index spanning the size-estimated
// duration of a source. Seeks against it land on offset 0, which lets a
// session keep playing from the start when no usable index could be built.
func (b *Builder) PlaybackIndex(size int64, strategy Strategy) *Index {
	return &Index{
		TotalDuration:   b.estimateDuration(nil, size),
		IndexPrecision:  1.0 / b.frameRate,
		MemoryOptimized: strategy.MemoryOptimized(),
		Strategy:        strategy,
	}
}

// retains decides whether the frameCount-th keyframe is kept.
func (s Strategy) retains(frameCount int, timestamp float64, memoryUsage, budget int64) bool {
	switch s {
	case StrategySparse:
		return frameCount%sparseInterval == 0
	case StrategyAdaptive:
		return memoryUsage < budget || frameCount%adaptiveInterval == 0
	case StrategyHierarchical:
		return timestamp < hierarchicalDense || frameCount%hierarchicalInterval == 0
	default:
		return true
	}
}

// estimateDuration derives the stream duration from the retained entries,
// or from the file size and a bitrate guess when nothing was found.
func (b *Builder) estimateDuration(entries []Entry, size int64) float64 {
	frameTime := 1.0 / b.frameRate
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		// about one keyframe per second
		return maxFloat(last.Timestamp+frameTime, float64(len(entries)))
	}

	duration := float64(size) * 8 / estimatedBitrate(size)
	if duration <= 0 {
		return frameTime
	}
	return duration
}

// estimatedBitrate guesses a bitrate in bits per second from the file size.
func estimatedBitrate(size int64) float64 {
	switch {
	case size <= 10*1024*1024:
		return 1_500_000
	case size <= 100*1024*1024:
		return 3_000_000
	default:
		return 5_000_000
	}
}

// indexPrecision is the average spacing of entries, never finer than one frame.
func indexPrecision(entries []Entry, frameRate float64) float64 {
	frameTime := 1.0 / frameRate
	if len(entries) < 2 {
		return frameTime
	}
	span := entries[len(entries)-1].Timestamp - entries[0].Timestamp
	return maxFloat(span/float64(len(entries)), frameTime)
}
