package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zsiec/keyseek/internal/indexstore"
	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/logger"
	"github.com/zsiec/keyseek/internal/metrics"
	"github.com/zsiec/keyseek/internal/source"
)

// resolveIndex walks the fallback chain: stored index, supplied timeline,
// scan with the requested strategy, Hierarchical scan, then an entry-less
// playback index. Every candidate is validated before it is trusted. Only
// cancellation aborts the chain.
func (m *Manager) resolveIndex(ctx context.Context, handle source.Handle, req OpenRequest, log logger.Logger) (*keyframe.Index, Origin, error) {
	strategy, limitMB := m.requestedStrategy(req)
	fp := handle.Fingerprint()
	// An Adaptive index built under a memory budget is only stored under the
	// default budget, so budgeted builds bypass the store.
	storable := limitMB <= 0 || strategy != keyframe.StrategyAdaptive

	if req.Timeline == nil && storable {
		if idx, ok := m.lookupStore(ctx, fp, strategy, log); ok {
			return idx, OriginStore, nil
		}
	}

	if req.Timeline != nil {
		idx, err := keyframe.FromTimeline(*req.Timeline)
		if err == nil {
			err = m.check(idx)
		}
		if err == nil {
			err = checkTimelineBounds(idx, handle.Size())
		}
		if err == nil {
			metrics.RecordIndexBuild(idx.Strategy.String(), string(OriginTimeline), 0, idx.Len(), idx.MemoryUsage)
			m.save(ctx, fp, idx, log)
			return idx, OriginTimeline, nil
		}
		log.WithError(err).Warn("Supplied timeline rejected, scanning source")
		metrics.IncrementSessionFallback("timeline_rejected")
	}

	idx, err := m.scan(ctx, handle, strategy, limitMB, OriginScan)
	if err == nil {
		if storable {
			m.save(ctx, fp, idx, log)
		}
		return idx, OriginScan, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}
	log.WithError(err).WithField("strategy", strategy.String()).Warn("Index build failed")

	if strategy != keyframe.StrategyHierarchical {
		metrics.IncrementSessionFallback("hierarchical")
		idx, err = m.scan(ctx, handle, keyframe.StrategyHierarchical, 0, OriginFallback)
		if err == nil {
			return idx, OriginFallback, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		log.WithError(err).Warn("Hierarchical fallback failed")
	}

	metrics.IncrementSessionFallback("playback")
	log.Warn("No usable keyframe index, seeks will start playback at offset 0")
	return m.builder.PlaybackIndex(handle.Size(), strategy), OriginPlayback, nil
}

// requestedStrategy resolves the request against configured defaults. A
// positive memory limit wins over an explicit strategy.
func (m *Manager) requestedStrategy(req OpenRequest) (keyframe.Strategy, int) {
	limitMB := req.MemoryLimitMB
	if limitMB <= 0 && req.Strategy == nil {
		limitMB = m.memoryLimitMB
	}
	if limitMB > 0 {
		return keyframe.StrategyForMemoryLimit(limitMB), limitMB
	}
	if req.Strategy != nil {
		return *req.Strategy, 0
	}
	return m.defaultStrategy, 0
}

func (m *Manager) scan(ctx context.Context, handle source.Handle, strategy keyframe.Strategy, limitMB int, origin Origin) (*keyframe.Index, error) {
	start := time.Now()

	var (
		idx *keyframe.Index
		err error
	)
	if limitMB > 0 {
		idx, err = m.builder.BuildWithMemoryLimit(ctx, handle, limitMB)
	} else {
		idx, err = m.builder.Build(ctx, handle, strategy)
	}
	if err != nil {
		metrics.IncrementIndexBuildError(strategy.String(), buildErrorType(err))
		return nil, err
	}
	if err := m.check(idx); err != nil {
		return nil, err
	}

	metrics.RecordIndexBuild(idx.Strategy.String(), string(origin), time.Since(start).Seconds(), idx.Len(), idx.MemoryUsage)
	return idx, nil
}

// checkTimelineBounds rejects a timeline index pointing past the end of the
// source.
func checkTimelineBounds(idx *keyframe.Index, size int64) error {
	for i, e := range idx.Entries {
		if e.FileOffset >= size {
			return fmt.Errorf("timeline keyframe %d: offset %d beyond source size %d", i, e.FileOffset, size)
		}
	}
	return nil
}

// check validates idx and counts rejections.
func (m *Manager) check(idx *keyframe.Index) error {
	if err := keyframe.Validate(idx); err != nil {
		metrics.IncrementValidationFailure()
		return err
	}
	return nil
}

func (m *Manager) lookupStore(ctx context.Context, fp string, strategy keyframe.Strategy, log logger.Logger) (*keyframe.Index, bool) {
	if m.store == nil {
		return nil, false
	}

	idx, err := m.store.Get(ctx, fp, strategy)
	switch {
	case errors.Is(err, indexstore.ErrNotFound):
		metrics.RecordStoreLookup("miss")
		return nil, false
	case err != nil:
		metrics.RecordStoreLookup("error")
		m.sampled.Sample(logger.CategoryStoreLookup).WithError(err).WithField("fingerprint", fp).Warn("Index store lookup failed")
		return nil, false
	}

	metrics.RecordStoreLookup("hit")
	if err := m.check(idx); err != nil {
		log.WithError(err).Warn("Discarding invalid stored index")
		if err := m.store.Invalidate(ctx, fp); err != nil {
			log.WithError(err).Warn("Failed to invalidate stored index")
		}
		return nil, false
	}
	return idx, true
}

func (m *Manager) save(ctx context.Context, fp string, idx *keyframe.Index, log logger.Logger) {
	if m.store == nil {
		return
	}
	if err := m.store.Put(ctx, fp, idx); err != nil {
		log.WithError(err).Warn("Failed to store index")
	}
}

func buildErrorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "read"
	}
}
