// Package indexstore persists built keyframe indexes keyed by source
// fingerprint so repeat opens of an unchanged file skip the scan.
package indexstore

import (
	"context"
	"errors"
	"time"

	"github.com/zsiec/keyseek/internal/keyframe"
)

// ErrNotFound is returned when no index is stored for a key.
var ErrNotFound = errors.New("index not found in store")

// Store persists keyframe indexes.
type Store interface {
	Get(ctx context.Context, fingerprint string, strategy keyframe.Strategy) (*keyframe.Index, error)
	Put(ctx context.Context, fingerprint string, idx *keyframe.Index) error
	// Invalidate drops every strategy stored for the fingerprint.
	Invalidate(ctx context.Context, fingerprint string) error
}

// record is the persisted envelope around an index.
type record struct {
	Version     int             `json:"version"`
	Fingerprint string          `json:"fingerprint"`
	StoredAt    time.Time       `json:"stored_at"`
	Index       *keyframe.Index `json:"index"`
}

// recordVersion changes whenever the Index encoding does; older records
// read back as misses.
const recordVersion = 1

var allStrategies = []keyframe.Strategy{
	keyframe.StrategyFull,
	keyframe.StrategySparse,
	keyframe.StrategyAdaptive,
	keyframe.StrategyHierarchical,
}

func storeKey(prefix, fingerprint string, strategy keyframe.Strategy) string {
	return prefix + fingerprint + ":" + strategy.String()
}
