package indexstore

import (
	"context"
	"sync"
	"time"

	"github.com/zsiec/keyseek/internal/keyframe"
)

type memoryItem struct {
	idx       *keyframe.Index
	expiresAt time.Time
}

// MemoryStore is an in-process Store used when Redis is disabled.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore; ttl <= 0 keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the index stored for fingerprint and strategy.
func (m *MemoryStore) Get(ctx context.Context, fingerprint string, strategy keyframe.Strategy) (*keyframe.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := storeKey("", fingerprint, strategy)

	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return item.idx, nil
}

// Put stores idx under its own strategy.
func (m *MemoryStore) Put(ctx context.Context, fingerprint string, idx *keyframe.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item := memoryItem{idx: idx}
	if m.ttl > 0 {
		item.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.items[storeKey("", fingerprint, idx.Strategy)] = item
	m.mu.Unlock()
	return nil
}

// Invalidate removes all strategies stored for fingerprint.
func (m *MemoryStore) Invalidate(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range allStrategies {
		delete(m.items, storeKey("", fingerprint, s))
	}
	return nil
}

// Len reports the number of stored indexes, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
