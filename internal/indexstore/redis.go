package indexstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/logger"
)

// RedisStore implements Store on top of Redis string keys holding JSON.
type RedisStore struct {
	client *redis.Client
	logger logger.Logger
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl <= 0 defaults to one hour.
func NewRedisStore(client *redis.Client, log logger.Logger, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if prefix == "" {
		prefix = "keyseek:index:"
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RedisStore{
		client: client,
		logger: log,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get retrieves the index for fingerprint and strategy.
func (r *RedisStore) Get(ctx context.Context, fingerprint string, strategy keyframe.Strategy) (*keyframe.Index, error) {
	key := storeKey(r.prefix, fingerprint, strategy)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get index: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable index record")
		return nil, ErrNotFound
	}
	if rec.Version != recordVersion || rec.Index == nil || rec.Fingerprint != fingerprint {
		r.logger.WithFields(map[string]interface{}{
			"key":     key,
			"version": rec.Version,
		}).Debug("Discarding stale index record")
		return nil, ErrNotFound
	}

	return rec.Index, nil
}

// Put stores idx under its strategy with the configured TTL.
func (r *RedisStore) Put(ctx context.Context, fingerprint string, idx *keyframe.Index) error {
	if idx == nil {
		return fmt.Errorf("cannot store nil index")
	}

	data, err := json.Marshal(record{
		Version:     recordVersion,
		Fingerprint: fingerprint,
		StoredAt:    time.Now(),
		Index:       idx,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	key := storeKey(r.prefix, fingerprint, idx.Strategy)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store index: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"key":     key,
		"entries": idx.Len(),
		"bytes":   len(data),
	}).Debug("Index stored")

	return nil
}

// Invalidate deletes every strategy stored for fingerprint.
func (r *RedisStore) Invalidate(ctx context.Context, fingerprint string) error {
	keys := make([]string, 0, len(allStrategies))
	for _, s := range allStrategies {
		keys = append(keys, storeKey(r.prefix, fingerprint, s))
	}

	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate index: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"fingerprint": fingerprint,
		"deleted":     deleted,
	}).Debug("Index invalidated")

	return nil
}
