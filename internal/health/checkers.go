package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks connectivity to the index store.
type RedisChecker struct {
	client *redis.Client
	name   string
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{
		client: client,
		name:   "redis",
	}
}

// Name returns the name of the checker.
func (r *RedisChecker) Name() string {
	return r.name
}

// Check pings Redis and reads server info.
func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	info, err := r.client.Info(ctx, "server").Result()
	if err != nil {
		return fmt.Errorf("failed to get redis info: %w", err)
	}
	if len(info) == 0 {
		return fmt.Errorf("empty redis info response")
	}

	return nil
}

// MediaRootChecker checks that the media directory is present and listable.
type MediaRootChecker struct {
	path string
}

// NewMediaRootChecker creates a checker for path.
func NewMediaRootChecker(path string) *MediaRootChecker {
	return &MediaRootChecker{path: path}
}

// Name returns the name of the checker.
func (m *MediaRootChecker) Name() string {
	return "media_root"
}

// Check stats and opens the media root.
func (m *MediaRootChecker) Check(ctx context.Context) error {
	info, err := os.Stat(m.path)
	if err != nil {
		return fmt.Errorf("media root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root %s is not a directory", m.path)
	}

	dir, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("media root not readable: %w", err)
	}
	defer dir.Close()

	if _, err := dir.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("media root not listable: %w", err)
	}
	return nil
}

// MemoryChecker reports degraded when the Go heap grows past a limit.
type MemoryChecker struct {
	limitBytes uint64
	readStats  func(*runtime.MemStats)
}

// NewMemoryChecker creates a memory checker; limitBytes 0 disables it.
func NewMemoryChecker(limitBytes uint64) *MemoryChecker {
	return &MemoryChecker{
		limitBytes: limitBytes,
		readStats:  runtime.ReadMemStats,
	}
}

// Name returns the name of the checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check compares the live heap against the limit.
func (m *MemoryChecker) Check(ctx context.Context) error {
	if m.limitBytes == 0 {
		return nil
	}

	var stats runtime.MemStats
	m.readStats(&stats)
	if stats.HeapAlloc > m.limitBytes {
		return fmt.Errorf("%w: heap %d bytes exceeds limit %d", ErrDegraded, stats.HeapAlloc, m.limitBytes)
	}
	return nil
}

// SessionCounter reports how many sessions are open.
type SessionCounter interface {
	Count() int
}

// SessionChecker reports degraded once sessions reach capacity.
type SessionChecker struct {
	counter SessionCounter
	max     int
}

// NewSessionChecker creates a capacity checker; max <= 0 means unlimited.
func NewSessionChecker(counter SessionCounter, max int) *SessionChecker {
	return &SessionChecker{counter: counter, max: max}
}

// Name returns the name of the checker.
func (s *SessionChecker) Name() string {
	return "sessions"
}

// Check compares open sessions with capacity.
func (s *SessionChecker) Check(ctx context.Context) error {
	if s.max <= 0 {
		return nil
	}
	if open := s.counter.Count(); open >= s.max {
		return fmt.Errorf("%w: %d of %d sessions open", ErrDegraded, open, s.max)
	}
	return nil
}
