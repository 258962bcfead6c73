// Package session tracks open media sources together with the keyframe
// index used to seek in them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/source"
)

var (
	// ErrSessionNotFound is returned for unknown or closed session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLimit is returned when max sessions are already open.
	ErrSessionLimit = errors.New("session limit reached")
)

// Origin records which step of the fallback chain produced an index.
type Origin string

const (
	OriginStore    Origin = "store"
	OriginTimeline Origin = "timeline"
	OriginScan     Origin = "scan"
	// OriginFallback is a Hierarchical scan after the requested one failed
	OriginFallback Origin = "fallback"
	// OriginPlayback is the entry-less index that seeks to offset 0
	OriginPlayback Origin = "playback"
)

// OpenRequest describes a session to open.
type OpenRequest struct {
	Path string
	// Strategy overrides the configured default when set
	Strategy *keyframe.Strategy
	// MemoryLimitMB picks the strategy and Adaptive budget when > 0
	MemoryLimitMB int
	// Timeline carries externally extracted keyframes; preferred over a scan
	Timeline *keyframe.Timeline
}

// Session is one open source and its current index.
type Session struct {
	ID       string
	OpenedAt time.Time

	handle  source.Handle
	request OpenRequest

	mu     sync.RWMutex
	index  *keyframe.Index
	origin Origin
	closed bool

	// inflight counts seeks and rebuilds still reading through handle
	inflight sync.WaitGroup
	stop     context.Context
	cancel   context.CancelFunc
}

func newSession(id string, handle source.Handle, req OpenRequest) *Session {
	stop, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:       id,
		OpenedAt: time.Now(),
		handle:   handle,
		request:  req,
		stop:     stop,
		cancel:   cancel,
	}
}

// Info is a point-in-time view of a session.
type Info struct {
	ID          string         `json:"id"`
	Path        string         `json:"path"`
	Format      source.Format  `json:"format"`
	SizeBytes   int64          `json:"size_bytes"`
	Origin      Origin         `json:"index_origin"`
	Duration    float64        `json:"total_duration"`
	OpenedAt    time.Time      `json:"opened_at"`
	IndexStats  keyframe.Stats `json:"index_stats"`
	Fingerprint string         `json:"-"`
}

// Index returns the index currently used for seeks.
func (s *Session) Index() *keyframe.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	idx, origin := s.index, s.origin
	s.mu.RUnlock()

	return Info{
		ID:          s.ID,
		Path:        s.handle.Name(),
		Format:      s.handle.Format(),
		SizeBytes:   s.handle.Size(),
		Origin:      origin,
		Duration:    idx.TotalDuration,
		OpenedAt:    s.OpenedAt,
		IndexStats:  keyframe.GetIndexStats(idx),
		Fingerprint: s.handle.Fingerprint(),
	}
}

func (s *Session) swap(idx *keyframe.Index, origin Origin) {
	s.mu.Lock()
	s.index = idx
	s.origin = origin
	s.mu.Unlock()
}

// acquire registers an operation on the handle. It fails once the session
// has started closing; callers must call release when done.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}
	s.inflight.Add(1)
	return nil
}

func (s *Session) release() {
	s.inflight.Done()
}

// bind derives a context that is also cancelled when the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.stop, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// shutdown cancels in-flight rebuilds, waits for every operation still
// using the handle, then closes it.
func (s *Session) shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.inflight.Wait()
	return s.handle.Close()
}
