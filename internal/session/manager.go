package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zsiec/keyseek/internal/config"
	"github.com/zsiec/keyseek/internal/indexstore"
	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/logger"
	"github.com/zsiec/keyseek/internal/metrics"
	"github.com/zsiec/keyseek/internal/source"
)

// Opener opens a media source by path.
type Opener func(path string) (source.Handle, error)

// Manager owns open sessions and resolves an index for each one.
type Manager struct {
	builder         *keyframe.Builder
	store           indexstore.Store
	opener          Opener
	logger          logger.Logger
	sampled         *logger.SampledLogger
	defaultStrategy keyframe.Strategy
	memoryLimitMB   int
	maxSessions     int
	mediaRoot       string

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  int // opens that passed the limit check but are not yet registered
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the index store consulted before scanning.
func WithStore(store indexstore.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithOpener replaces source.Open.
func WithOpener(opener Opener) Option {
	return func(m *Manager) {
		m.opener = opener
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager from the index configuration.
func NewManager(cfg config.IndexConfig, opts ...Option) (*Manager, error) {
	strategy, err := keyframe.ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		opener: func(path string) (source.Handle, error) {
			if cfg.Mmap {
				return source.OpenMapped(path)
			}
			return source.Open(path)
		},
		logger:          logger.NewNullLogger(),
		defaultStrategy: strategy,
		memoryLimitMB:   cfg.MemoryLimitMB,
		maxSessions:     cfg.MaxSessions,
		mediaRoot:       cfg.MediaRoot,
		sessions:        make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sampled = logger.NewEngineLogger(m.logger)

	builderOpts := []keyframe.BuilderOption{
		keyframe.WithLogger(m.logger.WithField("component", "index_builder")),
	}
	if cfg.FrameRate > 0 {
		builderOpts = append(builderOpts, keyframe.WithFrameRate(cfg.FrameRate))
	}
	if cfg.MaxScanBytes > 0 {
		builderOpts = append(builderOpts, keyframe.WithMaxScanBytes(cfg.MaxScanBytes))
	}
	if cfg.ReadRateBytes > 0 {
		// burst must cover the largest window or WaitN fails outright
		burst := int(cfg.ReadRateBytes)
		if burst < keyframe.MaxWindowSize {
			burst = keyframe.MaxWindowSize
		}
		builderOpts = append(builderOpts, keyframe.WithReadLimiter(rate.NewLimiter(rate.Limit(cfg.ReadRateBytes), burst)))
	}
	m.builder = keyframe.NewBuilder(builderOpts...)

	return m, nil
}

// Open opens req.Path, resolves an index for it and registers a session.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if err := m.reserve(); err != nil {
		return nil, err
	}
	registered := false
	defer func() {
		if !registered {
			m.release()
		}
	}()

	path, err := m.resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	handle, err := m.opener(path)
	if err != nil {
		return nil, err
	}

	sess := newSession(uuid.New().String(), handle, req)
	log := m.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"path":       handle.Name(),
		"format":     handle.Format().String(),
	})

	if handle.Format() == source.FormatMP4 {
		log.Warn("MP4 container detected; Annex-B scanning will likely find no keyframes")
	}

	idx, origin, err := m.resolveIndex(ctx, handle, req, log)
	if err != nil {
		handle.Close()
		return nil, err
	}
	sess.index = idx
	sess.origin = origin

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.pending--
	registered = true
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(count)
	log.WithFields(map[string]interface{}{
		"origin":    origin,
		"keyframes": idx.Len(),
		"strategy":  idx.Strategy.String(),
		"duration":  idx.TotalDuration,
	}).Info("Session opened")

	return sess, nil
}

// resolvePath confines paths to the media root when one is configured.
func (m *Manager) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", source.ErrFileNotFound)
	}
	if m.mediaRoot == "" {
		return path, nil
	}

	root, err := filepath.Abs(m.mediaRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media root: %w", err)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the media root", source.ErrPermissionDenied, path)
	}
	return full, nil
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions)+m.pending >= m.maxSessions {
		return fmt.Errorf("%w: %d open", ErrSessionLimit, m.maxSessions)
	}
	m.pending++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.pending--
	m.mu.Unlock()
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns snapshots of all sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		infos = append(infos, sess.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].OpenedAt.Equal(infos[j].OpenedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].OpenedAt.Before(infos[j].OpenedAt)
	})
	return infos
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close unregisters a session, cancels its rebuild if one is running, waits
// for in-flight seeks and closes the source.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	metrics.SetActiveSessions(count)
	err := sess.shutdown()
	m.logger.WithField("session_id", id).Info("Session closed")
	return err
}

// CloseAll closes every session and returns the first close error.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	metrics.SetActiveSessions(0)

	var firstErr error
	for id, sess := range sessions {
		if err := sess.shutdown(); err != nil {
			m.logger.WithError(err).WithField("session_id", id).Warn("Failed to close session source")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Seek moves the session's source cursor to the keyframe for t.
func (m *Manager) Seek(ctx context.Context, id string, t float64) (*keyframe.SeekResult, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sess.acquire(); err != nil {
		return nil, err
	}
	defer sess.release()

	idx := sess.Index()
	start := time.Now()

	var result *keyframe.SeekResult
	err = sess.handle.WithCursor(func(rs io.ReadSeeker) error {
		var seekErr error
		result, seekErr = keyframe.SeekToTimeWithResult(rs, t, idx)
		return seekErr
	})

	outcome := seekOutcome(err)
	precision := 0.0
	if result != nil {
		precision = result.PrecisionAchieved
	}
	metrics.RecordSeek(idx.Strategy.String(), outcome, precision, time.Since(start).Seconds())

	if err != nil {
		m.sampled.Sample(logger.CategorySeek).WithError(err).WithFields(map[string]interface{}{
			"session_id": id,
			"time":       t,
		}).Debug("Seek rejected")
		return nil, err
	}
	return result, nil
}

func seekOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, keyframe.ErrInvalidSeekPosition):
		return "invalid_position"
	case errors.Is(err, keyframe.ErrSeekBeyondEnd):
		return "beyond_end"
	case errors.Is(err, keyframe.ErrSeekFailed):
		return "seek_failed"
	case errors.Is(err, keyframe.ErrInvalidKeyframeIndex):
		return "invalid_index"
	default:
		return "error"
	}
}

// Validate checks the session's current index.
func (m *Manager) Validate(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := keyframe.Validate(sess.Index()); err != nil {
		metrics.IncrementValidationFailure()
		return err
	}
	return nil
}

// Rebuild drops any stored index for the session's source and runs the
// open-time fallback chain again: the supplied timeline if the session has
// one, then a scan with the requested strategy, then Hierarchical, then the
// playback index. Closing the session cancels the rebuild.
func (m *Manager) Rebuild(ctx context.Context, id string) (*Session, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := sess.acquire(); err != nil {
		return nil, err
	}
	defer sess.release()

	ctx, cancel := sess.bind(ctx)
	defer cancel()

	log := m.logger.WithField("session_id", id)
	if m.store != nil {
		if err := m.store.Invalidate(ctx, sess.handle.Fingerprint()); err != nil {
			log.WithError(err).Warn("Failed to invalidate stored index")
		}
	}

	idx, origin, err := m.resolveIndex(ctx, sess.handle, sess.request, log)
	if err != nil {
		if sess.stop.Err() != nil {
			return nil, fmt.Errorf("%w: %s closed during rebuild", ErrSessionNotFound, id)
		}
		return nil, err
	}
	sess.swap(idx, origin)

	log.WithFields(map[string]interface{}{
		"origin":    origin,
		"keyframes": idx.Len(),
	}).Info("Session index rebuilt")
	return sess, nil
}
