package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Log categories that can fire once per request.
const (
	CategorySeek        = "seek"
	CategoryStoreLookup = "store_lookup"
)

// SampledLogger limits how often chosen categories reach the base logger.
// Categories without a sampler always log.
type SampledLogger struct {
	Logger
	samplers *samplerSet
}

type samplerSet struct {
	mu       sync.RWMutex
	samplers map[string]*logSampler
	now      func() time.Time
}

type logSampler struct {
	limiter *rate.Limiter
	total   int64
	dropped int64
	pending int64 // dropped since the last emitted message
}

// SamplerStats holds counters for one category.
type SamplerStats struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
	Dropped  int64  `json:"dropped"`
}

// NewSampledLogger wraps base with no samplers configured.
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		Logger: base,
		samplers: &samplerSet{
			samplers: make(map[string]*logSampler),
			now:      time.Now,
		},
	}
}

// NewEngineLogger returns a sampled logger preset for seek and store traffic.
func NewEngineLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		// players scrubbing can seek many times a second
		WithSampler(CategorySeek, 100*time.Millisecond, 5).
		// a down store fails every open the same way
		WithSampler(CategoryStoreLookup, 5*time.Second, 1)
}

// WithSampler allows burst messages, then one per interval, for category.
func (s *SampledLogger) WithSampler(category string, interval time.Duration, burst int) *SampledLogger {
	s.samplers.mu.Lock()
	defer s.samplers.mu.Unlock()

	s.samplers.samplers[category] = &logSampler{
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
	return s
}

// Sample returns a logger for one message in category. Over the rate it
// returns a discarding logger. Messages dropped since the last emission are
// reported on the next one that passes.
func (s *SampledLogger) Sample(category string) Logger {
	s.samplers.mu.RLock()
	sampler, ok := s.samplers.samplers[category]
	s.samplers.mu.RUnlock()

	if !ok {
		return s.Logger
	}

	atomic.AddInt64(&sampler.total, 1)
	if !sampler.limiter.AllowN(s.samplers.now(), 1) {
		atomic.AddInt64(&sampler.dropped, 1)
		atomic.AddInt64(&sampler.pending, 1)
		return NewNullLogger()
	}

	if skipped := atomic.SwapInt64(&sampler.pending, 0); skipped > 0 {
		return s.Logger.WithField("sampled_dropped", skipped)
	}
	return s.Logger
}

// Stats returns counters for every configured category.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.samplers.mu.RLock()
	defer s.samplers.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers.samplers))
	for name, sampler := range s.samplers.samplers {
		stats[name] = SamplerStats{
			Category: name,
			Total:    atomic.LoadInt64(&sampler.total),
			Dropped:  atomic.LoadInt64(&sampler.dropped),
		}
	}
	return stats
}

// WithFields keeps the samplers shared with the parent.
func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithFields(fields), samplers: s.samplers}
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithField(key, value), samplers: s.samplers}
}

func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{Logger: s.Logger.WithError(err), samplers: s.samplers}
}
