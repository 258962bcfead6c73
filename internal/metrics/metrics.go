package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Index build metrics
	indexBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_index_builds_total",
		Help: "Total keyframe index builds by strategy and input path",
	}, []string{"strategy", "source"})

	indexBuildErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_index_build_errors_total",
		Help: "Total failed keyframe index builds",
	}, []string{"strategy", "error_type"})

	indexBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyframe_index_build_duration_seconds",
		Help:    "Keyframe index build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
	}, []string{"strategy"})

	indexEntries = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyframe_index_entries",
		Help:    "Number of keyframes retained per index",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~262k
	}, []string{"strategy"})

	indexMemoryBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keyframe_index_memory_bytes",
		Help: "Memory accounted to the most recent index per strategy",
	}, []string{"strategy"})

	indexValidationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframe_index_validation_failures_total",
		Help: "Total indexes rejected by validation",
	})

	indexStoreLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_index_store_lookups_total",
		Help: "Index store lookups by result",
	}, []string{"result"})

	// Seek metrics
	seeksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_seeks_total",
		Help: "Total seeks by index strategy and result",
	}, []string{"strategy", "result"})

	seekPrecision = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keyframe_seek_precision_seconds",
		Help:    "Gap between requested time and the keyframe used",
		Buckets: []float64{0, 0.034, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	seekDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keyframe_seek_duration_seconds",
		Help:    "Wall-clock duration of seek calls",
		Buckets: prometheus.ExponentialBuckets(0.000001, 10, 8), // 1µs to 10s
	})

	// Session metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyframe_sessions_active",
		Help: "Number of open playback sessions",
	})

	sessionFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_session_fallbacks_total",
		Help: "Index fallbacks taken while opening sessions",
	}, []string{"reason"})
)

// RecordIndexBuild records a successful index build
func RecordIndexBuild(strategy, source string, durationSeconds float64, entries int, memoryBytes int64) {
	indexBuildsTotal.WithLabelValues(strategy, source).Inc()
	indexBuildDuration.WithLabelValues(strategy).Observe(durationSeconds)
	indexEntries.WithLabelValues(strategy).Observe(float64(entries))
	indexMemoryBytes.WithLabelValues(strategy).Set(float64(memoryBytes))
}

// IncrementIndexBuildError counts a failed build
func IncrementIndexBuildError(strategy, errorType string) {
	indexBuildErrorsTotal.WithLabelValues(strategy, errorType).Inc()
}

// IncrementValidationFailure counts an index rejected by validation
func IncrementValidationFailure() {
	indexValidationFailuresTotal.Inc()
}

// RecordStoreLookup counts an index store lookup; result is hit, miss or error
func RecordStoreLookup(result string) {
	indexStoreLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSeek records a seek outcome
func RecordSeek(strategy, result string, precisionSeconds, durationSeconds float64) {
	seeksTotal.WithLabelValues(strategy, result).Inc()
	if result == "ok" {
		seekPrecision.Observe(precisionSeconds)
	}
	seekDuration.Observe(durationSeconds)
}

// SetActiveSessions sets the number of open sessions
func SetActiveSessions(count int) {
	sessionsActive.Set(float64(count))
}

// IncrementSessionFallback counts a fallback taken while opening a session
func IncrementSessionFallback(reason string) {
	sessionFallbacksTotal.WithLabelValues(reason).Inc()
}
