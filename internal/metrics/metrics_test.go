package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := h.(prometheus.Metric)
	require.True(t, ok)

	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestRecordIndexBuild(t *testing.T) {
	strategy := "sparse"

	initialBuilds := testutil.ToFloat64(indexBuildsTotal.WithLabelValues(strategy, "scan"))
	initialDurations := histogramCount(t, indexBuildDuration.WithLabelValues(strategy))

	RecordIndexBuild(strategy, "scan", 0.25, 3, 144)

	assert.Equal(t, initialBuilds+1, testutil.ToFloat64(indexBuildsTotal.WithLabelValues(strategy, "scan")))
	assert.Equal(t, initialDurations+1, histogramCount(t, indexBuildDuration.WithLabelValues(strategy)))
	assert.Equal(t, 144.0, testutil.ToFloat64(indexMemoryBytes.WithLabelValues(strategy)))

	RecordIndexBuild(strategy, "scan", 0.5, 6, 288)
	assert.Equal(t, initialBuilds+2, testutil.ToFloat64(indexBuildsTotal.WithLabelValues(strategy, "scan")))
	assert.Equal(t, 288.0, testutil.ToFloat64(indexMemoryBytes.WithLabelValues(strategy)))
}

func TestIncrementIndexBuildError(t *testing.T) {
	initial := testutil.ToFloat64(indexBuildErrorsTotal.WithLabelValues("full", "read"))

	IncrementIndexBuildError("full", "read")
	IncrementIndexBuildError("full", "read")

	assert.Equal(t, initial+2, testutil.ToFloat64(indexBuildErrorsTotal.WithLabelValues("full", "read")))
}

func TestIncrementValidationFailure(t *testing.T) {
	initial := testutil.ToFloat64(indexValidationFailuresTotal)
	IncrementValidationFailure()
	assert.Equal(t, initial+1, testutil.ToFloat64(indexValidationFailuresTotal))
}

func TestRecordStoreLookup(t *testing.T) {
	for _, result := range []string{"hit", "miss", "error"} {
		initial := testutil.ToFloat64(indexStoreLookupsTotal.WithLabelValues(result))
		RecordStoreLookup(result)
		assert.Equal(t, initial+1, testutil.ToFloat64(indexStoreLookupsTotal.WithLabelValues(result)))
	}
}

func TestRecordSeek(t *testing.T) {
	initialOK := testutil.ToFloat64(seeksTotal.WithLabelValues("full", "ok"))
	initialFailed := testutil.ToFloat64(seeksTotal.WithLabelValues("full", "beyond_end"))
	initialPrecision := histogramCount(t, seekPrecision)
	initialDuration := histogramCount(t, seekDuration)

	RecordSeek("full", "ok", 0.5, 0.0001)
	RecordSeek("full", "beyond_end", 0, 0.00001)

	assert.Equal(t, initialOK+1, testutil.ToFloat64(seeksTotal.WithLabelValues("full", "ok")))
	assert.Equal(t, initialFailed+1, testutil.ToFloat64(seeksTotal.WithLabelValues("full", "beyond_end")))
	// failed seeks have no precision to record
	assert.Equal(t, initialPrecision+1, histogramCount(t, seekPrecision))
	assert.Equal(t, initialDuration+2, histogramCount(t, seekDuration))
}

func TestSetActiveSessions(t *testing.T) {
	for _, count := range []int{5, 0, 12} {
		SetActiveSessions(count)
		assert.Equal(t, float64(count), testutil.ToFloat64(sessionsActive))
	}
}

func TestIncrementSessionFallback(t *testing.T) {
	initial := testutil.ToFloat64(sessionFallbacksTotal.WithLabelValues("build_failed"))
	IncrementSessionFallback("build_failed")
	assert.Equal(t, initial+1, testutil.ToFloat64(sessionFallbacksTotal.WithLabelValues("build_failed")))
}
