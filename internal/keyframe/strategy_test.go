package keyframe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategy_WindowSize(t *testing.T) {
	assert.Equal(t, 64*1024, StrategyFull.WindowSize())
	assert.Equal(t, 128*1024, StrategySparse.WindowSize())
	assert.Equal(t, 96*1024, StrategyAdaptive.WindowSize())
	assert.Equal(t, 32*1024, StrategyHierarchical.WindowSize())
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyFull, StrategySparse, StrategyAdaptive, StrategyHierarchical} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	parsed, err := ParseStrategy(" Sparse ")
	require.NoError(t, err)
	assert.Equal(t, StrategySparse, parsed)

	_, err = ParseStrategy("dense")
	assert.Error(t, err)
}

func TestStrategy_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		S Strategy `json:"s"`
	}{S: StrategyHierarchical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"hierarchical"}`, string(data))

	var out struct {
		S Strategy `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"adaptive"}`), &out))
	assert.Equal(t, StrategyAdaptive, out.S)
}

func TestGetIndexStats(t *testing.T) {
	stats := GetIndexStats(testIndex(StrategySparse, 10, 0, 1, 2, 3))

	assert.Equal(t, 4, stats.TotalKeyframes)
	assert.Equal(t, 4*entrySize, stats.MemoryUsageBytes)
	assert.Equal(t, 1.0, stats.IndexPrecisionSeconds)
	assert.Equal(t, 30.0, stats.AverageGOPSize)
	assert.Equal(t, 1000.0, stats.AverageFrameSizeBytes)
	assert.Equal(t, StrategySparse, stats.OptimizationStrategy)
	assert.False(t, stats.SupportsSubSecondPrecision)

	empty := GetIndexStats(&Index{IndexPrecision: 0.5})
	assert.Equal(t, 0, empty.TotalKeyframes)
	assert.Equal(t, 0.0, empty.AverageGOPSize)
	assert.True(t, empty.SupportsSubSecondPrecision)

	assert.Equal(t, Stats{}, GetIndexStats(nil))
}
