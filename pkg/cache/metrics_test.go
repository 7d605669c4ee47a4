package cache

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkins7575/toozalink-sub000/metric"
)

func TestCacheMetricsIntegration(t *testing.T) {
	metricsRegistry := metric.NewMetricsRegistry()

	cache, err := NewExpiring[string](time.Minute, 2, WithMetrics[string](metricsRegistry, "query_results"))
	require.NoError(t, err)

	_, _ = cache.Set("key1", "value1")
	_, _ = cache.Set("key2", "value2")

	val, found := cache.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	_, found = cache.Get("key3")
	assert.False(t, found)

	deleted, _ := cache.Delete("key2")
	assert.True(t, deleted)

	_, _ = cache.Set("key4", "v")
	_, _ = cache.Set("key5", "v") // evicts key1

	metricFamilies, err := metricsRegistry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	metricsByName := make(map[string]*dto.MetricFamily)
	for _, mf := range metricFamilies {
		metricsByName[mf.GetName()] = mf
	}

	value := func(name string) float64 {
		mf := metricsByName[name]
		require.NotNil(t, mf, "%s should exist", name)
		m := mf.Metric[0]
		if m.Counter != nil {
			return m.Counter.GetValue()
		}
		return m.Gauge.GetValue()
	}

	assert.Equal(t, float64(1), value("toozalink_cache_hits_total"))
	assert.Equal(t, float64(1), value("toozalink_cache_misses_total"))
	assert.Equal(t, float64(4), value("toozalink_cache_sets_total"))
	assert.Equal(t, float64(1), value("toozalink_cache_deletes_total"))
	assert.Equal(t, float64(1), value("toozalink_cache_evictions_total"))
	assert.Equal(t, float64(2), value("toozalink_cache_size"))

	hits := metricsByName["toozalink_cache_hits_total"].Metric[0]
	assert.Equal(t, "query_results", hits.Label[0].GetValue())
}

func TestCacheMetrics_DuplicatePrefix(t *testing.T) {
	metricsRegistry := metric.NewMetricsRegistry()

	_, err := NewExpiring[string](time.Minute, 2, WithMetrics[string](metricsRegistry, "dup"))
	require.NoError(t, err)

	_, err = NewExpiring[string](time.Minute, 2, WithMetrics[string](metricsRegistry, "dup"))
	assert.Error(t, err)
}

func TestCacheWithoutMetrics(t *testing.T) {
	cache, err := NewExpiring[string](time.Minute, 10, WithMetrics[string](nil, "ignored"))
	require.NoError(t, err)
	assert.Nil(t, cache.metrics)
	assert.NotNil(t, cache.stats)

	_, _ = cache.Set("key1", "value1")
	val, found := cache.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "value1", val)
}
