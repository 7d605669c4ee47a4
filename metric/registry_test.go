package metric

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range metricFamilies {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	err := registry.RegisterCounter("cache", "test_counter", counter)
	require.NoError(t, err)
	counter.Inc()

	assert.True(t, gatheredNames(t, registry)["test_counter"])
}

func TestMetricsRegistry_RegisterGaugeAndHistogram(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "A test gauge"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_histogram", Help: "A test histogram"})

	require.NoError(t, registry.RegisterGauge("slots", "test_gauge", gauge))
	require.NoError(t, registry.RegisterHistogram("slots", "test_histogram", histogram))
	gauge.Set(42.0)
	histogram.Observe(0.5)

	names := gatheredNames(t, registry)
	assert.True(t, names["test_gauge"])
	assert.True(t, names["test_histogram"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "First counter"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "First counter"})

	require.NoError(t, registry.RegisterCounter("component1", "duplicate_counter", counter1))

	err := registry.RegisterCounter("component1", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate metric registration")

	err = registry.RegisterCounter("component2", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "unregister_counter", Help: "A counter to unregister"})
	require.NoError(t, registry.RegisterCounter("cache", "unregister_counter", counter))
	counter.Inc()
	assert.True(t, gatheredNames(t, registry)["unregister_counter"])

	assert.True(t, registry.Unregister("cache", "unregister_counter"))
	assert.False(t, gatheredNames(t, registry)["unregister_counter"])
	assert.False(t, registry.Unregister("cache", "unregister_counter"))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", id),
				Help: "A concurrent counter",
			})
			err := registry.RegisterCounter("concurrent", fmt.Sprintf("concurrent_counter_%d", id), counter)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count := 0
	for name := range gatheredNames(t, registry) {
		if strings.HasPrefix(name, "concurrent_counter_") {
			count++
		}
	}
	assert.Equal(t, numGoroutines, count)
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	var registrar MetricsRegistrar = NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "interface_counter", Help: "Counter registered through interface"})
	require.NoError(t, registrar.RegisterCounter("iface", "interface_counter", counter))
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordQuery("bookmarks", OutcomeSuccess)
	core.RecordQuery("bookmarks", OutcomeCacheHit)
	core.RecordQueryDuration("bookmarks", 20*time.Millisecond)
	core.RecordRetry("bookmarks")
	core.RecordBatch(4)
	core.RecordSlots(2, 1)
	core.RecordSlotTimeout()
	core.RecordHealth(true)

	names := gatheredNames(t, registry)
	for _, expected := range []string{
		"toozalink_query_total",
		"toozalink_query_duration_seconds",
		"toozalink_query_retries_total",
		"toozalink_batch_size",
		"toozalink_slots_active",
		"toozalink_slots_waiting",
		"toozalink_slots_wait_timeouts_total",
		"toozalink_backend_healthy",
		"toozalink_backend_probes_total",
	} {
		assert.True(t, names[expected], "core metric %s should be exported", expected)
	}
}

func TestMetricsRegistry_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordQuery("watchlist", OutcomeFailure)

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `toozalink_query_total{outcome="failure",resource="watchlist"} 1`)
}
