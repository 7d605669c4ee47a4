package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hawkins7575/toozalink-sub000/metric"
)

// cacheMetrics mirrors Statistics as Prometheus collectors.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheCounter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "cache",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newCacheMetrics creates and registers cache metrics with the provided registry.
func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		hits:      newCacheCounter(prefix, "hits_total", "Total number of cache hits"),
		misses:    newCacheCounter(prefix, "misses_total", "Total number of cache misses"),
		sets:      newCacheCounter(prefix, "sets_total", "Total number of cache set operations"),
		deletes:   newCacheCounter(prefix, "deletes_total", "Total number of explicit cache removals"),
		evictions: newCacheCounter(prefix, "evictions_total", "Total number of capacity and expiry evictions"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of entries in cache",
		}),
	}

	counters := map[string]prometheus.Counter{
		"cache_hits":      m.hits,
		"cache_misses":    m.misses,
		"cache_sets":      m.sets,
		"cache_deletes":   m.deletes,
		"cache_evictions": m.evictions,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(prefix, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *cacheMetrics) recordHit() { m.hits.Inc() }
func (m *cacheMetrics) recordMiss() { m.misses.Inc() }
func (m *cacheMetrics) recordSet() { m.sets.Inc() }
func (m *cacheMetrics) recordDelete() { m.deletes.Inc() }
func (m *cacheMetrics) recordEviction() { m.evictions.Inc() }
func (m *cacheMetrics) updateSize(size int) { m.size.Set(float64(size)) }
