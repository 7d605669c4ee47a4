// Package metric provides the Prometheus registry shared by the data layer.
//
// A MetricsRegistry wraps a private prometheus.Registry. It always carries the
// core data-layer metrics (query outcomes and latency, retries, slot pool
// gauges, backend health) and lets components register their own collectors
// under a component name. Duplicate registrations are rejected with an
// invalid-class error instead of panicking.
//
//	registry := metric.NewMetricsRegistry()
//	core := registry.CoreMetrics()
//	core.RecordQuery("bookmarks", metric.OutcomeSuccess)
//	core.RecordSlots(3, 0)
//
//	router.Handle("/metrics", registry.Handler())
//
// Every component treats a nil *MetricsRegistry as "metrics disabled".
package metric
