package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by the service
const Namespace = "toozalink"

// Query outcome label values
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCacheHit  = "cache_hit"
	OutcomeCancelled = "cancelled"
)

// Metrics contains the data-layer metrics shared by every component
type Metrics struct {
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	RetriesTotal  *prometheus.CounterVec
	BatchSize     prometheus.Histogram

	SlotsActive      prometheus.Gauge
	SlotsWaiting     prometheus.Gauge
	SlotWaitTimeouts prometheus.Counter

	BackendHealthy prometheus.Gauge
	HealthProbes   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "query",
				Name:      "total",
				Help:      "Queries executed, by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Backend round-trip time of executed queries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"resource"},
		),

		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "query",
				Name:      "retries_total",
				Help:      "Backend attempts repeated after a transient failure",
			},
			[]string{"resource"},
		),

		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "batch",
				Name:      "size",
				Help:      "Number of descriptions per batch request",
				Buckets:   []float64{1, 2, 5, 10, 20, 50},
			},
		),

		SlotsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "slots",
				Name:      "active",
				Help:      "Query slots currently held",
			},
		),

		SlotsWaiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "slots",
				Name:      "waiting",
				Help:      "Callers queued for a query slot",
			},
		),

		SlotWaitTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "slots",
				Name:      "wait_timeouts_total",
				Help:      "Slot waits abandoned after the wait timeout",
			},
		),

		BackendHealthy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "backend",
				Name:      "healthy",
				Help:      "Backend health verdict (0=unhealthy, 1=healthy)",
			},
		),

		HealthProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "backend",
				Name:      "probes_total",
				Help:      "Health probes sent to the backend, by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.RetriesTotal,
		m.BatchSize,
		m.SlotsActive,
		m.SlotsWaiting,
		m.SlotWaitTimeouts,
		m.BackendHealthy,
		m.HealthProbes,
	)
}

// RecordQuery counts one finished query
func (m *Metrics) RecordQuery(resource, outcome string) {
	m.QueriesTotal.WithLabelValues(resource, outcome).Inc()
}

// RecordQueryDuration records the backend time of one query
func (m *Metrics) RecordQueryDuration(resource string, d time.Duration) {
	m.QueryDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// RecordRetry counts one repeated backend attempt
func (m *Metrics) RecordRetry(resource string) {
	m.RetriesTotal.WithLabelValues(resource).Inc()
}

// RecordBatch records the size of a batch request
func (m *Metrics) RecordBatch(size int) {
	m.BatchSize.Observe(float64(size))
}

// RecordSlots updates the slot pool gauges
func (m *Metrics) RecordSlots(active, waiting int) {
	m.SlotsActive.Set(float64(active))
	m.SlotsWaiting.Set(float64(waiting))
}

// RecordSlotTimeout counts one abandoned slot wait
func (m *Metrics) RecordSlotTimeout() {
	m.SlotWaitTimeouts.Inc()
}

// RecordHealth updates the backend health gauge and probe counter
func (m *Metrics) RecordHealth(healthy bool) {
	value := 0.0
	result := "failure"
	if healthy {
		value = 1.0
		result = "success"
	}
	m.BackendHealthy.Set(value)
	m.HealthProbes.WithLabelValues(result).Inc()
}
