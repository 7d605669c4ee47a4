// Package stats aggregates request outcomes and latencies for the data layer.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/hawkins7575/toozalink-sub000/pkg/buffer"
)

// DefaultWindow is how many recent latencies feed the average
const DefaultWindow = 100

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	TotalRequests         int64   `json:"total_requests"`
	SuccessfulRequests    int64   `json:"successful_requests"`
	FailedRequests        int64   `json:"failed_requests"`
	CacheHits             int64   `json:"cache_hits"`
	SuccessRate           float64 `json:"success_rate"`
	AverageResponseTimeMs float64 `json:"average_response_time_ms"`
	ProbesSucceeded       int64   `json:"probes_succeeded"`
	ProbesFailed          int64   `json:"probes_failed"`
}

// Collector counts query outcomes. A cache hit counts as a successful request
// but contributes no latency sample.
type Collector struct {
	total        atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	cacheHits    atomic.Int64
	probesOK     atomic.Int64
	probesFailed atomic.Int64

	latencies *buffer.Window
}

// NewCollector creates a collector averaging over the last window latencies.
func NewCollector(window int) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Collector{
		latencies: buffer.NewWindow(window),
	}
}

// RecordSuccess records a query answered by the backend.
func (c *Collector) RecordSuccess(elapsed time.Duration) {
	c.total.Add(1)
	c.succeeded.Add(1)
	c.latencies.Add(float64(elapsed) / float64(time.Millisecond))
}

// RecordFailure records a query that failed after all attempts.
func (c *Collector) RecordFailure() {
	c.total.Add(1)
	c.failed.Add(1)
}

// RecordCacheHit records a query answered from cache.
func (c *Collector) RecordCacheHit() {
	c.total.Add(1)
	c.succeeded.Add(1)
	c.cacheHits.Add(1)
}

// RecordProbe records one health probe outcome.
func (c *Collector) RecordProbe(success bool) {
	if success {
		c.probesOK.Add(1)
		return
	}
	c.probesFailed.Add(1)
}

// Snapshot returns the current counters. SuccessRate is a percentage and is
// 100 before any request was made.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		TotalRequests:      c.total.Load(),
		SuccessfulRequests: c.succeeded.Load(),
		FailedRequests:     c.failed.Load(),
		CacheHits:          c.cacheHits.Load(),
		ProbesSucceeded:    c.probesOK.Load(),
		ProbesFailed:       c.probesFailed.Load(),
		SuccessRate:        100,
	}
	if s.TotalRequests > 0 {
		s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
	}
	s.AverageResponseTimeMs = c.latencies.Mean()
	return s
}

// Reset zeroes every counter and empties the latency window.
func (c *Collector) Reset() {
	c.total.Store(0)
	c.succeeded.Store(0)
	c.failed.Store(0)
	c.cacheHits.Store(0)
	c.probesOK.Store(0)
	c.probesFailed.Store(0)
	c.latencies.Reset()
}
