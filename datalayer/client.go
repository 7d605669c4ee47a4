// Package datalayer is the single entry point applications use to read from
// the backend data service. A Client owns the result cache, the slot pool,
// the statistics collector, the health prober and the query executor, and
// tears them down on Close.
package datalayer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/health"
	"github.com/hawkins7575/toozalink-sub000/metric"
	"github.com/hawkins7575/toozalink-sub000/pkg/cache"
	"github.com/hawkins7575/toozalink-sub000/pkg/slots"
	"github.com/hawkins7575/toozalink-sub000/pkg/stats"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// CacheStats describes the result cache.
type CacheStats struct {
	Size      int      `json:"size"`
	Keys      []string `json:"keys"`
	Hits      int64    `json:"hits"`
	Misses    int64    `json:"misses"`
	Evictions int64    `json:"evictions"`
	HitRatio  float64  `json:"hit_ratio"`
}

// ConnectionStats describes load and outcomes.
type ConnectionStats struct {
	Active                int       `json:"active"`
	Capacity              int       `json:"capacity"`
	QueueLength           int       `json:"queue_length"`
	TotalRequests         int64     `json:"total_requests"`
	SuccessfulRequests    int64     `json:"successful_requests"`
	FailedRequests        int64     `json:"failed_requests"`
	CacheHits             int64     `json:"cache_hits"`
	SuccessRate           float64   `json:"success_rate"`
	AverageResponseTimeMs float64   `json:"average_response_time_ms"`
	Healthy               bool      `json:"healthy"`
	ConsecutiveFailures   int       `json:"consecutive_failures"`
	LastCheckedAt         time.Time `json:"last_checked_at"`
}

// Deps holds the client's collaborators. Backend is required.
type Deps struct {
	Config   Config
	Backend  query.Backend
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger

	// Clock drives cache expiry and health verdict age. Defaults to time.Now.
	Clock func() time.Time
}

// Client is the data-layer facade. Safe for concurrent use.
type Client struct {
	config   Config
	cache    cache.Cache[[]query.Record]
	slots    *slots.Pool
	stats    *stats.Collector
	executor *query.Executor
	prober   *health.Prober
	logger   *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

// New builds a client and, unless disabled, starts background health
// probing bound to ctx.
func New(ctx context.Context, deps Deps) (*Client, error) {
	deps.Config.SetDefaults()
	if err := deps.Config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "datalayer", "New", "configuration validation failed")
	}
	if deps.Backend == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "datalayer", "New", "backend is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	cacheOpts := []cache.Option[[]query.Record]{
		cache.WithMetrics[[]query.Record](deps.Registry, "query_results"),
		cache.WithEvictionCallback[[]query.Record](func(key string, rows []query.Record) {
			logger.Debug("Query result evicted", "key", key, "rows", len(rows))
		}),
	}
	if deps.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock[[]query.Record](deps.Clock))
	}
	resultCache, err := cache.NewFromConfig[[]query.Record](cfg.Cache, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "datalayer", "New", "create cache")
	}

	pool := slots.NewPool(cfg.Slots.Capacity,
		slots.WithWaitTimeout(cfg.Slots.WaitTimeout),
		slots.WithLogger(logger),
		slots.WithMetrics(deps.Registry))
	collector := stats.NewCollector(cfg.StatsWindow)

	executor, err := query.NewExecutor(query.Deps{
		Config: query.Config{
			Timeout:     cfg.Query.Timeout,
			MaxAttempts: cfg.Query.MaxAttempts,
			RetryDelay:  cfg.Query.RetryDelay,
		},
		Backend:  deps.Backend,
		Cache:    resultCache,
		Slots:    pool,
		Stats:    collector,
		Registry: deps.Registry,
		Logger:   logger,
	})
	if err != nil {
		_ = resultCache.Close()
		return nil, err
	}

	proberOpts := []health.ProberOption{
		health.WithLogger(logger),
		health.WithRecorder(collector),
		health.WithMetrics(deps.Registry),
	}
	if deps.Clock != nil {
		proberOpts = append(proberOpts, health.WithClock(deps.Clock))
	}
	prober := health.NewProber(
		health.ProbeFunc(query.ProbeFunc(deps.Backend, cfg.Health.ProbeResource)),
		health.ProberConfig{
			Interval:         cfg.Health.Interval,
			FailureThreshold: cfg.Health.FailureThreshold,
			Timeout:          cfg.Health.ProbeTimeout,
		},
		proberOpts...,
	)

	c := &Client{
		config:   cfg,
		cache:    resultCache,
		slots:    pool,
		stats:    collector,
		executor: executor,
		prober:   prober,
		logger:   logger.With("component", "datalayer"),
	}

	if !cfg.Health.Disabled {
		if err := prober.Start(ctx); err != nil {
			_ = resultCache.Close()
			return nil, err
		}
	}

	c.logger.Info("Data layer ready",
		"cache_enabled", cfg.Cache.Enabled,
		"slots", cfg.Slots.Capacity,
		"query_timeout", cfg.Query.Timeout,
		"max_attempts", cfg.Query.MaxAttempts)
	return c, nil
}

func (c *Client) checkOpen(method string) error {
	if c.closed.Load() {
		return errors.WrapFatal(errors.ErrClosed, "datalayer", method, "client closed")
	}
	return nil
}

// ExecuteQuery runs one description.
func (c *Client) ExecuteQuery(ctx context.Context, d query.Description) ([]query.Record, error) {
	if err := c.checkOpen("ExecuteQuery"); err != nil {
		return nil, err
	}
	return c.executor.Execute(ctx, d)
}

// ExecuteBatchQuery runs descriptions concurrently. It fails only when every
// item fails.
func (c *Client) ExecuteBatchQuery(ctx context.Context, ds []query.Description) ([]query.Outcome, error) {
	if err := c.checkOpen("ExecuteBatchQuery"); err != nil {
		return nil, err
	}
	return c.executor.ExecuteAll(ctx, ds)
}

// NewSession returns a handle whose each new query cancels its previous one.
func (c *Client) NewSession() *query.Session {
	return c.executor.NewSession()
}

// ClearCache removes cached results whose key starts with prefix, or all of
// them when prefix is empty. Returns the number removed.
func (c *Client) ClearCache(prefix string) int {
	n := c.executor.InvalidatePrefix(prefix)
	c.logger.Debug("Cache cleared", "prefix", prefix, "removed", n)
	return n
}

// CacheStats reports cache size and keys in insertion order.
func (c *Client) CacheStats() CacheStats {
	s := c.cache.Stats()
	return CacheStats{
		Size:      c.cache.Size(),
		Keys:      c.cache.Keys(),
		Hits:      s.Hits(),
		Misses:    s.Misses(),
		Evictions: s.Evictions(),
		HitRatio:  s.HitRatio(),
	}
}

// ConnectionStats reports slot occupancy, request outcomes and health.
func (c *Client) ConnectionStats() ConnectionStats {
	pool := c.slots.Stats()
	snap := c.stats.Snapshot()
	state := c.prober.State()
	return ConnectionStats{
		Active:                pool.Active,
		Capacity:              pool.Capacity,
		QueueLength:           pool.QueueLength,
		TotalRequests:         snap.TotalRequests,
		SuccessfulRequests:    snap.SuccessfulRequests,
		FailedRequests:        snap.FailedRequests,
		CacheHits:             snap.CacheHits,
		SuccessRate:           snap.SuccessRate,
		AverageResponseTimeMs: snap.AverageResponseTimeMs,
		Healthy:               state.Healthy,
		ConsecutiveFailures:   state.ConsecutiveFailures,
		LastCheckedAt:         state.LastCheckedAt,
	}
}

// Stats returns the raw statistics snapshot.
func (c *Client) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// CheckHealth returns the backend verdict, probing when forced or when the
// cached verdict is older than the check interval.
func (c *Client) CheckHealth(ctx context.Context, force bool) bool {
	return c.prober.Check(ctx, force)
}

// HealthStatus aggregates backend and pool state into a health.Status.
func (c *Client) HealthStatus() health.Status {
	state := c.prober.State()
	pool := c.slots.Stats()

	backend := health.FromProbe("backend", state)
	slotStatus := health.NewHealthy("slots", fmt.Sprintf("%d/%d active", pool.Active, pool.Capacity))
	if pool.QueueLength > 0 {
		slotStatus = health.NewDegraded("slots", fmt.Sprintf("%d waiting for a slot", pool.QueueLength))
	}
	slotStatus = slotStatus.WithMetrics(&health.Metrics{QueueLength: pool.QueueLength})

	return health.Aggregate("datalayer", []health.Status{backend, slotStatus})
}

// ResetStats zeroes request counters and the latency window.
func (c *Client) ResetStats() {
	c.stats.Reset()
}

// Close stops health probing and drops the cache. In-flight queries finish on
// their own. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.prober.Stop()
		err = c.cache.Close()
		c.logger.Info("Data layer closed")
	})
	return err
}
