package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/metric"
	"github.com/hawkins7575/toozalink-sub000/pkg/cache"
	"github.com/hawkins7575/toozalink-sub000/pkg/retry"
	"github.com/hawkins7575/toozalink-sub000/pkg/slots"
	"github.com/hawkins7575/toozalink-sub000/pkg/stats"
)

// Executor defaults
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// Config configures query execution.
type Config struct {
	// Timeout bounds a single backend call. Expiry is a cancellation-class
	// failure and is not retried.
	Timeout time.Duration

	// MaxAttempts is the retry ceiling, first call included.
	MaxAttempts int

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// Validate rejects negative values.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", errors.ErrInvalidConfig)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts cannot be negative", errors.ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative", errors.ErrInvalidConfig)
	}
	return nil
}

// Deps holds the executor's collaborators. Only Backend is required.
type Deps struct {
	Config   Config
	Backend  Backend
	Cache    cache.Cache[[]Record]   // nil disables caching
	Slots    *slots.Pool             // nil creates a pool of slots.DefaultCapacity
	Stats    *stats.Collector        // nil creates a private collector
	Registry *metric.MetricsRegistry // optional
	Logger   *slog.Logger
}

// Executor runs descriptions against the backend. Safe for concurrent use.
type Executor struct {
	config  Config
	backend Backend
	cache   cache.Cache[[]Record]
	slots   *slots.Pool
	stats   *stats.Collector
	metrics *metric.Metrics
	logger  *slog.Logger
}

// NewExecutor creates an executor from deps.
func NewExecutor(deps Deps) (*Executor, error) {
	deps.Config.SetDefaults()
	if err := deps.Config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Executor", "NewExecutor", "configuration validation failed")
	}
	if deps.Backend == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Executor", "NewExecutor", "backend is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		config:  deps.Config,
		backend: deps.Backend,
		cache:   deps.Cache,
		slots:   deps.Slots,
		stats:   deps.Stats,
		logger:  logger.With("component", "query-executor"),
	}
	if e.cache == nil {
		e.cache = cache.NewNoop[[]Record]()
	}
	if e.slots == nil {
		e.slots = slots.NewPool(slots.DefaultCapacity, slots.WithLogger(logger), slots.WithMetrics(deps.Registry))
	}
	if e.stats == nil {
		e.stats = stats.NewCollector(stats.DefaultWindow)
	}
	if deps.Registry != nil {
		e.metrics = deps.Registry.CoreMetrics()
	}
	return e, nil
}

// Stats returns the collector the executor records into.
func (e *Executor) Stats() *stats.Collector {
	return e.stats
}

// Slots returns the executor's slot pool.
func (e *Executor) Slots() *slots.Pool {
	return e.slots
}

// Execute runs d and returns its rows. A cached result short-circuits the
// backend and the slot pool entirely. Otherwise one slot is held for the
// whole retry loop. Returned rows may be shared with the cache and must not be
// modified.
func (e *Executor) Execute(ctx context.Context, d Description) ([]Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	key := ""
	if d.CacheEnabled {
		k, err := CacheKey(d)
		if err != nil {
			e.logger.Debug("Cache bypassed", "resource", d.Resource, "error", err)
		} else {
			key = k
		}
	}

	if key != "" {
		if rows, ok := e.cache.Get(key); ok {
			e.logger.Debug("Cache hit", "resource", d.Resource, "key", key)
			e.stats.RecordCacheHit()
			if e.metrics != nil {
				e.metrics.RecordQuery(d.Resource, metric.OutcomeCacheHit)
			}
			return rows, nil
		}
		e.logger.Debug("Cache miss", "resource", d.Resource, "key", key)
	}

	start := time.Now()
	rows, err := e.run(ctx, d)
	elapsed := time.Since(start)

	if err != nil {
		e.stats.RecordFailure()
		outcome := metric.OutcomeFailure
		if errors.IsCancelled(err) {
			outcome = metric.OutcomeCancelled
			e.logger.Debug("Query cancelled", "resource", d.Resource, "error", err)
		} else {
			e.logger.Error("Query failed", "resource", d.Resource, "error", err)
		}
		if e.metrics != nil {
			e.metrics.RecordQuery(d.Resource, outcome)
		}
		return nil, err
	}

	if key != "" {
		if _, cerr := e.cache.Set(key, rows); cerr != nil {
			e.logger.Debug("Cache store failed", "key", key, "error", cerr)
		}
	}
	e.stats.RecordSuccess(elapsed)
	if e.metrics != nil {
		e.metrics.RecordQuery(d.Resource, metric.OutcomeSuccess)
		e.metrics.RecordQueryDuration(d.Resource, elapsed)
	}
	return rows, nil
}

func (e *Executor) run(ctx context.Context, d Description) ([]Record, error) {
	slot, err := e.slots.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer slot.Release()

	cfg := retry.Config{
		MaxAttempts: e.config.MaxAttempts,
		Delay:       e.config.RetryDelay,
		Multiplier:  1.0,
		Retryable:   errors.IsRetryable,
		OnRetry: func(attempt int, err error) {
			e.logger.Debug("Retrying query", "resource", d.Resource, "attempt", attempt, "error", err)
			if e.metrics != nil {
				e.metrics.RecordRetry(d.Resource)
			}
		},
	}

	rows, err := retry.DoWithResult(ctx, cfg, func() ([]Record, error) {
		return e.attempt(ctx, d)
	})
	if err != nil && ctx.Err() != nil && !errors.IsCancelled(err) {
		return nil, errors.WrapCancelled(context.Cause(ctx), "Executor", "Execute", "retry wait")
	}
	return rows, err
}

type attemptResult struct {
	rows []Record
	err  error
}

// attempt performs one backend call raced against the per-call timeout.
func (e *Executor) attempt(ctx context.Context, d Description) ([]Record, error) {
	builder, err := Lower(e.backend, d)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		res, err := builder.Run(callCtx)
		done <- attemptResult{rows: res.Rows, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.rows, nil
		}
		if callCtx.Err() != nil {
			return nil, e.abandoned(ctx, d)
		}
		return nil, errors.WrapClassified(r.err, "Executor", "Execute", "backend call on "+d.Resource)
	case <-callCtx.Done():
		return nil, e.abandoned(ctx, d)
	}
}

// abandoned maps an ended call context to the right cancellation error.
func (e *Executor) abandoned(ctx context.Context, d Description) error {
	if ctx.Err() != nil {
		return errors.WrapCancelled(context.Cause(ctx), "Executor", "Execute", "backend call on "+d.Resource)
	}
	return errors.WrapCancelled(errors.ErrQueryTimeout, "Executor", "Execute",
		fmt.Sprintf("backend call on %s after %s", d.Resource, e.config.Timeout))
}

// InvalidatePrefix drops cached results whose key starts with prefix. An
// empty prefix clears the whole cache. Returns the number of entries removed.
func (e *Executor) InvalidatePrefix(prefix string) int {
	if prefix == "" {
		n := e.cache.Size()
		if err := e.cache.Clear(); err != nil {
			e.logger.Warn("Cache clear failed", "error", err)
		}
		return n
	}
	return e.cache.DeletePrefix(prefix)
}

// Cache returns the result cache.
func (e *Executor) Cache() cache.Cache[[]Record] {
	return e.cache
}
