// Package slots bounds how many backend calls run at once.
package slots

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/metric"
)

// Pool defaults
const (
	DefaultCapacity    = 5
	DefaultWaitTimeout = 10 * time.Second
)

// Stats is a snapshot of the pool.
type Stats struct {
	Active      int `json:"active"`
	Capacity    int `json:"capacity"`
	QueueLength int `json:"queue_length"`
}

// Option configures a Pool.
type Option func(*Pool)

// WithWaitTimeout sets how long Acquire may queue before failing with
// errors.ErrPoolTimeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.waitTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics exports active and waiting counts through the core slot gauges.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Pool) {
		if registry != nil {
			p.metrics = registry.CoreMetrics()
		}
	}
}

// Pool hands out at most capacity slots. Waiters are admitted strictly in
// arrival order.
type Pool struct {
	sem         *semaphore.Weighted
	capacity    int
	waitTimeout time.Duration

	active  atomic.Int64
	waiting atomic.Int64

	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewPool creates a pool with the given capacity (DefaultCapacity when <= 0).
func NewPool(capacity int, opts ...Option) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		sem:         semaphore.NewWeighted(int64(capacity)),
		capacity:    capacity,
		waitTimeout: DefaultWaitTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a slot, queueing when all are taken. It fails with
// errors.ErrPoolTimeout when the wait deadline passes and with a
// cancellation-class error when ctx ends first.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	if p.sem.TryAcquire(1) {
		return p.grant(), nil
	}

	p.waiting.Add(1)
	p.report()
	p.logger.Debug("Waiting for query slot", "active", p.active.Load(), "queue_length", p.waiting.Load())

	waitCtx, cancel := context.WithTimeout(ctx, p.waitTimeout)
	err := p.sem.Acquire(waitCtx, 1)
	cancel()

	p.waiting.Add(-1)

	if err != nil {
		p.report()
		if ctx.Err() != nil {
			return nil, errors.WrapCancelled(ctx.Err(), "slots", "Acquire", "queue wait")
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			if p.metrics != nil {
				p.metrics.RecordSlotTimeout()
			}
			p.logger.Warn("Query slot wait timed out", "wait_timeout", p.waitTimeout)
			return nil, errors.WrapTransient(errors.ErrPoolTimeout, "slots", "Acquire", "queue wait")
		}
		return nil, errors.WrapCancelled(err, "slots", "Acquire", "queue wait")
	}

	return p.grant(), nil
}

func (p *Pool) grant() *Slot {
	p.active.Add(1)
	p.report()
	return &Slot{pool: p}
}

func (p *Pool) release() {
	p.active.Add(-1)
	p.sem.Release(1)
	p.report()
}

func (p *Pool) report() {
	if p.metrics != nil {
		p.metrics.RecordSlots(int(p.active.Load()), int(p.waiting.Load()))
	}
}

// Stats returns the current pool occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		Active:      int(p.active.Load()),
		Capacity:    p.capacity,
		QueueLength: int(p.waiting.Load()),
	}
}

// Slot is one unit of admission. Release it exactly when the work is done;
// extra calls are ignored.
type Slot struct {
	pool *Pool
	once sync.Once
}

// Release returns the slot to the pool and admits the next waiter.
func (s *Slot) Release() {
	s.once.Do(s.pool.release)
}
