package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/metric"
)

// Prober defaults
const (
	DefaultCheckInterval    = 30 * time.Second
	DefaultFailureThreshold = 5
	DefaultProbeTimeout     = 5 * time.Second
)

// ProbeFunc issues one minimal call against the backend.
type ProbeFunc func(ctx context.Context) error

// ProbeRecorder receives every probe outcome.
type ProbeRecorder interface {
	RecordProbe(success bool)
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	Interval         time.Duration
	FailureThreshold int
	Timeout          time.Duration
}

// ProbeState is a snapshot of the prober's verdict.
type ProbeState struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// ProberOption configures optional Prober collaborators.
type ProberOption func(*Prober)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder feeds probe outcomes to r.
func WithRecorder(r ProbeRecorder) ProberOption {
	return func(p *Prober) { p.recorder = r }
}

// WithMetrics exports the verdict through the core health gauge.
func WithMetrics(registry *metric.MetricsRegistry) ProberOption {
	return func(p *Prober) {
		if registry != nil {
			p.metrics = registry.CoreMetrics()
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProberOption {
	return func(p *Prober) {
		if now != nil {
			p.now = now
		}
	}
}

// Prober tracks backend reachability. The verdict starts healthy, flips to
// unhealthy once FailureThreshold probes in a row fail, and flips back on the
// first success.
type Prober struct {
	probe ProbeFunc
	cfg   ProberConfig

	mu          sync.Mutex
	healthy     bool
	failures    int
	lastChecked time.Time
	lastErr     string

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	now      func() time.Time
	logger   *slog.Logger
	recorder ProbeRecorder
	metrics  *metric.Metrics
}

// NewProber creates a prober around probe. Zero config fields take the defaults.
func NewProber(probe ProbeFunc, cfg ProberConfig, opts ...ProberOption) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCheckInterval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}

	p := &Prober{
		probe:   probe,
		cfg:     cfg,
		healthy: true,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "health-prober")
	return p
}

// Check returns the health verdict. Unless force is set, a verdict younger
// than the check interval is returned without probing.
func (p *Prober) Check(ctx context.Context, force bool) bool {
	p.mu.Lock()
	if !force && !p.lastChecked.IsZero() && p.now().Sub(p.lastChecked) < p.cfg.Interval {
		healthy := p.healthy
		p.mu.Unlock()
		return healthy
	}
	p.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	err := p.probe(probeCtx)
	cancel()

	return p.record(err)
}

func (p *Prober) record(err error) bool {
	p.mu.Lock()
	wasHealthy := p.healthy
	p.lastChecked = p.now()
	if err == nil {
		p.failures = 0
		p.healthy = true
		p.lastErr = ""
	} else {
		p.failures++
		p.lastErr = err.Error()
		if p.failures >= p.cfg.FailureThreshold {
			p.healthy = false
		}
	}
	healthy, failures := p.healthy, p.failures
	p.mu.Unlock()

	if p.recorder != nil {
		p.recorder.RecordProbe(err == nil)
	}
	if p.metrics != nil {
		p.metrics.RecordHealth(healthy)
	}

	switch {
	case err != nil && wasHealthy && !healthy:
		p.logger.Warn("Backend marked unhealthy", "consecutive_failures", failures, "error", err)
	case err != nil:
		p.logger.Warn("Health probe failed", "consecutive_failures", failures, "error", err)
	case !wasHealthy:
		p.logger.Info("Backend recovered")
	}

	return healthy
}

// State returns the current verdict without probing.
func (p *Prober) State() ProbeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProbeState{
		Healthy:             p.healthy,
		ConsecutiveFailures: p.failures,
		LastCheckedAt:       p.lastChecked,
		LastError:           p.lastErr,
	}
}

// Start launches the background refresher, which calls Check every interval
// until Stop is called or ctx is done.
func (p *Prober) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.cancel != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Prober", "Start", "background refresher")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(runCtx, p.done)
	return nil
}

func (p *Prober) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx, false)
		}
	}
}

// Stop halts the background refresher and waits for it to exit. Safe to call
// more than once.
func (p *Prober) Stop() {
	p.lifecycleMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
