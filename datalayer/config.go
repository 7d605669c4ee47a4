package datalayer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/health"
	"github.com/hawkins7575/toozalink-sub000/pkg/cache"
	"github.com/hawkins7575/toozalink-sub000/pkg/slots"
	"github.com/hawkins7575/toozalink-sub000/pkg/stats"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// Config configures every part of the data layer. Zero values take defaults
// in SetDefaults.
type Config struct {
	Cache  cache.Config `json:"cache" yaml:"cache"`
	Slots  SlotsConfig  `json:"slots" yaml:"slots"`
	Query  QueryConfig  `json:"query" yaml:"query"`
	Health HealthConfig `json:"health" yaml:"health"`

	// StatsWindow is how many recent latencies feed the average.
	StatsWindow int `json:"stats_window" yaml:"stats_window"`
}

// SlotsConfig bounds concurrent backend calls.
type SlotsConfig struct {
	Capacity    int           `json:"capacity" yaml:"capacity"`
	WaitTimeout time.Duration `json:"wait_timeout" yaml:"wait_timeout"`
}

// QueryConfig configures execution of a single query.
type QueryConfig struct {
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// HealthConfig configures backend health probing.
type HealthConfig struct {
	// Disabled turns off the background refresher. CheckHealth still probes.
	Disabled         bool          `json:"disabled" yaml:"disabled"`
	Interval         time.Duration `json:"interval" yaml:"interval"`
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
	ProbeTimeout     time.Duration `json:"probe_timeout" yaml:"probe_timeout"`

	// ProbeResource is queried with limit 1 when the backend cannot ping.
	ProbeResource string `json:"probe_resource" yaml:"probe_resource"`
}

// DefaultProbeResource is the resource probed when none is configured.
const DefaultProbeResource = "sites"

// DefaultConfig returns a fully defaulted configuration.
func DefaultConfig() Config {
	c := Config{Cache: cache.DefaultConfig()}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero fields. The cache section is left alone when it is
// explicitly disabled.
func (c *Config) SetDefaults() {
	if c.Cache.Enabled {
		if c.Cache.MaxSize == 0 {
			c.Cache.MaxSize = cache.DefaultMaxSize
		}
		if c.Cache.TTL == 0 {
			c.Cache.TTL = cache.DefaultTTL
		}
	}
	if c.Slots.Capacity == 0 {
		c.Slots.Capacity = slots.DefaultCapacity
	}
	if c.Slots.WaitTimeout == 0 {
		c.Slots.WaitTimeout = slots.DefaultWaitTimeout
	}
	if c.Query.Timeout == 0 {
		c.Query.Timeout = query.DefaultTimeout
	}
	if c.Query.MaxAttempts == 0 {
		c.Query.MaxAttempts = query.DefaultMaxAttempts
	}
	if c.Query.RetryDelay == 0 {
		c.Query.RetryDelay = query.DefaultRetryDelay
	}
	if c.Health.Interval == 0 {
		c.Health.Interval = health.DefaultCheckInterval
	}
	if c.Health.FailureThreshold == 0 {
		c.Health.FailureThreshold = health.DefaultFailureThreshold
	}
	if c.Health.ProbeTimeout == 0 {
		c.Health.ProbeTimeout = health.DefaultProbeTimeout
	}
	if c.Health.ProbeResource == "" {
		c.Health.ProbeResource = DefaultProbeResource
	}
	if c.StatsWindow == 0 {
		c.StatsWindow = stats.DefaultWindow
	}
}

// Validate checks the configuration after defaults have been applied.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	checks := []struct {
		ok   bool
		what string
	}{
		{c.Slots.Capacity > 0, fmt.Sprintf("slots.capacity must be positive, got %d", c.Slots.Capacity)},
		{c.Slots.WaitTimeout > 0, fmt.Sprintf("slots.wait_timeout must be positive, got %v", c.Slots.WaitTimeout)},
		{c.Query.Timeout > 0, fmt.Sprintf("query.timeout must be positive, got %v", c.Query.Timeout)},
		{c.Query.MaxAttempts > 0, fmt.Sprintf("query.max_attempts must be positive, got %d", c.Query.MaxAttempts)},
		{c.Query.RetryDelay >= 0, fmt.Sprintf("query.retry_delay cannot be negative, got %v", c.Query.RetryDelay)},
		{c.Health.Interval > 0, fmt.Sprintf("health.interval must be positive, got %v", c.Health.Interval)},
		{c.Health.FailureThreshold > 0, fmt.Sprintf("health.failure_threshold must be positive, got %d", c.Health.FailureThreshold)},
		{c.Health.ProbeTimeout > 0, fmt.Sprintf("health.probe_timeout must be positive, got %v", c.Health.ProbeTimeout)},
		{c.StatsWindow > 0, fmt.Sprintf("stats_window must be positive, got %d", c.StatsWindow)},
	}
	for _, check := range checks {
		if !check.ok {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "datalayer", "Validate", check.what)
		}
	}
	return nil
}

// UnmarshalJSON accepts duration strings ("10s") or integer nanoseconds.
func (c *SlotsConfig) UnmarshalJSON(data []byte) error {
	type alias SlotsConfig
	aux := &struct {
		WaitTimeout json.RawMessage `json:"wait_timeout,omitempty"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return parseDurations(map[string]durationField{
		"wait_timeout": {aux.WaitTimeout, &c.WaitTimeout},
	})
}

// UnmarshalJSON accepts duration strings ("10s") or integer nanoseconds.
func (c *QueryConfig) UnmarshalJSON(data []byte) error {
	type alias QueryConfig
	aux := &struct {
		Timeout    json.RawMessage `json:"timeout,omitempty"`
		RetryDelay json.RawMessage `json:"retry_delay,omitempty"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return parseDurations(map[string]durationField{
		"timeout":     {aux.Timeout, &c.Timeout},
		"retry_delay": {aux.RetryDelay, &c.RetryDelay},
	})
}

// UnmarshalJSON accepts duration strings ("10s") or integer nanoseconds.
func (c *HealthConfig) UnmarshalJSON(data []byte) error {
	type alias HealthConfig
	aux := &struct {
		Interval     json.RawMessage `json:"interval,omitempty"`
		ProbeTimeout json.RawMessage `json:"probe_timeout,omitempty"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return parseDurations(map[string]durationField{
		"interval":      {aux.Interval, &c.Interval},
		"probe_timeout": {aux.ProbeTimeout, &c.ProbeTimeout},
	})
}

type durationField struct {
	raw json.RawMessage
	dst *time.Duration
}

func parseDurations(fields map[string]durationField) error {
	for name, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		d, err := cache.ParseDurationField(f.raw, name)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}
