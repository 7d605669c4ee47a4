package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/pkg/cache"
)

// Gateway defaults
const (
	DefaultAddr            = ":8080"
	DefaultMaxRequestSize  = 1024 * 1024 // 1MB
	DefaultRequestTimeout  = 30 * time.Second
	DefaultStatsInterval   = 2 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	maxRequestSizeLimit = 100 * 1024 * 1024
)

// Config holds configuration for the HTTP gateway.
type Config struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	// EnableCORS enables CORS headers (default: false, requires explicit cors_origins)
	EnableCORS bool `json:"enable_cors" yaml:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (required when EnableCORS is true)
	// Use ["*"] for development only.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`

	// MaxRequestSize limits request body size in bytes (default: 1MB)
	MaxRequestSize int64 `json:"max_request_size,omitempty" yaml:"max_request_size,omitempty"`

	// RequestTimeout bounds a whole query request, retries included.
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`

	// StatsInterval is the period of /ws/stats frames.
	StatsInterval time.Duration `json:"stats_interval,omitempty" yaml:"stats_interval,omitempty"`

	// ShutdownTimeout bounds graceful shutdown of the listener.
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		EnableCORS:      false,
		CORSOrigins:     []string{},
		MaxRequestSize:  DefaultMaxRequestSize,
		RequestTimeout:  DefaultRequestTimeout,
		StatsInterval:   DefaultStatsInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = DefaultMaxRequestSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate ensures the gateway configuration is valid
func (c *Config) Validate() error {
	if c.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot be negative")
	}
	if c.MaxRequestSize > maxRequestSizeLimit {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot exceed 100MB")
	}
	if c.RequestTimeout < 0 || c.StatsInterval < 0 || c.ShutdownTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("timeouts cannot be negative (request %v, stats %v, shutdown %v)",
				c.RequestTimeout, c.StatsInterval, c.ShutdownTimeout))
	}

	// CORS requires explicit origin configuration
	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"enable_cors requires explicit cors_origins configuration (use [\"*\"] for development only)")
	}

	return nil
}

// UnmarshalJSON accepts duration strings ("10s") or integer nanoseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	aux := &struct {
		RequestTimeout  json.RawMessage `json:"request_timeout,omitempty"`
		StatsInterval   json.RawMessage `json:"stats_interval,omitempty"`
		ShutdownTimeout json.RawMessage `json:"shutdown_timeout,omitempty"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *time.Duration
	}{
		{"request_timeout", aux.RequestTimeout, &c.RequestTimeout},
		{"stats_interval", aux.StatsInterval, &c.StatsInterval},
		{"shutdown_timeout", aux.ShutdownTimeout, &c.ShutdownTimeout},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		d, err := cache.ParseDurationField(f.raw, f.name)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}
