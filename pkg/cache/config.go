package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// Config contains configuration for the query result cache.
type Config struct {
	// Enabled determines if caching is enabled.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxSize is the maximum number of entries before the oldest insertion is evicted.
	MaxSize int `json:"max_size" yaml:"max_size"`

	// TTL is how long a stored result stays valid.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns the default cache configuration: 50 entries, five minutes.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		MaxSize: DefaultMaxSize,
		TTL:     DefaultTTL,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("max_size must be positive, got %d", c.MaxSize))
	}
	if c.TTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("ttl must be positive, got %v", c.TTL))
	}
	return nil
}

// NewFromConfig creates a cache based on the provided configuration.
// Returns a disabled cache (NewNoop) if config.Enabled is false.
func NewFromConfig[V any](config Config, options ...Option[V]) (Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewFromConfig", "config validation failed")
	}

	if !config.Enabled {
		return NewNoop[V](), nil
	}

	return NewExpiring[V](config.TTL, config.MaxSize, options...)
}

// NewNoop creates a cache that stores nothing. Every Get is a counted miss,
// so Stats is never nil.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{stats: NewStatistics()}
}

type noopCache[V any] struct {
	stats *Statistics
}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	c.stats.Miss()
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ string, _ V) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) Delete(_ string) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) DeleteFunc(_ func(string) bool) int {
	return 0
}

func (c *noopCache[V]) DeletePrefix(_ string) int {
	return 0
}

func (c *noopCache[V]) Clear() error {
	return nil
}

func (c *noopCache[V]) Size() int {
	return 0
}

func (c *noopCache[V]) Keys() []string {
	return []string{}
}

func (c *noopCache[V]) Stats() *Statistics {
	return c.stats
}

func (c *noopCache[V]) Close() error {
	return nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Config to support
// duration strings (e.g., "5m", "30s") in addition to nanosecond integers.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config

	aux := &struct {
		TTL json.RawMessage `json:"ttl,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.TTL) > 0 {
		ttl, err := ParseDurationField(aux.TTL, "ttl")
		if err != nil {
			return err
		}
		c.TTL = ttl
	}

	return nil
}

// ParseDurationField parses a JSON duration field that can be either
// a duration string ("1h", "5m", "30s") or integer nanoseconds.
func ParseDurationField(data json.RawMessage, fieldName string) (time.Duration, error) {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		duration, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", fieldName, err)
		}
		return duration, nil
	}

	var nsec int64
	if err := json.Unmarshal(data, &nsec); err != nil {
		return 0, fmt.Errorf("field %s must be either a duration string (e.g., '1h') or integer nanoseconds", fieldName)
	}
	return time.Duration(nsec), nil
}
