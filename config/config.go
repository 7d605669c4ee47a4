package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hawkins7575/toozalink-sub000/backend/natsrpc"
	"github.com/hawkins7575/toozalink-sub000/backend/postgres"
	"github.com/hawkins7575/toozalink-sub000/datalayer"
	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/gateway"
)

// Backend types
const (
	BackendMemory   = "memory"   // In-process tables, optionally seeded from a file
	BackendPostgres = "postgres" // PostgreSQL through pgx
	BackendNATS     = "nats"     // Remote responder over NATS request/reply
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "TOOZALINK"

const redacted = "[REDACTED]"

// Config represents the complete application configuration
type Config struct {
	Log       LogConfig        `json:"log" yaml:"log"`
	HTTP      gateway.Config   `json:"http" yaml:"http"`
	Backend   BackendConfig    `json:"backend" yaml:"backend"`
	DataLayer datalayer.Config `json:"datalayer" yaml:"datalayer"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or text
}

// BackendConfig selects and configures the backend data service.
type BackendConfig struct {
	Type string `json:"type" yaml:"type"`

	// SeedFile loads {"table": [rows]} into the memory backend at startup.
	SeedFile string `json:"seed_file,omitempty" yaml:"seed_file,omitempty"`

	Postgres postgres.Config `json:"postgres" yaml:"postgres"`
	NATS     NATSConfig      `json:"nats" yaml:"nats"`
}

// NATSConfig configures the NATS connection and the request/reply subject.
type NATSConfig struct {
	URL      string `json:"url" yaml:"url"`
	Subject  string `json:"subject" yaml:"subject"`
	Queue    string `json:"queue,omitempty" yaml:"queue,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`

	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`

	// RequestTimeout bounds a responder's backend call.
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
}

// Default returns the default configuration: memory backend, HTTP on :8080,
// data layer defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: gateway.DefaultConfig(),
		Backend: BackendConfig{
			Type: BackendMemory,
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				Subject:       natsrpc.DefaultSubject,
				Queue:         natsrpc.DefaultQueue,
				MaxReconnects: -1,
				ReconnectWait: 2 * time.Second,
			},
		},
		DataLayer: datalayer.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if err := c.HTTP.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "http")
	}

	switch c.Backend.Type {
	case BackendMemory:
	case BackendPostgres:
		if c.Backend.Postgres.DSN == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"backend.postgres.dsn is required for the postgres backend")
		}
	case BackendNATS:
		if c.Backend.NATS.URL == "" || c.Backend.NATS.Subject == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"backend.nats.url and backend.nats.subject are required for the nats backend")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown backend type %q (want memory, postgres or nats)", c.Backend.Type))
	}

	if err := c.DataLayer.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "datalayer")
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		copied := *c
		return &copied
	}
	return clone
}

// String returns a JSON representation with credentials redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Backend.Postgres.DSN != "" {
		safe.Backend.Postgres.DSN = redactDSN(safe.Backend.Postgres.DSN)
	}
	if safe.Backend.NATS.Password != "" {
		safe.Backend.NATS.Password = redacted
	}
	if safe.Backend.NATS.Token != "" {
		safe.Backend.NATS.Token = redacted
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// redactDSN hides the password of a URL-style or key=value DSN.
func redactDSN(dsn string) string {
	if at := strings.Index(dsn, "@"); at > 0 && strings.Contains(dsn, "://") {
		scheme := strings.Index(dsn, "://") + 3
		if colon := strings.Index(dsn[scheme:at], ":"); colon >= 0 {
			return dsn[:scheme+colon+1] + redacted + dsn[at:]
		}
		return dsn
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=" + redacted
		}
	}
	return strings.Join(fields, " ")
}

// SaveToFile writes the configuration as JSON or YAML depending on the
// extension.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode")
	}
	return safeWriteFile(path, data)
}

// UnmarshalJSON accepts duration strings ("2s") or integer nanoseconds.
func (c *NATSConfig) UnmarshalJSON(data []byte) error {
	type alias NATSConfig
	aux := &struct {
		ReconnectWait  json.RawMessage `json:"reconnect_wait,omitempty"`
		RequestTimeout json.RawMessage `json:"request_timeout,omitempty"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	for _, f := range []struct {
		raw json.RawMessage
		dst *time.Duration
	}{
		{aux.ReconnectWait, &c.ReconnectWait},
		{aux.RequestTimeout, &c.RequestTimeout},
	} {
		if len(f.raw) == 0 {
			continue
		}
		d, err := parseDurationJSON(f.raw)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	dotenv     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  DefaultEnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// AddDotEnv loads path into the process environment before overrides are
// applied. Missing files are skipped; variables already set are kept.
func (l *Loader) AddDotEnv(path string) {
	l.dotenv = append(l.dotenv, path)
}

// SetEnvPrefix changes the prefix of environment overrides.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = strings.TrimSuffix(prefix, "_")
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and the environment, in that order.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
	}

	for _, path := range l.dotenv {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load env file "+path)
		}
	}
	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.HTTP.SetDefaults()
	cfg.DataLayer.SetDefaults()

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads a JSON or YAML file into a generic map with duration
// strings converted to nanoseconds.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}
	} else {
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields
// present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	merged := &Config{}
	if err := json.Unmarshal(mergedJSON, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// durationKeys are the key suffixes whose string values are durations.
var durationKeys = []string{"timeout", "interval", "ttl", "delay", "wait"}

func isDurationKey(key string) bool {
	for _, suffix := range durationKeys {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// parseDurations converts duration strings to nanoseconds in place.
func parseDurations(data map[string]any) error {
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			if err := parseDurations(val); err != nil {
				return err
			}
		case string:
			if !isDurationKey(k) {
				continue
			}
			d, err := parseDurationWithDays(val)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, k, err)
			}
			data[k] = d.Nanoseconds()
		}
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func parseDurationJSON(raw json.RawMessage) (time.Duration, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseDurationWithDays(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("duration must be a string or integer nanoseconds: %s", raw)
	}
	return time.Duration(n), nil
}

// envOverride binds one environment variable to a setter.
type envOverride struct {
	name string
	set  func(cfg *Config, value string) error
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := parseDurationWithDays(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

var envOverrides = []envOverride{
	{"LOG_LEVEL", stringSetter(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", stringSetter(func(c *Config) *string { return &c.Log.Format })},
	{"HTTP_ADDR", stringSetter(func(c *Config) *string { return &c.HTTP.Addr })},
	{"BACKEND_TYPE", stringSetter(func(c *Config) *string { return &c.Backend.Type })},
	{"BACKEND_SEED_FILE", stringSetter(func(c *Config) *string { return &c.Backend.SeedFile })},
	{"POSTGRES_DSN", stringSetter(func(c *Config) *string { return &c.Backend.Postgres.DSN })},
	{"NATS_URL", stringSetter(func(c *Config) *string { return &c.Backend.NATS.URL })},
	{"NATS_SUBJECT", stringSetter(func(c *Config) *string { return &c.Backend.NATS.Subject })},
	{"NATS_USERNAME", stringSetter(func(c *Config) *string { return &c.Backend.NATS.Username })},
	{"NATS_PASSWORD", stringSetter(func(c *Config) *string { return &c.Backend.NATS.Password })},
	{"NATS_TOKEN", stringSetter(func(c *Config) *string { return &c.Backend.NATS.Token })},
	{"CACHE_ENABLED", boolSetter(func(c *Config) *bool { return &c.DataLayer.Cache.Enabled })},
	{"CACHE_TTL", durationSetter(func(c *Config) *time.Duration { return &c.DataLayer.Cache.TTL })},
	{"CACHE_MAX_SIZE", intSetter(func(c *Config) *int { return &c.DataLayer.Cache.MaxSize })},
	{"SLOTS_CAPACITY", intSetter(func(c *Config) *int { return &c.DataLayer.Slots.Capacity })},
	{"QUERY_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.DataLayer.Query.Timeout })},
	{"QUERY_MAX_ATTEMPTS", intSetter(func(c *Config) *int { return &c.DataLayer.Query.MaxAttempts })},
	{"HEALTH_INTERVAL", durationSetter(func(c *Config) *time.Duration { return &c.DataLayer.Health.Interval })},
}

// applyEnvOverrides applies PREFIX_NAME environment variables. An
// unparseable value is an error rather than silently ignored.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		key := l.envPrefix + "_" + o.name
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", key)
		}
		if err := o.set(cfg, val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"Loader", "applyEnvOverrides", key)
		}
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
