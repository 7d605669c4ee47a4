package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	EnvFile         string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ServeNATS       bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("TOOZALINK_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: TOOZALINK_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("TOOZALINK_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: TOOZALINK_CONFIG)")

	fs.StringVar(&cfg.EnvFile, "env-file",
		getEnv("TOOZALINK_ENV_FILE", ".env"),
		"Environment file loaded before overrides, skipped when missing (env: TOOZALINK_ENV_FILE)")

	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error; overrides the config file")
	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text; overrides the config file")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("TOOZALINK_DEBUG", false),
		"Enable debug logging (env: TOOZALINK_DEBUG)")

	fs.BoolVar(&cfg.ServeNATS, "serve-nats",
		getEnvBool("TOOZALINK_SERVE_NATS", false),
		"Also answer data layer requests on the configured NATS subject from the local backend (env: TOOZALINK_SERVE_NATS)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("TOOZALINK_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: TOOZALINK_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ShowHelp {
		fs.Usage()
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - resilient data access for the bookmark service

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run against an in-memory backend seeded from a file
  TOOZALINK_BACKEND_SEED_FILE=seed.json %s

  # Run against PostgreSQL with debug logging
  TOOZALINK_BACKEND_TYPE=postgres TOOZALINK_POSTGRES_DSN=postgres://localhost/toozalink %s --debug

  # Serve the local backend to other instances over NATS
  %s --config=configs/responder.yaml --serve-nats

  # Validate configuration only
  %s --config=configs/production.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
