// Package main runs the toozalink data layer: it opens the configured
// backend, wraps it in the resilient data layer and serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hawkins7575/toozalink-sub000/backend/memory"
	"github.com/hawkins7575/toozalink-sub000/backend/natsrpc"
	"github.com/hawkins7575/toozalink-sub000/backend/postgres"
	"github.com/hawkins7575/toozalink-sub000/config"
	"github.com/hawkins7575/toozalink-sub000/datalayer"
	gatewayhttp "github.com/hawkins7575/toozalink-sub000/gateway/http"
	"github.com/hawkins7575/toozalink-sub000/metric"
	"github.com/hawkins7575/toozalink-sub000/natsclient"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "toozalink"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	logger.Info("Starting toozalink data layer",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"backend", cfg.Backend.Type)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, cliCfg, logger)
}

// loadConfig layers the optional config file, the env file and the
// environment over defaults, then applies log flag overrides.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	if cliCfg.EnvFile != "" {
		loader.AddDotEnv(cliCfg.EnvFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	return cfg, nil
}

// serve wires the backend, data layer and gateway and blocks until ctx ends.
func serve(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	if cliCfg.ServeNATS {
		stopResponder, err := startResponder(ctx, cfg, backend, logger)
		if err != nil {
			return err
		}
		defer stopResponder()
	}

	client, err := datalayer.New(ctx, datalayer.Deps{
		Config:   cfg.DataLayer,
		Backend:  backend,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create data layer: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Close data layer", "error", err)
		}
	}()

	// Prime the health verdict so the first /api/health reflects reality
	if !client.CheckHealth(ctx, true) {
		logger.Warn("Backend not reachable at startup", "backend", cfg.Backend.Type)
	}

	gw, err := gatewayhttp.NewGateway(cfg.HTTP, client,
		gatewayhttp.WithLogger(logger),
		gatewayhttp.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	logger.Info("toozalink started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := gw.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	stats := client.ConnectionStats()
	logger.Info("toozalink shutdown complete",
		"total_requests", stats.TotalRequests,
		"failed_requests", stats.FailedRequests,
		"success_rate", stats.SuccessRate)
	return nil
}

// openBackend returns the configured backend and its cleanup.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (query.Backend, func(), error) {
	switch cfg.Backend.Type {
	case config.BackendMemory:
		mem := memory.New()
		if cfg.Backend.SeedFile != "" {
			if err := mem.LoadFile(cfg.Backend.SeedFile); err != nil {
				return nil, nil, fmt.Errorf("seed memory backend: %w", err)
			}
		}
		logger.Info("Using memory backend", "tables", mem.Tables())
		return mem, func() {}, nil

	case config.BackendPostgres:
		pg, err := postgres.Open(ctx, cfg.Backend.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres backend: %w", err)
		}
		logger.Info("Using postgres backend")
		return pg, pg.Close, nil

	case config.BackendNATS:
		nc, err := connectNATS(ctx, cfg.Backend.NATS, "toozalink-client", logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using NATS backend", "subject", cfg.Backend.NATS.Subject)
		return natsrpc.NewBackend(nc, cfg.Backend.NATS.Subject), closeNATS(nc, logger), nil
	}
	return nil, nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
}

// startResponder answers requests on the configured subject from backend.
func startResponder(ctx context.Context, cfg *config.Config, backend query.Backend, logger *slog.Logger) (func(), error) {
	if cfg.Backend.Type == config.BackendNATS {
		return nil, fmt.Errorf("--serve-nats needs a local backend, not %q", cfg.Backend.Type)
	}

	nc, err := connectNATS(ctx, cfg.Backend.NATS, "toozalink-responder", logger)
	if err != nil {
		return nil, err
	}

	responder := natsrpc.NewResponder(backend, natsrpc.ResponderConfig{
		Subject:        cfg.Backend.NATS.Subject,
		Queue:          cfg.Backend.NATS.Queue,
		RequestTimeout: cfg.Backend.NATS.RequestTimeout,
	}, logger)
	if err := responder.Start(ctx, nc); err != nil {
		closeNATS(nc, logger)()
		return nil, fmt.Errorf("start responder: %w", err)
	}
	return closeNATS(nc, logger), nil
}

func connectNATS(ctx context.Context, cfg config.NATSConfig, name string, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(name),
		natsclient.WithLogger(logger),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				logger.Info("NATS connection restored", "name", name)
				return
			}
			logger.Warn("NATS connection lost", "name", name)
		}),
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}

	nc, err := natsclient.NewClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "name", name)
	if err := nc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := nc.WaitForConnection(connCtx); err != nil {
		_ = nc.Close(context.Background())
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nc, nil
}

func closeNATS(nc *natsclient.Client, logger *slog.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := nc.Close(ctx); err != nil {
			logger.Warn("Close NATS client", "error", err)
		}
	}
}
