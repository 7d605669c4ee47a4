// Package http serves the data layer over a JSON API and a stats websocket.
package http

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hawkins7575/toozalink-sub000/datalayer"
	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/gateway"
	"github.com/hawkins7575/toozalink-sub000/health"
	"github.com/hawkins7575/toozalink-sub000/metric"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// statusClientClosedRequest is reported when the caller went away first.
const statusClientClosedRequest = 499

// Service is the part of the data layer the gateway serves.
type Service interface {
	ExecuteQuery(ctx context.Context, d query.Description) ([]query.Record, error)
	ExecuteBatchQuery(ctx context.Context, ds []query.Description) ([]query.Outcome, error)
	ClearCache(prefix string) int
	CacheStats() datalayer.CacheStats
	ConnectionStats() datalayer.ConnectionStats
	ResetStats()
	CheckHealth(ctx context.Context, force bool) bool
	HealthStatus() health.Status
}

var (
	_ Service              = (*datalayer.Client)(nil)
	_ gateway.HTTPHandler = (*Gateway)(nil)
)

// getOrGenerateRequestID extracts request ID from headers or generates a new one
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Gateway serves a Service over HTTP.
type Gateway struct {
	config   gateway.Config
	service  Service
	registry *metric.MetricsRegistry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// Lifecycle state
	running  atomic.Bool
	mu       sync.Mutex
	server   *http.Server
	shutdown chan struct{}
	streams  sync.WaitGroup

	startTime time.Time

	// Metrics (atomic operations)
	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
	bytesReceived  atomic.Uint64
	bytesSent      atomic.Uint64
	streamClients  atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics serves registry on /metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) {
		g.registry = registry
	}
}

// NewGateway creates a gateway for service.
func NewGateway(config gateway.Config, service Service, opts ...Option) (*Gateway, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Gateway", "NewGateway", "config validation")
	}
	if service == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Gateway", "NewGateway",
			"data layer service is required")
	}

	g := &Gateway{
		config:   config,
		service:  service,
		logger:   slog.Default(),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "http-gateway")
	g.upgrader = websocket.Upgrader{
		CheckOrigin:     g.allowOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return g, nil
}

// Handler returns the full router with every route mounted.
func (g *Gateway) Handler() http.Handler {
	r := mux.NewRouter()
	g.RegisterHTTPHandlers("/api", r)
	return r
}

// RegisterHTTPHandlers mounts the API under prefix, plus /metrics and
// /ws/stats at the root.
func (g *Gateway) RegisterHTTPHandlers(prefix string, r *mux.Router) {
	r.Use(g.requestMiddleware)

	api := r.PathPrefix("/" + strings.Trim(prefix, "/")).Subrouter()
	api.HandleFunc("/query", g.handleQuery).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/query/batch", g.handleBatch).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/cache", g.handleCacheStats).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/cache", g.handleClearCache).Methods(http.MethodDelete)
	api.HandleFunc("/stats", g.handleStats).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stats/reset", g.handleResetStats).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	if g.registry != nil {
		r.Handle("/metrics", g.registry.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws/stats", g.handleStatsStream).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		g.writeError(w, http.StatusNotFound, "resource not found")
	})
}

// Start listens on the configured address until Stop.
func (g *Gateway) Start(_ context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Gateway", "Start",
			"gateway already running")
	}

	listener, err := net.Listen("tcp", g.config.Addr)
	if err != nil {
		g.running.Store(false)
		return errors.WrapFatal(err, "Gateway", "Start", "listen on "+g.config.Addr)
	}

	server := &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.mu.Lock()
	g.server = server
	g.startTime = time.Now()
	g.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			g.logger.Error("HTTP server stopped", "error", err)
		}
	}()

	g.logger.Info("HTTP gateway listening", "addr", listener.Addr().String())
	return nil
}

// Stop closes stats streams and shuts the server down, waiting up to timeout
// for in-flight requests.
func (g *Gateway) Stop(timeout time.Duration) error {
	if !g.running.CompareAndSwap(true, false) {
		return nil
	}
	if timeout <= 0 {
		timeout = g.config.ShutdownTimeout
	}

	g.mu.Lock()
	server := g.server
	g.server = nil
	close(g.shutdown)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := server.Shutdown(ctx)
	g.streams.Wait()

	g.logger.Info("HTTP gateway stopped",
		"requests_total", g.requestsTotal.Load(),
		"requests_failed", g.requestsFailed.Load())
	if err != nil {
		return errors.WrapTransient(err, "Gateway", "Stop", "graceful shutdown")
	}
	return nil
}

// requestMiddleware tags the request with an ID, applies CORS and counts it.
func (g *Gateway) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := getOrGenerateRequestID(r)
		w.Header().Set("X-Request-ID", id)
		g.requestsTotal.Add(1)

		if g.config.EnableCORS {
			g.applyCORS(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := g.readBody(w, r)
	if !ok {
		return
	}
	d, err := query.ValidateJSON(body)
	if err != nil {
		g.writeClassified(w, r, err)
		return
	}

	ctx, cancel := g.requestContext(r)
	defer cancel()

	rows, err := g.service.ExecuteQuery(ctx, d)
	if err != nil {
		g.writeClassified(w, r, err)
		return
	}
	if rows == nil {
		rows = []query.Record{}
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"count": len(rows),
	})
}

func (g *Gateway) handleBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := g.readBody(w, r)
	if !ok {
		return
	}
	ds, err := query.ValidateJSONBatch(body)
	if err != nil {
		g.writeClassified(w, r, err)
		return
	}

	ctx, cancel := g.requestContext(r)
	defer cancel()

	outcomes, err := g.service.ExecuteBatchQuery(ctx, ds)
	var batchErr *errors.BatchError
	if err != nil && !stderrors.As(err, &batchErr) {
		g.writeClassified(w, r, err)
		return
	}

	status := http.StatusOK
	if batchErr != nil && len(batchErr.Errs) > 0 {
		status = g.mapErrorToHTTPStatus(batchErr.Errs[0])
		g.requestsFailed.Add(1)
	}

	results := make([]map[string]any, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		item := map[string]any{}
		if o.Err != nil {
			failed++
			item["error"] = g.sanitizeError(o.Err)
			item["status"] = g.mapErrorToHTTPStatus(o.Err)
		} else {
			rows := o.Rows
			if rows == nil {
				rows = []query.Record{}
			}
			item["rows"] = rows
		}
		results[i] = item
	}
	g.writeJSON(w, status, map[string]any{
		"results": results,
		"failed":  failed,
	})
}

func (g *Gateway) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, g.service.CacheStats())
}

func (g *Gateway) handleClearCache(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	removed := g.service.ClearCache(prefix)
	g.logger.Info("Cache cleared over HTTP",
		"request_id", requestID(r.Context()), "prefix", prefix, "removed", removed)
	g.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"removed": removed,
	})
}

func (g *Gateway) handleStats(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, g.service.ConnectionStats())
}

func (g *Gateway) handleResetStats(w http.ResponseWriter, _ *http.Request) {
	g.service.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			g.writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}

	g.service.CheckHealth(r.Context(), force)
	status := g.service.HealthStatus()

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	g.writeJSON(w, code, status)
}

// requestContext bounds a query request by the configured request timeout.
func (g *Gateway) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if g.config.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), g.config.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

// readBody reads the request body up to the configured limit.
func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()

	// Read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(r.Body, g.config.MaxRequestSize+1))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if int64(len(body)) > g.config.MaxRequestSize {
		g.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", g.config.MaxRequestSize))
		return nil, false
	}
	g.bytesReceived.Add(uint64(len(body)))
	return body, true
}

// applyCORS applies CORS headers to the response
func (g *Gateway) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !g.originAllowed(origin) {
		return
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func (g *Gateway) originAllowed(origin string) bool {
	for _, allowed := range g.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// allowOrigin gates websocket upgrades. Same-origin and non-browser clients
// are always accepted.
func (g *Gateway) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !g.config.EnableCORS {
		return true
	}
	return g.originAllowed(origin)
}

// mapErrorToHTTPStatus maps error classes to HTTP status codes
func (g *Gateway) mapErrorToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	switch {
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsPoolTimeout(err):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, errors.ErrQueryTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.IsCancelled(err):
		return statusClientClosedRequest
	case errors.IsFatal(err):
		if stderrors.Is(err, errors.ErrClosed) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sanitizeError returns a safe error message for external clients. Invalid
// requests keep their detail since it only echoes what the caller sent.
func (g *Gateway) sanitizeError(err error) string {
	if err == nil {
		return "internal server error"
	}

	switch {
	case errors.IsInvalid(err):
		return "invalid request: " + err.Error()
	case errors.IsPoolTimeout(err):
		return "too many concurrent queries"
	case stderrors.Is(err, errors.ErrQueryTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return "request timeout"
	case errors.IsCancelled(err):
		return "request cancelled"
	case errors.IsFatal(err):
		if stderrors.Is(err, errors.ErrClosed) {
			return "service shutting down"
		}
		return "internal server error"
	case errors.IsTransient(err):
		return "service temporarily unavailable"
	}
	return "internal server error"
}

// writeClassified logs err in full and writes its sanitized form.
func (g *Gateway) writeClassified(w http.ResponseWriter, r *http.Request, err error) {
	status := g.mapErrorToHTTPStatus(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	g.logger.Log(r.Context(), level, "Request failed",
		"request_id", requestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"class", errors.Classify(err).String(),
		"error", err)
	g.writeError(w, status, g.sanitizeError(err))
}

// writeError writes an error response
func (g *Gateway) writeError(w http.ResponseWriter, statusCode int, message string) {
	g.requestsFailed.Add(1)
	g.writeJSON(w, statusCode, map[string]any{
		"error":  message,
		"status": statusCode,
	})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		g.logger.Error("Encode response failed", "error", err)
		statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"internal server error","status":500}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	n, _ := w.Write(data)
	g.bytesSent.Add(uint64(n))
}

// Stats reports gateway traffic counters.
type Stats struct {
	RequestsTotal  uint64        `json:"requests_total"`
	RequestsFailed uint64        `json:"requests_failed"`
	BytesReceived  uint64        `json:"bytes_received"`
	BytesSent      uint64        `json:"bytes_sent"`
	StreamClients  int64         `json:"stream_clients"`
	Uptime         time.Duration `json:"uptime"`
}

// Stats returns traffic counters since start.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	startTime := g.startTime
	g.mu.Unlock()

	var uptime time.Duration
	if !startTime.IsZero() {
		uptime = time.Since(startTime)
	}
	return Stats{
		RequestsTotal:  g.requestsTotal.Load(),
		RequestsFailed: g.requestsFailed.Load(),
		BytesReceived:  g.bytesReceived.Load(),
		BytesSent:      g.bytesSent.Load(),
		StreamClients:  g.streamClients.Load(),
		Uptime:         uptime,
	}
}
