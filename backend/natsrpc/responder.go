package natsrpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/natsclient"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// Responder defaults
const (
	DefaultQueue          = "toozalink-responders"
	DefaultRequestTimeout = 10 * time.Second
)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Subject        string
	Queue          string
	RequestTimeout time.Duration
}

// Responder answers natsrpc requests from a local backend.
type Responder struct {
	backend query.Backend
	config  ResponderConfig
	logger  *slog.Logger
}

// NewResponder creates a responder serving backend.
func NewResponder(backend query.Backend, config ResponderConfig, logger *slog.Logger) *Responder {
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		backend: backend,
		config:  config,
		logger:  logger.With("component", "natsrpc-responder", "subject", config.Subject),
	}
}

// Start subscribes on client. Requests are served until ctx ends or the
// client is closed.
func (r *Responder) Start(ctx context.Context, client *natsclient.Client) error {
	if err := client.QueueSubscribe(ctx, r.config.Subject, r.config.Queue, r.config.RequestTimeout, r.Handle); err != nil {
		return errors.Wrap(err, "Responder", "Start", "subscribe")
	}
	r.logger.Info("Responder started", "queue", r.config.Queue)
	return nil
}

// Handle serves one request payload and returns the reply payload.
func (r *Responder) Handle(ctx context.Context, data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return r.fail(errors.WrapInvalid(err, "Responder", "Handle", "decode request"))
	}

	d, err := query.ValidateJSON(req.Description)
	if err != nil {
		return r.fail(err)
	}

	builder, err := query.Lower(r.backend, d)
	if err != nil {
		return r.fail(err)
	}
	res, err := builder.Run(ctx)
	if err != nil {
		return r.fail(err)
	}

	out, err := json.Marshal(Reply{Rows: res.Rows})
	if err != nil {
		return r.fail(errors.WrapInvalid(err, "Responder", "Handle", "encode rows"))
	}
	return out
}

func (r *Responder) fail(err error) []byte {
	class := errors.Classify(err)
	r.logger.Debug("Request failed", "class", class.String(), "error", err)
	out, _ := json.Marshal(Reply{Error: err.Error(), Class: class.String()})
	return out
}
