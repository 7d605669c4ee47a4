// Package natsrpc carries query descriptions over NATS request/reply.
//
// Backend is the client side: it implements query.Backend by sending each
// lowered description as a request and decoding the reply. Responder is the
// server side: it serves requests from any query.Backend.
//
// Request body:
//
//	{"description": {"resource": "sites", "filters": [...], ...}}
//
// Reply body, one of:
//
//	{"rows": [{...}, ...]}
//	{"error": "message", "class": "invalid"}
package natsrpc

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// DefaultSubject is the request subject when none is configured.
const DefaultSubject = "toozalink.query"

// Request is the wire request.
type Request struct {
	Description json.RawMessage `json:"description"`
}

// Reply is the wire reply.
type Reply struct {
	Rows  []query.Record `json:"rows,omitempty"`
	Error string         `json:"error,omitempty"`
	Class string         `json:"class,omitempty"`
}

// Requester sends one request and returns the reply payload.
// *natsclient.Client implements it.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Ping(ctx context.Context) error
}

var (
	_ query.Backend = (*Backend)(nil)
	_ query.Pinger  = (*Backend)(nil)
)

// Backend forwards queries to a Responder.
type Backend struct {
	requester Requester
	subject   string
}

// NewBackend creates a backend sending on subject (DefaultSubject when empty).
func NewBackend(r Requester, subject string) *Backend {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Backend{requester: r, subject: subject}
}

// Ping checks the NATS connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.requester.Ping(ctx)
}

// Query starts a remote read of resource.
func (b *Backend) Query(resource, fields string) query.Builder {
	return &builder{backend: b, desc: query.Description{Resource: resource, Fields: fields}}
}

type builder struct {
	backend *Backend
	desc    query.Description
}

func (q *builder) Filter(field string, op query.Operator, value any) query.Builder {
	q.desc.Filters = append(q.desc.Filters, query.Filter{Field: field, Operator: op, Value: value})
	return q
}

func (q *builder) OrderBy(field string, ascending bool) query.Builder {
	q.desc.OrderBy = &query.Order{Field: field, Ascending: ascending}
	return q
}

func (q *builder) Limit(n int) query.Builder {
	q.desc.Limit = &n
	return q
}

func (q *builder) Run(ctx context.Context) (query.Result, error) {
	desc, err := json.Marshal(q.desc)
	if err != nil {
		return query.Result{}, errors.WrapInvalid(err, "natsrpc", "Run", "encode description")
	}
	payload, err := json.Marshal(Request{Description: desc})
	if err != nil {
		return query.Result{}, errors.WrapInvalid(err, "natsrpc", "Run", "encode request")
	}

	data, err := q.backend.requester.Request(ctx, q.backend.subject, payload)
	if err != nil {
		return query.Result{}, err
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return query.Result{}, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrInvalidData, err),
			"natsrpc", "Run", "decode reply")
	}
	if reply.Error != "" {
		return query.Result{}, remoteError(reply)
	}
	return query.Result{Rows: reply.Rows}, nil
}

// remoteError rebuilds a classified error from a reply. A responder that gave
// up on its own deadline is reported as transient: the caller's context is
// still live and the call may be retried.
func remoteError(r Reply) error {
	const action = "remote query"
	switch r.Class {
	case errors.ErrorInvalid.String():
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidQuery, r.Error), "natsrpc", "Run", action)
	case errors.ErrorFatal.String():
		return errors.WrapFatal(stderrors.New(r.Error), "natsrpc", "Run", action)
	default:
		return errors.WrapTransient(fmt.Errorf("%w: %s", errors.ErrBackendUnavailable, r.Error), "natsrpc", "Run", action)
	}
}
