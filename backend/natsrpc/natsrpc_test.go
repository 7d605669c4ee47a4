package natsrpc

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkins7575/toozalink-sub000/backend/memory"
	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// loopback hands requests straight to a Responder.
type loopback struct {
	responder *Responder
	subjects  []string
	pingErr   error
	reqErr    error
	raw       []byte
}

func (l *loopback) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	l.subjects = append(l.subjects, subject)
	if l.reqErr != nil {
		return nil, l.reqErr
	}
	if l.raw != nil {
		return l.raw, nil
	}
	return l.responder.Handle(ctx, data), nil
}

func (l *loopback) Ping(context.Context) error { return l.pingErr }

func newLoopback(t *testing.T) (*loopback, *memory.Backend) {
	t.Helper()
	mem := memory.New()
	mem.Insert("board",
		query.Record{"id": 1, "title": "Rate cut odds", "votes": 12},
		query.Record{"id": 2, "title": "Earnings week", "votes": 4},
	)
	return &loopback{responder: NewResponder(mem, ResponderConfig{}, nil)}, mem
}

func TestRoundTrip(t *testing.T) {
	lb, _ := newLoopback(t)
	b := NewBackend(lb, "")

	res, err := b.Query("board", "id,title").
		Filter("votes", query.Gte, 10).
		OrderBy("id", true).
		Limit(5).
		Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Rate cut odds", res.Rows[0]["title"])
	assert.NotContains(t, res.Rows[0], "votes")
	assert.Equal(t, []string{DefaultSubject}, lb.subjects)
}

func TestRemoteErrorsKeepClass(t *testing.T) {
	lb, mem := newLoopback(t)
	b := NewBackend(lb, "custom.subject")

	_, err := b.Query("missing", "*").Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, errors.IsRetryable(err))

	mem.FailNext(1, errors.ErrConnectionLost)
	_, err = b.Query("board", "*").Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.True(t, stderrors.Is(err, errors.ErrBackendUnavailable))
}

func TestResponderRejectsBadRequests(t *testing.T) {
	lb, _ := newLoopback(t)

	for _, payload := range []string{
		`not json`,
		`{"description": {"fields": "*"}}`,
		`{"description": {"resource": "board", "filters": [{"field": "x", "operator": "like"}]}}`,
	} {
		var reply Reply
		require.NoError(t, json.Unmarshal(lb.responder.Handle(context.Background(), []byte(payload)), &reply))
		assert.NotEmpty(t, reply.Error, payload)
		assert.Equal(t, errors.ErrorInvalid.String(), reply.Class, payload)
	}
}

func TestTransportErrors(t *testing.T) {
	lb, _ := newLoopback(t)
	b := NewBackend(lb, "")

	lb.reqErr = errors.WrapCancelled(context.DeadlineExceeded, "Client", "Request", DefaultSubject)
	_, err := b.Query("board", "*").Run(context.Background())
	assert.True(t, errors.IsCancelled(err))

	lb.reqErr = nil
	lb.raw = []byte(`<html>`)
	_, err = b.Query("board", "*").Run(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidData))

	lb.pingErr = errors.ErrConnectionLost
	assert.ErrorIs(t, b.Ping(context.Background()), errors.ErrConnectionLost)
}

func TestExecutorOverNATS(t *testing.T) {
	lb, _ := newLoopback(t)
	e, err := query.NewExecutor(query.Deps{Backend: NewBackend(lb, "")})
	require.NoError(t, err)

	rows, err := e.Execute(context.Background(), query.Description{
		Resource: "board",
		Filters:  []query.Filter{{Field: "title", Operator: query.Contains, Value: "earnings"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0]["id"])
}
