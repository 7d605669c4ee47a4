package query

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

func slowResource(name string) func(context.Context, *fakeBuilder) (Result, error) {
	return func(ctx context.Context, b *fakeBuilder) (Result, error) {
		if b.resource != name {
			return rowsFor(b.resource), nil
		}
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
}

func TestSession_NewQueryCancelsPrevious(t *testing.T) {
	backend := &fakeBackend{handler: slowResource("slow")}
	e := newTestExecutor(t, backend, execOptions{config: Config{Timeout: time.Minute}})
	s := e.NewSession()

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Execute(context.Background(), Description{Resource: "slow"})
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	rows, err := s.Execute(context.Background(), Description{Resource: "quotes"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	select {
	case err := <-firstErr:
		require.Error(t, err)
		assert.True(t, errors.IsCancelled(err))
		assert.True(t, stderrors.Is(err, errors.ErrCancelled))
	case <-time.After(time.Second):
		t.Fatal("previous query was not cancelled")
	}
	assert.Equal(t, int32(2), backend.calls.Load(), "cancelled query is not retried")
}

func TestSession_IndependentSessions(t *testing.T) {
	backend := &fakeBackend{handler: slowResource("slow")}
	e := newTestExecutor(t, backend, execOptions{config: Config{Timeout: time.Minute}})
	a, b := e.NewSession(), e.NewSession()
	assert.NotEqual(t, a.ID(), b.ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aErr := make(chan error, 1)
	go func() {
		_, err := a.Execute(ctx, Description{Resource: "slow"})
		aErr <- err
	}()
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := b.Execute(context.Background(), Description{Resource: "quotes"})
	require.NoError(t, err)

	select {
	case <-aErr:
		t.Fatal("query on another session must not be cancelled")
	case <-time.After(50 * time.Millisecond):
	}

	a.Cancel()
	select {
	case err := <-aErr:
		assert.True(t, errors.IsCancelled(err))
	case <-time.After(time.Second):
		t.Fatal("Cancel did not abort the in-flight query")
	}

	a.Cancel()
}
