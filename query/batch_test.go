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

func failingOn(resources ...string) func(context.Context, *fakeBuilder) (Result, error) {
	bad := make(map[string]bool, len(resources))
	for _, r := range resources {
		bad[r] = true
	}
	return func(_ context.Context, b *fakeBuilder) (Result, error) {
		if bad[b.resource] {
			return Result{}, errors.ErrInvalidData
		}
		return rowsFor(b.resource), nil
	}
}

func TestExecuteAll_PartialFailure(t *testing.T) {
	backend := &fakeBackend{handler: failingOn("board")}
	e := newTestExecutor(t, backend, execOptions{})

	outcomes, err := e.ExecuteAll(context.Background(), []Description{
		{Resource: "sites"},
		{Resource: "board"},
		{Resource: "channels"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "sites", outcomes[0].Rows[0]["resource"])

	assert.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Rows)

	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, "channels", outcomes[2].Rows[0]["resource"])
}

func TestExecuteAll_AllFail(t *testing.T) {
	backend := &fakeBackend{handler: failingOn("sites", "board")}
	e := newTestExecutor(t, backend, execOptions{})

	outcomes, err := e.ExecuteAll(context.Background(), []Description{
		{Resource: "sites"},
		{Resource: "board"},
	})
	require.Error(t, err)

	var batchErr *errors.BatchError
	require.True(t, stderrors.As(err, &batchErr))
	assert.Len(t, batchErr.Errs, 2)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidData))
	assert.Len(t, outcomes, 2)
}

func TestExecuteAll_Empty(t *testing.T) {
	e := newTestExecutor(t, &fakeBackend{}, execOptions{})

	outcomes, err := e.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestExecuteAll_RunsConcurrently(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{handler: blockUntil(release)}
	e := newTestExecutor(t, backend, execOptions{config: Config{Timeout: time.Minute}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.ExecuteAll(context.Background(), []Description{
			{Resource: "a"}, {Resource: "b"}, {Resource: "c"},
		})
	}()

	assert.Eventually(t, func() bool { return backend.calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)
	<-done
}
