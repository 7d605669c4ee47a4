package natsclient

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

const unreachableURL = "nats://127.0.0.1:1"

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusCircuitOpen, "circuit_open"},
		{ConnectionStatus(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Nil(t, c.Conn())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, int32(5), c.circuitThreshold)
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient(unreachableURL)
	require.NoError(t, err)

	_, err = c.Request(context.Background(), "toozalink.query", []byte("{}"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrNotConnected))
	assert.True(t, errors.IsTransient(err))

	assert.ErrorIs(t, c.Ping(context.Background()), ErrNotConnected)

	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	err = c.QueueSubscribe(context.Background(), "s", "q", time.Second, func(context.Context, []byte) []byte { return nil })
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_CircuitOpensAfterThreshold(t *testing.T) {
	c, err := NewClient(unreachableURL,
		WithCircuitBreakerThreshold(2),
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err := c.Connect(context.Background())
		require.Error(t, err)
		assert.False(t, stderrors.Is(err, ErrCircuitOpen), "attempt %d dials", i+1)
	}
	assert.Equal(t, StatusCircuitOpen, c.Status())

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrCircuitOpen))

	status := c.GetStatus()
	assert.Equal(t, int32(2), status.FailureCount)
	assert.False(t, status.LastFailureTime.IsZero())
}

func TestClient_CloseIdempotent(t *testing.T) {
	c, err := NewClient(unreachableURL, WithCredentials("user", "secret"), WithToken("tok"))
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Empty(t, c.password)
	assert.Empty(t, c.token)

	err = c.Connect(context.Background())
	assert.True(t, errors.IsFatal(err))
}

func TestNewClient_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"max reconnects", WithMaxReconnects(-2)},
		{"reconnect wait", WithReconnectWait(0)},
		{"dial timeout", WithTimeout(-time.Second)},
		{"circuit threshold", WithCircuitBreakerThreshold(0)},
		{"password without user", WithCredentials("", "secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(unreachableURL, tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig))
		})
	}
}
