package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestServer is a NATS server in a container, for integration tests.
type TestServer struct {
	container testcontainers.Container
	Client    *Client
	URL       string
}

// StartTestServer starts a NATS container and returns a connected client.
// The container and client are cleaned up with t.
func StartTestServer(t testing.TB) *TestServer {
	t.Helper()

	ts, err := NewTestServer(context.Background(), "2.11.7-alpine", 30*time.Second)
	if err != nil {
		t.Fatalf("Failed to start NATS test server: %v", err)
	}
	t.Cleanup(func() { _ = ts.Terminate() })
	return ts
}

// NewTestServer starts a NATS container for use in TestMain.
func NewTestServer(ctx context.Context, version string, startTimeout time.Duration) (*TestServer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:" + version,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	client, err := NewClient(url, WithTimeout(5*time.Second), WithMaxReconnects(0))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &TestServer{container: container, Client: client, URL: url}, nil
}

// Terminate closes the client and stops the container.
func (ts *TestServer) Terminate() error {
	_ = ts.Client.Close(context.Background())
	return ts.container.Terminate(context.Background())
}
