// Package natsclient manages a NATS connection for request/reply traffic.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int32

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Status holds runtime status information for the client
type Status struct {
	Status          ConnectionStatus `json:"status"`
	FailureCount    int32            `json:"failure_count"`
	LastFailureTime time.Time        `json:"last_failure_time"`
	Reconnects      int32            `json:"reconnects"`
	RTT             time.Duration    `json:"rtt"`
}

// Client owns one NATS connection. Connect attempts that keep failing open a
// circuit: further attempts fail fast with ErrCircuitOpen until the backoff
// has elapsed, and the backoff doubles each time the circuit reopens.
type Client struct {
	url    string
	status atomic.Int32
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	failures         atomic.Int32
	reconnects       atomic.Int32
	circuitThreshold int32
	circuitMu        sync.Mutex
	circuitFailures  int32
	circuitUntil     time.Time
	backoff          time.Duration
	maxBackoff       time.Duration
	lastFailure      time.Time

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	username   string
	password   string
	token      string
	clientName string

	onHealthChange func(bool)

	closed atomic.Bool
}

// NewClient creates a client for url. Nothing is dialled until Connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		circuitThreshold: 5,
		backoff:          time.Second,
		maxBackoff:       time.Minute,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient", "url", url)
	c.setStatus(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
}

// IsHealthy returns true if the connection is up
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Conn returns the underlying connection, nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// GetStatus returns current status information
func (c *Client) GetStatus() Status {
	c.circuitMu.Lock()
	lastFailure := c.lastFailure
	c.circuitMu.Unlock()

	s := Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: lastFailure,
		Reconnects:      c.reconnects.Load(),
	}
	if rtt, err := c.RTT(); err == nil {
		s.RTT = rtt
	}
	return s
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// Connect dials the server. It fails fast while the circuit is open.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapFatal(errors.ErrClosed, "Client", "Connect", "client closed")
	}
	if !c.circuitAllows() {
		return errors.WrapTransient(ErrCircuitOpen, "Client", "Connect", "circuit check")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS")

	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		if err != nil {
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.recordFailure()
			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		return errors.WrapCancelled(ctx.Err(), "Client", "Connect", "establish connection")
	}

	c.resetCircuit()
	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS")
	c.notifyHealth(true)
	return nil
}

func (c *Client) circuitAllows() bool {
	c.circuitMu.Lock()
	defer c.circuitMu.Unlock()
	if c.circuitUntil.IsZero() {
		return true
	}
	if time.Now().Before(c.circuitUntil) {
		return false
	}
	c.circuitUntil = time.Time{}
	c.setStatus(StatusDisconnected)
	return true
}

func (c *Client) recordFailure() {
	c.failures.Add(1)

	c.circuitMu.Lock()
	defer c.circuitMu.Unlock()
	c.lastFailure = time.Now()
	c.circuitFailures++
	if c.circuitFailures < c.circuitThreshold {
		c.setStatus(StatusDisconnected)
		return
	}

	c.circuitUntil = time.Now().Add(c.backoff)
	c.logger.Warn("Circuit breaker opened", "failures", c.circuitFailures, "backoff", c.backoff)
	c.circuitFailures = 0
	c.backoff *= 2
	if c.backoff > c.maxBackoff {
		c.backoff = c.maxBackoff
	}
	c.setStatus(StatusCircuitOpen)
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitMu.Lock()
	c.circuitFailures = 0
	c.circuitUntil = time.Time{}
	c.backoff = time.Second
	c.lastFailure = time.Time{}
	c.circuitMu.Unlock()
}

// WaitForConnection blocks until the client is connected or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapCancelled(ctx.Err(), "Client", "WaitForConnection", "wait")
		case <-ticker.C:
		}
	}
}

// RTT returns the round-trip time to the server
func (c *Client) RTT() (time.Duration, error) {
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Ping flushes the connection, confirming the server answers within ctx.
func (c *Client) Ping(ctx context.Context) error {
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Ping", "check connection")
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return errors.WrapClassified(err, "Client", "Ping", "flush")
	}
	return nil
}

// Request sends data on subject and waits for the reply until ctx ends.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "Request", "check connection")
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapCancelled(ctx.Err(), "Client", "Request", subject)
		}
		if stderrors.Is(err, nats.ErrNoResponders) {
			return nil, errors.WrapTransient(errors.ErrBackendUnavailable, "Client", "Request", subject)
		}
		return nil, errors.WrapTransient(err, "Client", "Request", subject)
	}
	return msg.Data, nil
}

// QueueSubscribe registers handler for requests on subject within queue
// group. The handler's return value is sent as the reply. Each request gets a
// context derived from ctx bounded by timeout.
func (c *Client) QueueSubscribe(ctx context.Context, subject, queue string, timeout time.Duration,
	handler func(context.Context, []byte) []byte,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "QueueSubscribe", "check connection")
	}

	sub, err := c.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		reply := handler(msgCtx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Error("Failed to send reply", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "QueueSubscribe", subject)
	}

	c.subs = append(c.subs, sub)
	return nil
}

// Close unsubscribes, drains and closes the connection. Safe to call more
// than once.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}
	c.subs = nil

	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drained := make(chan error, 1)
		conn := c.conn
		go func() { drained <- conn.Drain() }()

		select {
		case err := <-drained:
			if err != nil {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain connection"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "drain connection"))
		}

		conn.Close()
		c.conn = nil
	}

	c.username, c.password, c.token = "", "", ""
	c.setStatus(StatusDisconnected)

	return stderrors.Join(errs...)
}

func (c *Client) notifyHealth(healthy bool) {
	c.mu.RLock()
	fn := c.onHealthChange
	c.mu.RUnlock()
	if fn != nil {
		go fn(healthy)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("Disconnected from NATS", "error", err)
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.reconnects.Add(1)
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Reconnected to NATS")
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
}

func (c *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	c.logger.Error("NATS error", "error", err)
}
