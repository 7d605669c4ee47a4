package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// ClientOption configures a Client. Options reject out-of-range values so a
// bad config fails NewClient instead of the first Connect.
type ClientOption func(*Client) error

func invalidOption(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// WithMaxReconnects bounds reconnect attempts after a lost connection; -1
// retries forever and 0 gives up at the first disconnect.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		if n < -1 {
			return invalidOption("max reconnects %d below -1", n)
		}
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnect attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return invalidOption("reconnect wait %v must be positive", d)
		}
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return invalidOption("dial timeout %v must be positive", d)
		}
		c.timeout = d
		return nil
	}
}

// WithCircuitBreakerThreshold sets how many failed connects in a row open the
// circuit.
func WithCircuitBreakerThreshold(threshold int32) ClientOption {
	return func(c *Client) error {
		if threshold < 1 {
			return invalidOption("circuit threshold %d must be at least 1", threshold)
		}
		c.circuitThreshold = threshold
		return nil
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithHealthChangeCallback is called with the new state whenever the
// connection is lost or regained.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithCredentials authenticates with a username and password.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		if username == "" {
			return invalidOption("username required with a password")
		}
		c.username, c.password = username, password
		return nil
	}
}

// WithToken authenticates with a token.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithName sets the connection name reported to the server, which shows up
// in the server's connz monitoring.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}
