// Package retry provides bounded retry logic for backend calls
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts int           // Total attempts including the first (<= 0 means 1)
	Delay       time.Duration // Wait between attempts
	MaxDelay    time.Duration // Upper bound when Multiplier > 1
	Multiplier  float64       // 1 keeps the delay fixed, > 1 grows it
	AddJitter   bool          // Add up to 25% randomness to each wait

	// Retryable decides whether a failed attempt is tried again.
	// Nil retries everything except NonRetryable and context errors.
	Retryable func(error) bool

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns the data-layer defaults: three attempts, one second apart
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Delay:       time.Second,
		MaxDelay:    time.Second,
		Multiplier:  1.0,
	}
}

// Quick returns the startup profile: ten attempts with backoff growing from
// 50ms to one second.
func Quick() Config {
	return Config{
		MaxAttempts: 10,
		Delay:       50 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  1.5,
		AddJitter:   true,
	}
}

// Validate checks the configuration for negative or inconsistent values
func (c Config) Validate() error {
	if c.Delay < 0 {
		return errors.New("retry: Delay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if c.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.Delay {
		return errors.New("retry: MaxDelay must be >= Delay")
	}
	return nil
}

func (c Config) shouldRetry(ctx context.Context, err error) bool {
	if IsNonRetryable(err) {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.Retryable != nil {
		return c.Retryable(err)
	}
	return true
}

// Do executes fn until it succeeds, the attempts run out, or a failure is
// not retryable. The last failure is returned as fn produced it.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 1.0
	}
	// Prevent overflow with extremely large multipliers
	if cfg.Multiplier > 1000 {
		cfg.Multiplier = 1000
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = cfg.Delay
	}

	var lastErr error
	delay := cfg.Delay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.shouldRetry(ctx, err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		sleepDuration := delay
		if cfg.AddJitter && delay >= 4 {
			randMu.Lock()
			jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
			randMu.Unlock()
			sleepDuration = delay + jitter
		}

		if sleepDuration > 0 {
			timer := time.NewTimer(sleepDuration)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
			case <-timer.C:
			}
		}

		nextDelay := float64(delay) * cfg.Multiplier
		if nextDelay > float64(cfg.MaxDelay) || nextDelay > float64(time.Duration(1<<63-1)) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(nextDelay)
		}
	}

	return lastErr
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
