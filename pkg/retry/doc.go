// Package retry provides bounded retry logic for backend calls.
//
// # Overview
//
// Do runs a function up to MaxAttempts times in total, waiting Delay between
// attempts. With the default Multiplier of 1 the wait is fixed; a larger
// multiplier grows it up to MaxDelay.
//
//   - Do: run a function with retry
//   - DoWithResult: same, returning a value
//
// # Deciding what to retry
//
// Context errors are never retried, neither is anything wrapped with
// NonRetryable. Beyond that, Config.Retryable decides. The data layer plugs in
// errors.IsRetryable so query timeouts and slot-wait timeouts are surfaced
// immediately:
//
//	cfg := retry.DefaultConfig()
//	cfg.Retryable = errors.IsRetryable
//	rows, err := retry.DoWithResult(ctx, cfg, func() ([]query.Record, error) {
//	    return builder.Run(ctx)
//	})
//
// Whether the predicate rejects a failure or the attempts run out, the last
// failure is returned as is. OnRetry is the place to log earlier ones.
//
// # Context Cancellation
//
// Cancelling ctx during a wait stops immediately with an error wrapping
// ctx.Err().
package retry
