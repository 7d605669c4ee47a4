// Package errors provides standardized error handling for the data-access layer.
//
// # Overview
//
// Errors are sorted into four classes that drive retry decisions:
//
//   - Transient: backend failures that may succeed on another attempt (retried)
//   - Invalid: malformed query descriptions, unknown operators (not retried)
//   - Fatal: broken configuration (not retried, surfaced at startup)
//   - Cancelled: caller aborts, expired contexts, query timeouts (never retried)
//
// Unclassified errors coming back from a backend are treated as transient,
// matching the contract that a generic backend failure is retried up to the
// attempt ceiling.
//
// # Wrapping
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
//	errors.WrapTransient(err, "Executor", "Execute", "backend call")
//	errors.WrapInvalid(err, "query", "Validate", "filter operator")
//	errors.WrapCancelled(err, "slots", "Acquire", "queue wait")
//	errors.WrapClassified(err, "natsrpc", "Run", "request")  // keeps Classify(err)
//
// # Retry predicate
//
// IsRetryable is what the executor hands to pkg/retry. It rejects
// cancellation-class failures and ErrPoolTimeout outright:
//
//	cfg := retry.Config{MaxAttempts: 3, Delay: time.Second, Retryable: errors.IsRetryable}
//
// # Batches
//
// BatchError carries every per-item failure when a whole batch failed. It
// implements Unwrap() []error, so errors.Is sees each member:
//
//	var be *errors.BatchError
//	if errors.As(err, &be) {
//	    for i, itemErr := range be.Errs { ... }
//	}
package errors
