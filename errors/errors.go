// Package errors provides standardized error handling patterns for the data-access layer.
// It includes error classification, standard error variables, and helper functions
// for consistent error wrapping and classification across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
	// ErrorCancelled represents caller aborts and expired deadlines. Never retried.
	ErrorCancelled
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	case ErrorCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrClosed         = errors.New("component closed")

	// Cancellation errors
	ErrCancelled    = errors.New("operation cancelled")
	ErrQueryTimeout = errors.New("query timed out")

	// Concurrency slot errors
	ErrPoolTimeout = errors.New("timed out waiting for a query slot")

	// Backend errors
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")

	// Data errors
	ErrInvalidData     = errors.New("invalid data format")
	ErrInvalidQuery    = errors.New("invalid query description")
	ErrUnknownOperator = errors.New("unknown filter operator")
	ErrParsingFailed   = errors.New("parsing failed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// BatchError is returned when every item of a batch failed.
// Errs is index-aligned with the submitted batch.
type BatchError struct {
	Errs []error
}

// Error implements the error interface
func (be *BatchError) Error() string {
	if len(be.Errs) == 0 {
		return "batch failed"
	}
	return fmt.Sprintf("all %d batch items failed; first: %v", len(be.Errs), be.Errs[0])
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (be *BatchError) Unwrap() []error {
	return be.Errs
}

// IsCancelled reports whether err is a cancellation-class failure:
// an explicit abort, an expired context, or a query timeout.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrQueryTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorCancelled
	}
	return false
}

// IsPoolTimeout reports whether err came from an expired slot wait
func IsPoolTimeout(err error) bool {
	return errors.Is(err, ErrPoolTimeout)
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil || IsCancelled(err) {
		return false
	}

	// Check for classified error
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	// Check for known transient errors
	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrBackendUnavailable) {
		return true
	}

	// Check error message for common transient patterns
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
		"retry",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"fatal", "panic", "invalid config", "missing config"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrUnknownOperator) ||
		errors.Is(err, ErrParsingFailed)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsCancelled(err) {
		return ErrorCancelled
	}
	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Unclassified backend failures are treated as transient
	return ErrorTransient
}

// IsRetryable is the retry predicate for backend calls. Cancellation-class
// failures and pool timeouts are never retried, neither are invalid or fatal
// errors. Everything else is a transient backend error.
func IsRetryable(err error) bool {
	if err == nil || IsPoolTimeout(err) {
		return false
	}
	return Classify(err) == ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapCancelled wraps an error as cancellation class with context
func WrapCancelled(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorCancelled, wrappedErr, component, method, wrappedErr.Error())
}

// WrapClassified wraps err keeping the class Classify assigns to it.
// Used at layer boundaries so a cancellation stays a cancellation.
func WrapClassified(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(Classify(err), wrappedErr, component, method, wrappedErr.Error())
}
