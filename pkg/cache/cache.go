// Package cache provides a generic, thread-safe result cache with time-to-live
// expiry and insertion-order eviction.
//
// Statistics are always collected. Prometheus export is opt-in through
// WithMetrics.
package cache

import (
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// Cache stores values of type V under non-empty string keys.
type Cache[V any] interface {
	// Get returns the live value for key. Expired entries read as absent.
	Get(key string) (V, bool)

	// Set stores value under key and reports whether the key was new.
	// Overwriting keeps the key's original insertion position.
	Set(key string, value V) (bool, error)

	// Delete removes key and reports whether it was present.
	Delete(key string) (bool, error)

	// DeleteFunc removes every key matching pred and returns the count.
	DeleteFunc(pred func(key string) bool) int

	// DeletePrefix removes every key starting with prefix. An empty prefix
	// removes everything.
	DeletePrefix(prefix string) int

	Clear() error

	Size() int

	// Keys returns the live keys, oldest insertion first.
	Keys() []string

	// Stats returns the cache counters. Never nil.
	Stats() *Statistics

	// Close drops every entry. The cache must not be used afterwards.
	Close() error
}

// EvictCallback receives entries removed by capacity or expiry.
type EvictCallback[V any] func(key string, value V)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
