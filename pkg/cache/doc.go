// Package cache holds query results for a short, fixed time.
//
// # Overview
//
// Expiring is the one implementation. Entries are valid while
// now - storedAt < ttl; an expired entry is dropped the next time it is looked
// up rather than by a background sweeper. The entry count is capped, and when
// an insert exceeds the cap the oldest-inserted entry goes. Overwriting a key
// refreshes its timestamp but does not move it in the insertion order.
//
//	results, err := cache.NewExpiring[[]query.Record](5*time.Minute, 50,
//		cache.WithMetrics[[]query.Record](registry, "query_results"),
//	)
//
//	results.Set(key, rows)
//	rows, ok := results.Get(key)
//	results.DeletePrefix("bookmarks:")
//
// # Time
//
// WithClock swaps time.Now for another source so expiry can be tested without
// sleeping.
//
// # Observability
//
// Statistics (hits, misses, sets, deletes, evictions, size) are always
// collected. WithMetrics additionally exports them to Prometheus under
// toozalink_cache_* with a component label.
//
// # Configuration
//
// Config accepts "ttl" as a duration string or integer nanoseconds:
//
//	{"enabled": true, "max_size": 50, "ttl": "5m"}
//
// A disabled Config yields a no-op cache that always misses.
package cache
