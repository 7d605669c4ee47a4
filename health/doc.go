// Package health tracks whether the query backend is reachable.
//
// # Prober
//
// A Prober wraps a ProbeFunc (usually a backend Ping or a one-row query) and
// keeps a verdict: healthy until FailureThreshold probes in a row fail,
// healthy again after the next success. Check reuses a verdict younger than
// the check interval unless forced:
//
//	prober := health.NewProber(backend.Ping, health.ProberConfig{},
//		health.WithRecorder(collector),
//		health.WithMetrics(registry),
//	)
//	if err := prober.Start(ctx); err != nil { ... }
//	defer prober.Stop()
//
//	healthy := prober.Check(ctx, false)
//
// Probe failures never reach query callers; they only move the verdict.
//
// # Status
//
// Status is the reporting shape used by the HTTP gateway. FromProbe converts a
// prober snapshot, sanitizing the last error so URLs, paths, addresses and
// credentials do not leak. Aggregate folds several statuses into one:
// unhealthy wins over degraded, degraded over healthy.
package health
