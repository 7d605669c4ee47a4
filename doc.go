// Package toozalink is the data access layer behind the toozalink stock
// market bookmark service.
//
// Every read the application makes goes through datalayer.Client, which
// adds result caching, a bounded pool of concurrent backend calls,
// retries for transient failures, backend health probing and request
// statistics on top of a pluggable query.Backend.
//
// # Layout
//
//	query/            query descriptions, cache keys, the Backend contract and the executor
//	backend/memory    in-process tables, used for tests and demos
//	backend/postgres  PostgreSQL through pgx
//	backend/natsrpc   request/reply over NATS, plus the responder that serves it
//	datalayer/        the facade: cache, slots, retry, health and stats wired together
//	gateway/http      JSON API and /ws/stats stream over the facade
//	config/           layered JSON/YAML configuration with env overrides
//	cmd/toozalink     the service binary
//
// Shared infrastructure lives in pkg/ (cache, slots, retry, stats, buffer),
// errors/ (classified errors), metric/ (Prometheus registry), health/
// (probing and status aggregation) and natsclient/ (connection management).
package toozalink
