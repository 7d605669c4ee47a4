// Package gateway exposes the data layer to external clients.
//
// The http subpackage serves a JSON API over gorilla/mux and streams
// connection statistics over a websocket:
//
//	POST   /api/query          one query description, returns rows
//	POST   /api/query/batch    array of descriptions, per-item outcomes
//	GET    /api/cache          cache size and keys
//	DELETE /api/cache?prefix=  drop cached results by key prefix
//	GET    /api/stats          slot occupancy, request outcomes, health
//	POST   /api/stats/reset    zero the counters
//	GET    /api/health?force=  backend verdict, probing when forced
//	GET    /metrics            Prometheus exposition
//	GET    /ws/stats           periodic stats frames
//
// Request bodies are validated against query.DescriptionSchema before they
// reach the executor. Errors are mapped from their class to an HTTP status
// and sanitized so backend addresses never reach the client:
//
//	invalid     400 Bad Request
//	pool wait   503 Service Unavailable
//	timeout     504 Gateway Timeout
//	cancelled   499 (client closed request)
//	transient   503 Service Unavailable
//	fatal       500 Internal Server Error
//
// Every response carries an X-Request-ID header, taken from the request when
// present and generated otherwise.
package gateway
