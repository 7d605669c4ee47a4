// Package natsclient manages a NATS connection for request/reply traffic.
//
// A Client wraps one *nats.Conn with connection status tracking, reconnect
// handling and a connect circuit breaker. After a run of failed Connect
// attempts (default 5) the circuit opens and Connect fails fast with
// ErrCircuitOpen until the backoff elapses; the backoff doubles each time the
// circuit reopens, up to the configured maximum.
//
// Requests and replies:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("toozalink"),
//	    natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	reply, err := client.Request(ctx, "toozalink.query", payload)
//
// Serving requests in a queue group:
//
//	err = client.QueueSubscribe(ctx, "toozalink.query", "responders", 10*time.Second,
//	    func(ctx context.Context, data []byte) []byte {
//	        return handle(ctx, data)
//	    })
//
// Errors are classified with the errors package: a missing connection or a
// subject without responders is transient, an expired context is a
// cancellation.
//
// StartTestServer runs a NATS container through testcontainers for
// integration tests.
package natsclient
