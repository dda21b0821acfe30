package shardset

import "context"

// Row is one row of a shard's raw result, keyed by column name. The engine
// passes rows through to the caller's Handler untouched.
type Row map[string]any

// DataConnection is one shard endpoint as the fan-out engine sees it: a
// single invocation primitive plus a human-readable description for logs.
//
// Implementations must honor ctx and unwind as soon as it fires, and must
// return cancellation as an error satisfying errors.Is(err, context.Canceled)
// (or context.DeadlineExceeded) so the engine can tell an expected
// cancellation apart from a real failure. Retries, pooling and transactions
// are the implementation's own concern; the engine never retries.
type DataConnection interface {
	// Invoke executes the named stored procedure with the given parameters
	// and returns the raw result rows. When singleRow is true the caller
	// only needs the first row and the implementation may stop reading
	// after it.
	Invoke(ctx context.Context, procedure string, params Parameters, singleRow bool) ([]Row, error)

	// Description identifies the endpoint for diagnostics, e.g. "redis
	// localhost:6379" or a redacted DSN. Never used for routing.
	Description() string

	// Close releases the endpoint's resources.
	Close() error
}

// Pinger is optionally implemented by DataConnections that can cheaply probe
// endpoint health. ShardSet.Ping skips connections that do not implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}
