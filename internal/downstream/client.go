// Package downstream defines the contract every table-service adapter
// implements, independent of whether requests ultimately travel over
// HTTP to a PostgREST-shaped service or directly as SQL against
// Postgres.
package downstream

import (
	"context"

	"tabular-gateway/internal/compiler"
)

// Row is one decoded result row, keyed by (possibly aliased) column name.
type Row map[string]any

// Page is the result of sending one CompiledRequest downstream: the
// decoded rows plus the exact total the service reported, or nil if
// the total could not be determined.
type Page struct {
	Rows  []Row
	Total *int
}

// Client sends a compiled request to the table service and returns
// the decoded page. Implementations must respect ctx cancellation:
// an in-flight request is abandoned promptly when ctx is done.
type Client interface {
	Fetch(ctx context.Context, req *compiler.CompiledRequest) (*Page, error)
	// Ping reports whether the downstream service is reachable, for
	// the liveness probe's downstream-reachability check.
	Ping(ctx context.Context) error
}
