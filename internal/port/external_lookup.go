package port

import (
	"context"
	"encoding/json"
	"time"

	"taxatlas/internal/domain"
)

// LookupResult is one raw response from an external provider adapter.
type LookupResult struct {
	Response json.RawMessage
	Status   domain.QueryStatus
	Latency  time.Duration
}

// ExternalLookup is the injected provider adapter. The engine never calls a
// network boundary directly; it wraps this function with caching. The
// adapter owns its own timeout/cancellation behavior beyond honoring ctx.
type ExternalLookup func(ctx context.Context, provider, queryType string, params map[string]string) (*LookupResult, error)
