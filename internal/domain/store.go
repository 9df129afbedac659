package domain

import (
	"context"
	"time"
)

// CatalogSource lists tradeable contracts and serves live prices. A failure
// of ListActiveContracts is the only fatal external failure in a run.
type CatalogSource interface {
	ListActiveContracts(ctx context.Context) ([]Contract, error)
	CurrentPrice(ctx context.Context, contractID string) (float64, error)
}

// ResearchBackend returns ranked textual findings for a natural-language
// query, restricted to the given recency window. Calls may fail or time out
// per query; such failures are never fatal to a run.
type ResearchBackend interface {
	Search(ctx context.Context, query string, window RecencyWindow) ([]Finding, error)
}

// PriceHistory exposes recent price movement for the informed-trading red
// flag. Implementations that have no data for a contract return ok=false and
// the check is skipped.
type PriceHistory interface {
	RecentMove(contractID string, window time.Duration) (delta float64, ok bool)
}

// ResearchCache stores serialized stage results across runs, keyed by a
// stable fingerprint. A hit short-circuits the paid call with zero cost.
type ResearchCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound on miss
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// LockManager serializes pipeline runs across processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RunStore persists sealed run records.
type RunStore interface {
	Insert(ctx context.Context, run RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	ListRecent(ctx context.Context, limit int) ([]RunRecord, error)
}

// OpportunityStore persists the opportunities of a run in rank order.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, runID string, opps []Opportunity) error
	ListByRun(ctx context.Context, runID string) ([]Opportunity, error)
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// RunArchiver moves sealed run records to cold storage.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, run RunRecord) error
}
