// Package governor bounds research spend and deduplicates paid work. Every
// stage consults the Governor before calling a paid external service: Reserve
// holds budget for a call, Commit records the actual cost, Release frees a
// reservation whose call never happened. Cached results short-circuit the
// calling stage with zero additional cost.
package governor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgescout/edgescout/internal/domain"
)

// Governor tracks cumulative spend against a per-day ceiling and fronts the
// cross-run research cache. All methods are safe for concurrent use; the
// spend counter is the only state shared across pipeline workers.
type Governor struct {
	mu        sync.Mutex
	ceiling   decimal.Decimal
	committed decimal.Decimal
	reserved  map[string]decimal.Decimal

	cache   domain.ResearchCache // may be nil (cacheless runs)
	ttl     time.Duration
	observe func(hit bool) // may be nil
	logger  *slog.Logger
}

// New creates a Governor with the given daily ceiling (in cost units), an
// optional research cache, and the cache entry TTL.
func New(ceiling float64, cache domain.ResearchCache, ttl time.Duration, logger *slog.Logger) *Governor {
	return &Governor{
		ceiling:  decimal.NewFromFloat(ceiling),
		reserved: make(map[string]decimal.Decimal),
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "governor")),
	}
}

// WithCacheObserver registers a callback invoked with the outcome of every
// cache lookup, hit or miss. Used to feed cache metrics.
func (g *Governor) WithCacheObserver(fn func(hit bool)) *Governor {
	g.observe = fn
	return g
}

// Reserve holds estimatedCost of budget under key. It returns
// domain.ErrBudgetExceeded when committed spend plus all pending reservations
// plus estimatedCost would exceed the ceiling. Two concurrent reservations
// can never jointly overshoot: the check and the hold happen under one lock.
func (g *Governor) Reserve(key string, estimatedCost float64) error {
	est := decimal.NewFromFloat(estimatedCost)

	g.mu.Lock()
	defer g.mu.Unlock()

	pending := decimal.Zero
	for _, r := range g.reserved {
		pending = pending.Add(r)
	}

	if g.committed.Add(pending).Add(est).GreaterThan(g.ceiling) {
		return fmt.Errorf("governor: reserve %s (%s of %s spent): %w",
			key, g.committed.StringFixed(4), g.ceiling.StringFixed(4), domain.ErrBudgetExceeded)
	}

	g.reserved[key] = est
	return nil
}

// Commit replaces the reservation under key with the actual cost, updating
// cumulative spend. Committing without a prior reservation is allowed and
// simply records the cost.
func (g *Governor) Commit(key string, actualCost float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.reserved, key)
	g.committed = g.committed.Add(decimal.NewFromFloat(actualCost))
}

// Release frees the reservation under key without recording spend. Call it
// when a reserved call failed or was short-circuited by the cache.
func (g *Governor) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reserved, key)
}

// Spent returns the cumulative committed cost.
func (g *Governor) Spent() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, _ := g.committed.Float64()
	return f
}

// Exhausted reports whether no further call of the given estimated cost could
// be reserved.
func (g *Governor) Exhausted(estimatedCost float64) bool {
	est := decimal.NewFromFloat(estimatedCost)

	g.mu.Lock()
	defer g.mu.Unlock()

	pending := decimal.Zero
	for _, r := range g.reserved {
		pending = pending.Add(r)
	}
	return g.committed.Add(pending).Add(est).GreaterThan(g.ceiling)
}

// Lookup reads a cached stage result under key into v. It returns false on a
// miss and never fails the caller on cache errors; a broken cache only costs
// money, not correctness.
func (g *Governor) Lookup(ctx context.Context, key string, v any) bool {
	if g.cache == nil {
		return false
	}
	data, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.WarnContext(ctx, "cache lookup failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		g.observeLookup(false)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		g.logger.WarnContext(ctx, "cache entry corrupt",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		g.observeLookup(false)
		return false
	}
	g.observeLookup(true)
	return true
}

func (g *Governor) observeLookup(hit bool) {
	if g.observe != nil {
		g.observe(hit)
	}
}

// Store writes a stage result to the cache under key with the configured TTL.
// Cache write failures are logged and swallowed.
func (g *Governor) Store(ctx context.Context, key string, v any) {
	if g.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		g.logger.WarnContext(ctx, "cache marshal failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := g.cache.Set(ctx, key, data, g.ttl); err != nil {
		g.logger.WarnContext(ctx, "cache store failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Fingerprint builds a stable cache key from its parts. Identical inputs map
// to identical keys across runs, so a re-run within the TTL spends nothing on
// unchanged questions.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h[:])
}
