// Package lookup wraps the injected external provider adapter with a
// persistent, TTL-bounded response cache. The engine never reaches a
// network boundary except through this package, and a provider failure is
// always absorbed as a cache miss rather than propagated.
package lookup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// Cache memoizes external lookups keyed by a hash of normalized query
// parameters. In-flight calls are bounded per provider so a slow provider
// cannot starve unrelated calculations.
type Cache struct {
	repo        port.QueryCacheRepository
	adapter     port.ExternalLookup
	ttl         time.Duration
	maxInflight int64

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted

	now func() time.Time
}

// New creates a Cache over the given repository and injected adapter.
// adapter may be nil, in which case every miss stays a miss.
func New(repo port.QueryCacheRepository, adapter port.ExternalLookup, ttl time.Duration, maxInflight int64) *Cache {
	if maxInflight <= 0 {
		maxInflight = 4
	}
	return &Cache{
		repo:        repo,
		adapter:     adapter,
		ttl:         ttl,
		maxInflight: maxInflight,
		sems:        make(map[string]*semaphore.Weighted),
		now:         time.Now,
	}
}

// HashParams produces the deterministic cache key for a parameter set.
// Keys are sorted and values normalized (trimmed, uppercased, whitespace
// collapsed) so semantically identical queries collide.
func HashParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", strings.ToLower(strings.TrimSpace(k)), normalizeValue(params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeValue(v string) string {
	return strings.Join(strings.Fields(strings.ToUpper(v)), " ")
}

// Lookup returns the cached response for the query, calling the adapter on
// a miss. The second return value reports whether the result was served
// from cache. A nil entry with a nil error means the query could not be
// answered (no adapter, adapter failure, or timeout); callers degrade to
// their unresolved path.
func (c *Cache) Lookup(ctx context.Context, provider, queryType string, params map[string]string) (*domain.ExternalQueryCacheEntry, bool, error) {
	hash := HashParams(params)

	entry, err := c.repo.Get(ctx, provider, queryType, hash)
	if err == nil && entry != nil && !entry.Expired(c.now()) && entry.Status == domain.QuerySuccess {
		return entry, true, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup.Cache: reading cache: %w", err)
	}

	if c.adapter == nil {
		return nil, false, nil
	}

	sem := c.providerSem(provider)
	if err := sem.Acquire(ctx, 1); err != nil {
		// Caller's deadline expired while queued; degrade, don't block.
		log.Printf("lookup.Cache: %s lookup dropped while waiting for slot: %v", provider, err)
		return nil, false, nil
	}
	defer sem.Release(1)

	start := c.now()
	result, callErr := c.adapter(ctx, provider, queryType, params)
	latency := c.now().Sub(start)

	fresh := &domain.ExternalQueryCacheEntry{
		ID:        uuid.New(),
		Provider:  provider,
		QueryType: queryType,
		QueryHash: hash,
		CalledAt:  start,
		ExpiresAt: start.Add(c.ttl),
		LatencyMS: latency.Milliseconds(),
	}

	if callErr != nil {
		fresh.Status = domain.QueryError
		fresh.Response = json.RawMessage("null")
		if err := c.repo.Upsert(ctx, fresh); err != nil {
			log.Printf("lookup.Cache: recording failed %s lookup: %v", provider, err)
		}
		log.Printf("lookup.Cache: %s %s lookup failed: %v", provider, queryType, callErr)
		return nil, false, nil
	}

	fresh.Status = result.Status
	fresh.Response = result.Response
	if result.Latency > 0 {
		fresh.LatencyMS = result.Latency.Milliseconds()
	}
	if err := c.repo.Upsert(ctx, fresh); err != nil {
		log.Printf("lookup.Cache: caching %s response: %v", provider, err)
	}
	if fresh.Status != domain.QuerySuccess {
		return nil, false, nil
	}
	return fresh, false, nil
}

func (c *Cache) providerSem(provider string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.sems[provider]
	if !ok {
		sem = semaphore.NewWeighted(c.maxInflight)
		c.sems[provider] = sem
	}
	return sem
}
