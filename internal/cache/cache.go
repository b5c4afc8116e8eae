// Package cache memoizes temperature grids per cache key, on top of a
// pluggable key/value store. Caching is a performance optimization, never a
// correctness requirement: every store failure is absorbed and logged, and
// the caller simply proceeds without cache.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/observability"
)

// Store is the persistence collaborator: string keys, JSON values. Both the
// in-process and durable backends satisfy it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Entry wraps a stored grid with its bookkeeping timestamps. CacheDate is
// the provider's logical day (see domain.EffectiveCacheDate), which governs
// validity independent of numeric age.
type Entry struct {
	Grid      domain.Grid `json:"grid"`
	StoredAt  int64       `json:"stored_at"` // epoch milliseconds
	CacheDate string      `json:"cache_date"`
}

// Cache is the grid cache layered over a Store.
type Cache struct {
	store      Store
	clock      clockwork.Clock
	maxEntries int
	maxAge     time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a Cache. maxEntries bounds the store size (oldest evicted
// first); maxAge bounds entry age independent of the logical-day check.
func New(store Store, clock clockwork.Clock, maxEntries int, maxAge time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	return &Cache{
		store:      store,
		clock:      clock,
		maxEntries: maxEntries,
		maxAge:     maxAge,
		metrics:    metrics,
		logger:     logger,
	}
}

// Get returns the entry for key if it belongs to the current logical day and
// is younger than the maximum age. Stale entries behave as absent but are
// not deleted here; EvictStale owns removal.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.absorb("cache get failed", key, err)
		return Entry{}, false
	}
	if !ok {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.absorb("cache entry corrupt", key, err)
		return Entry{}, false
	}

	if !c.valid(entry) {
		c.metrics.CacheLookups.WithLabelValues("stale").Inc()
		return Entry{}, false
	}

	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry, true
}

// Put stores (overwriting) the grid under key, stamped with the current
// instant and logical day, then opportunistically evicts stale entries.
func (c *Cache) Put(ctx context.Context, key string, grid domain.Grid) {
	now := c.clock.Now()
	entry := Entry{
		Grid:      grid,
		StoredAt:  now.UnixMilli(),
		CacheDate: domain.EffectiveCacheDate(now),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.absorb("cache entry marshal failed", key, err)
		return
	}
	if err := c.store.Put(ctx, key, raw); err != nil {
		c.absorb("cache put failed", key, err)
		return
	}
	c.EvictStale(ctx)
}

// EvictStale removes entries that are past the maximum age or belong to a
// previous logical day, then trims the store to the entry limit, oldest
// StoredAt first.
func (c *Cache) EvictStale(ctx context.Context) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		c.absorb("cache enumerate failed", "", err)
		return
	}

	type live struct {
		key      string
		storedAt int64
	}
	var survivors []live

	for _, key := range keys {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil || !c.valid(entry) {
			c.delete(ctx, key)
			continue
		}
		survivors = append(survivors, live{key: key, storedAt: entry.StoredAt})
	}

	if len(survivors) <= c.maxEntries {
		return
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].storedAt < survivors[j].storedAt })
	for _, s := range survivors[:len(survivors)-c.maxEntries] {
		c.delete(ctx, s.key)
	}
}

func (c *Cache) valid(entry Entry) bool {
	now := c.clock.Now()
	if entry.CacheDate != domain.EffectiveCacheDate(now) {
		return false
	}
	age := now.Sub(time.UnixMilli(entry.StoredAt))
	return age >= 0 && age < c.maxAge
}

func (c *Cache) delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.absorb("cache delete failed", key, err)
		return
	}
	c.metrics.CacheEvictions.Inc()
}

func (c *Cache) absorb(msg, key string, err error) {
	c.metrics.CacheLookups.WithLabelValues("error").Inc()
	c.logger.Warn(msg, "key", key, "error", err)
}
