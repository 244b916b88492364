// Package snapshot keeps built history datasets per user so that many
// candidates can be scored against one immutable snapshot.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/metrics"
)

// HistoryLoader returns the raw transaction history of a user.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, userID string) ([]analytics.RawRecord, error)
}

// Cache builds datasets on demand and keeps them for a TTL. Cached datasets
// are never modified; Invalidate drops the entry and the next read rebuilds.
type Cache struct {
	engine *analytics.Engine
	loader HistoryLoader
	items  *cache.Cache
	group  singleflight.Group

	// generations is bumped by Invalidate; a build only stores its dataset
	// when the generation it started under is still current.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewCache creates a cache with the given TTL. A zero TTL keeps entries
// until invalidated.
func NewCache(engine *analytics.Engine, loader HistoryLoader, ttl time.Duration) *Cache {
	expiration := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
	}
	cleanup := 2 * ttl
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &Cache{
		engine: engine,
		loader: loader,
		items:  cache.New(expiration, cleanup),

		generations: make(map[string]uint64),
	}
}

// Dataset returns the snapshot of userID, loading and building it when it
// is not cached. Concurrent misses for the same user share one load. The
// shared load is not tied to any single caller: a caller whose ctx ends
// gets ctx.Err() while the others keep waiting.
func (c *Cache) Dataset(ctx context.Context, userID string) (*analytics.Dataset, error) {
	if v, ok := c.items.Get(userID); ok {
		metrics.SnapshotLookupsTotal.WithLabelValues("hit").Inc()
		return v.(*analytics.Dataset), nil
	}
	metrics.SnapshotLookupsTotal.WithLabelValues("miss").Inc()

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(userID, func() (interface{}, error) {
		return c.build(buildCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("snapshot: waiting for %s: %w", userID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log := logger.FromContext(ctx)
			log.Debug().Str("user_id", userID).Msg("Shared in-flight dataset build")
		}
		return res.Val.(*analytics.Dataset), nil
	}
}

// Invalidate drops the cached snapshot of userID. A build already in flight
// still answers its waiting callers but is not cached, and the next read
// starts a fresh load.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	c.generations[userID]++
	c.group.Forget(userID)
	c.items.Delete(userID)
	c.mu.Unlock()
}

func (c *Cache) generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

func (c *Cache) build(ctx context.Context, userID string) (*analytics.Dataset, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	gen := c.generation(userID)

	records, err := c.loader.LoadHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: loading history for %s: %w", userID, err)
	}

	ds, err := c.engine.BuildDataset(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("snapshot: building dataset for %s: %w", userID, err)
	}

	metrics.ObserveDataset(ds, time.Since(start))

	c.mu.Lock()
	current := c.generations[userID] == gen
	if current {
		c.items.Set(userID, ds, cache.DefaultExpiration)
	}
	c.mu.Unlock()

	if !current {
		log.Info().Str("user_id", userID).Msg("Snapshot invalidated during build, not caching")
		return ds, nil
	}

	log.Info().
		Str("user_id", userID).
		Int("rows", ds.Len()).
		Int("skipped", ds.Skipped()).
		Dur("duration", time.Since(start)).
		Msg("Built history snapshot")

	return ds, nil
}
