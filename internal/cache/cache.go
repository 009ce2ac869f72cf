// Package cache memoizes aggregated event windows for a bounded time.
package cache

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	loadingcache "github.com/karupanerura/loading-cache"
	"github.com/karupanerura/loading-cache/storage/memstorage"

	"familycal/internal/model"
)

// DefaultTTL is how long a captured window stays fresh.
const DefaultTTL = 5 * time.Minute

// Key identifies a window by the literal bounds the caller supplied.
// Equivalent windows spelled differently are distinct keys.
type Key struct {
	Start string
	End   string
}

// id is the storage key. NUL cannot appear in a query parameter bound.
func (k Key) id() string {
	return k.Start + "\x00" + k.End
}

type storage = loadingcache.CacheStorage[string, []model.UnifiedEvent]

// Generation is one invalidation epoch. Entries written to a generation that
// has been replaced by InvalidateAll are unreachable.
type Generation struct {
	storage storage
}

// Cache maps window keys to captured event lists. Entries at or past the TTL
// are treated as absent when read; nothing is swept in the background.
type Cache struct {
	current atomic.Pointer[Generation]
	ttl     time.Duration
	clock   loadingcache.Clock
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for capture and expiry.
func WithClock(clock loadingcache.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// New creates a Cache. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:   ttl,
		clock: loadingcache.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(c.newGeneration())
	return c
}

func (c *Cache) newGeneration() *Generation {
	cloner := loadingcache.ValueClonerFunc[[]model.UnifiedEvent](func(v []model.UnifiedEvent) []model.UnifiedEvent {
		return slices.Clone(v)
	})
	return &Generation{
		storage: memstorage.NewInMemoryStorage[string, []model.UnifiedEvent](
			memstorage.WithBucketsSize[string, []model.UnifiedEvent](16),
			memstorage.WithClock[string, []model.UnifiedEvent](c.clock),
			memstorage.WithCloner[string, []model.UnifiedEvent](cloner),
		),
	}
}

// Get returns the events captured for key if they are younger than the TTL.
func (c *Cache) Get(key Key) ([]model.UnifiedEvent, bool) {
	e, err := c.current.Load().storage.Get(context.Background(), key.id())
	if err != nil || e == nil || e.NegativeCache {
		return nil, false
	}
	return e.Value, true
}

// Put captures data for key. Concurrent puts for one key: last writer wins.
func (c *Cache) Put(key Key, data []model.UnifiedEvent) {
	c.put(c.current.Load(), key, data)
}

// Generation returns the current invalidation epoch. Pass it to
// PutIfCurrent to drop results computed before an InvalidateAll.
func (c *Cache) Generation() *Generation {
	return c.current.Load()
}

// PutIfCurrent stores data in gen and reports whether gen is still current.
// A result stored into a replaced generation is never served.
func (c *Cache) PutIfCurrent(gen *Generation, key Key, data []model.UnifiedEvent) bool {
	if c.current.Load() != gen {
		return false
	}
	c.put(gen, key, data)
	return c.current.Load() == gen
}

func (c *Cache) put(gen *Generation, key Key, data []model.UnifiedEvent) {
	// memstorage never fails.
	_ = gen.storage.Set(context.Background(), &loadingcache.CacheEntry[string, []model.UnifiedEvent]{
		Entry:     loadingcache.Entry[string, []model.UnifiedEvent]{Key: key.id(), Value: data},
		ExpiresAt: c.clock.Now().Add(c.ttl),
	})
}

// InvalidateAll drops every entry by starting a new generation.
func (c *Cache) InvalidateAll() {
	c.current.Store(c.newGeneration())
}
