package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strathmore/pipescore/pkg/observability"
)

// Kind distinguishes the layout result types stored per entity.
type Kind int

const (
	KindMeasure Kind = iota
	KindSystem
	KindPage
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindMeasure:
		return "measure"
	case KindSystem:
		return "system"
	case KindPage:
		return "page"
	}
	return "unknown"
}

// EntityKey identifies one cached layout result.
type EntityKey struct {
	EntityID string
	Kind     Kind
}

// Stats reports cache diagnostics.
type Stats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// EntityCache is the interface the layout engine computes against.
// Implementations are [LRUCache] and [NullEntityCache]; swapping one
// for the other never changes layout output, only performance.
type EntityCache interface {
	// Get returns the cached result for the key, or false when absent
	// or stale. A hit refreshes the entry's LRU recency.
	Get(key EntityKey) (any, bool)

	// Put stores a result under the key. Each put is atomic per key:
	// readers observe either the previous value or the new one, never
	// a partial write.
	Put(key EntityKey, value any)

	// Invalidate removes entries for exactly the given entity ids,
	// across all kinds. It does not cascade: callers supply the full
	// invalidation set.
	Invalidate(ids []string)

	// InvalidateAll clears the cache. Used on global parameter changes.
	InvalidateAll()

	// Stats returns size and hit/miss counters.
	Stats() Stats
}

// Default sizing for the in-process layout cache.
const (
	// DefaultCapacity bounds the number of cached layout results.
	DefaultCapacity = 1000

	// DefaultTTL is the staleness window for cached results.
	DefaultTTL = 5 * time.Minute
)

// entryShards is the number of storage shards. Entries on different
// shards never contend on a lock; only the LRU list is shared.
const entryShards = 16

type entry struct {
	key      EntityKey
	value    any
	storedAt time.Time
	elem     *list.Element // position in the LRU list, guarded by lruMu
}

type shard struct {
	mu      sync.RWMutex
	entries map[EntityKey]*entry
}

// LRUCache is an in-memory entity cache with TTL staleness and LRU
// eviction. Entry storage is sharded by key so concurrent workers
// laying out independent measures do not serialize on a global lock;
// the LRU ordering has global state and is kept behind its own single
// critical section.
type LRUCache struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	shards [entryShards]*shard

	lruMu sync.Mutex
	lru   *list.List // front = most recently used, elements hold *entry

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures an LRUCache.
type Option func(*LRUCache)

// WithCapacity sets the maximum entry count.
func WithCapacity(n int) Option {
	return func(c *LRUCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTTL sets the staleness window.
func WithTTL(d time.Duration) Option {
	return func(c *LRUCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) Option {
	return func(c *LRUCache) { c.now = now }
}

// NewLRUCache creates an entity cache with the given options.
func NewLRUCache(opts ...Option) *LRUCache {
	c := &LRUCache{
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
		lru:      list.New(),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[EntityKey]*entry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// shardFor picks the storage shard for a key.
func (c *LRUCache) shardFor(key EntityKey) *shard {
	// FNV-1a over the id bytes plus the kind.
	h := uint32(2166136261)
	for i := 0; i < len(key.EntityID); i++ {
		h ^= uint32(key.EntityID[i])
		h *= 16777619
	}
	h ^= uint32(key.Kind)
	h *= 16777619
	return c.shards[h%entryShards]
}

// Get returns the cached result for the key if present and not stale.
func (c *LRUCache) Get(key EntityKey) (any, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		observability.Cache().OnCacheMiss(context.Background(), key.Kind.String())
		return nil, false
	}

	if c.now().Sub(e.storedAt) > c.ttl {
		// Stale entries are never returned. Removal is lazy.
		c.remove(key)
		c.misses.Add(1)
		observability.Cache().OnCacheMiss(context.Background(), key.Kind.String())
		return nil, false
	}

	c.lruMu.Lock()
	if e.elem != nil {
		c.lru.MoveToFront(e.elem)
	}
	c.lruMu.Unlock()

	c.hits.Add(1)
	observability.Cache().OnCacheHit(context.Background(), key.Kind.String())
	return e.value, true
}

// Put stores a result, evicting the least-recently-used entry first
// when the cache is at capacity.
func (c *LRUCache) Put(key EntityKey, value any) {
	e := &entry{key: key, value: value, storedAt: c.now()}

	// Reserve LRU capacity before publishing the entry, so the cache
	// never exceeds its bound.
	c.lruMu.Lock()
	for c.lru.Len() >= c.capacity {
		back := c.lru.Back()
		if back == nil {
			break
		}
		victim := back.Value.(*entry)
		c.lru.Remove(back)
		victim.elem = nil
		observability.Cache().OnCacheEvict(context.Background(), victim.key.Kind.String())
		vs := c.shardFor(victim.key)
		vs.mu.Lock()
		if cur, ok := vs.entries[victim.key]; ok && cur == victim {
			delete(vs.entries, victim.key)
		}
		vs.mu.Unlock()
	}
	c.lruMu.Unlock()

	s := c.shardFor(key)
	s.mu.Lock()
	prev := s.entries[key]
	s.entries[key] = e
	s.mu.Unlock()

	c.lruMu.Lock()
	if prev != nil && prev.elem != nil {
		c.lru.Remove(prev.elem)
		prev.elem = nil
	}
	e.elem = c.lru.PushFront(e)
	c.lruMu.Unlock()
}

// Invalidate removes entries for exactly the given ids, across all kinds.
func (c *LRUCache) Invalidate(ids []string) {
	for _, id := range ids {
		for _, k := range []Kind{KindMeasure, KindSystem, KindPage} {
			c.remove(EntityKey{EntityID: id, Kind: k})
		}
	}
}

// InvalidateAll clears every entry.
func (c *LRUCache) InvalidateAll() {
	c.lruMu.Lock()
	c.lru.Init()
	c.lruMu.Unlock()
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[EntityKey]*entry)
		s.mu.Unlock()
	}
}

// Stats returns current size and hit/miss counts.
func (c *LRUCache) Stats() Stats {
	size := 0
	for _, s := range c.shards {
		s.mu.RLock()
		size += len(s.entries)
		s.mu.RUnlock()
	}
	return Stats{
		Size:   size,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// remove deletes one entry from its shard and the LRU list.
func (c *LRUCache) remove(key EntityKey) {
	s := c.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	c.lruMu.Lock()
	if e.elem != nil {
		c.lru.Remove(e.elem)
		e.elem = nil
	}
	c.lruMu.Unlock()
}

// NullEntityCache is an EntityCache that never stores anything. Layout
// with a NullEntityCache produces byte-identical results to layout with
// an LRUCache; only the work is repeated.
type NullEntityCache struct {
	misses atomic.Int64
}

// NewNullEntityCache creates a null entity cache.
func NewNullEntityCache() *NullEntityCache { return &NullEntityCache{} }

// Get always misses.
func (c *NullEntityCache) Get(EntityKey) (any, bool) {
	c.misses.Add(1)
	return nil, false
}

// Put does nothing.
func (c *NullEntityCache) Put(EntityKey, any) {}

// Invalidate does nothing.
func (c *NullEntityCache) Invalidate([]string) {}

// InvalidateAll does nothing.
func (c *NullEntityCache) InvalidateAll() {}

// Stats reports misses only.
func (c *NullEntityCache) Stats() Stats {
	return Stats{Misses: c.misses.Load()}
}

// Ensure both implementations satisfy EntityCache.
var (
	_ EntityCache = (*LRUCache)(nil)
	_ EntityCache = (*NullEntityCache)(nil)
)
