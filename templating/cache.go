package templating

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Cache stores compiled programs across Compile calls. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(key string) (*Program, bool)
	Set(key string, pg *Program)
}

// CacheStats reports MemoryCache activity.
type CacheStats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// MemoryCache is an in-process Cache with optional LRU eviction.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	key string
	pg  *Program
}

// NewMemoryCache returns a cache holding at most maxEntries programs;
// zero or less means unbounded.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns the program stored under key.
func (mc *MemoryCache) Get(key string) (*Program, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.entries[key]
	if !ok {
		mc.misses.Add(1)
		return nil, false
	}

	mc.order.MoveToFront(el)
	mc.hits.Add(1)

	return el.Value.(*cacheEntry).pg, true //nolint:forcetypeassert // list only holds entries
}

// Set stores pg under key, evicting the least recently used program
// when the cache is full.
func (mc *MemoryCache) Set(key string, pg *Program) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if el, ok := mc.entries[key]; ok {
		el.Value.(*cacheEntry).pg = pg //nolint:forcetypeassert // list only holds entries
		mc.order.MoveToFront(el)

		return
	}

	mc.entries[key] = mc.order.PushFront(&cacheEntry{key: key, pg: pg})

	for mc.maxEntries > 0 && mc.order.Len() > mc.maxEntries {
		lru := mc.order.Back()
		mc.order.Remove(lru)
		delete(mc.entries, lru.Value.(*cacheEntry).key) //nolint:forcetypeassert // list only holds entries
		mc.evictions.Add(1)
	}
}

// Clear drops every entry and resets the statistics.
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*list.Element)
	mc.order.Init()
	mc.hits.Store(0)
	mc.misses.Store(0)
	mc.evictions.Store(0)
}

// Stats returns a snapshot of the cache counters.
func (mc *MemoryCache) Stats() CacheStats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return CacheStats{
		Entries:   len(mc.entries),
		Hits:      mc.hits.Load(),
		Misses:    mc.misses.Load(),
		Evictions: mc.evictions.Load(),
	}
}
