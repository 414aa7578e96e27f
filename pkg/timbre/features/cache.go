package features

import "sync"

// Kind names a cached feature family.
type Kind string

const (
	KindMFCCMean   Kind = "mfcc_mean"
	KindChromaMean Kind = "chroma_mean"
)

// Cache memoises summary vectors by (kind, track key). Entries never expire
// on their own: if the file behind a key changes, callers must Invalidate it.
type Cache interface {
	Get(kind Kind, key string) (Vector, bool)
	// Put stores v unless an entry already exists, and returns whichever
	// vector is now cached.
	Put(kind Kind, key string, v Vector) Vector
	Invalidate(key string)
	Clear()
}

type cacheKey struct {
	kind Kind
	key  string
}

// MemoryCache is a process-local Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]Vector
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[cacheKey]Vector)}
}

func (c *MemoryCache) Get(kind Kind, key string) (Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[cacheKey{kind, key}]
	return v, ok
}

func (c *MemoryCache) Put(kind Kind, key string, v Vector) Vector {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{kind, key}
	if existing, ok := c.entries[k]; ok {
		return existing
	}
	c.entries[k] = v
	return v
}

func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.key == key {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]Vector)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TieredCache reads through a fast front cache to a slower backing one,
// promoting hits. Writes go to both.
type TieredCache struct {
	front Cache
	back  Cache
}

func NewTieredCache(front, back Cache) *TieredCache {
	return &TieredCache{front: front, back: back}
}

func (c *TieredCache) Get(kind Kind, key string) (Vector, bool) {
	if v, ok := c.front.Get(kind, key); ok {
		return v, true
	}
	v, ok := c.back.Get(kind, key)
	if !ok {
		return nil, false
	}
	return c.front.Put(kind, key, v), true
}

func (c *TieredCache) Put(kind Kind, key string, v Vector) Vector {
	stored := c.back.Put(kind, key, v)
	return c.front.Put(kind, key, stored)
}

func (c *TieredCache) Invalidate(key string) {
	c.front.Invalidate(key)
	c.back.Invalidate(key)
}

func (c *TieredCache) Clear() {
	c.front.Clear()
	c.back.Clear()
}
