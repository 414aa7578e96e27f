package main

import "sync"

// renderCache keeps the most recent equalizer renders keyed by audio content
// and band settings. The oldest entry is evicted first.
type renderCache struct {
	mu      sync.Mutex
	max     int
	order   []string
	entries map[string][]byte
}

func newRenderCache(max int) *renderCache {
	return &renderCache{max: max, entries: make(map[string][]byte)}
}

func (c *renderCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[key]
	return b, ok
}

func (c *renderCache) put(key string, data []byte) {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.max {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.order = append(c.order, key)
	c.entries[key] = data
}

func (c *renderCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
