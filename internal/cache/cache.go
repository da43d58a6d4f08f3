// Package cache provides a thread-safe generic map plus the process-wide caches
// for rendered previews, syntax CSS and static asset hashes.
package cache

import (
	"slices"
	"sync"
)

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// GetOrCreate returns the value under key, storing create() first if absent.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	if val, ok := c.Get(key); ok {
		return val
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.items[key]; ok {
		return val
	}
	val := create()
	c.items[key] = val
	return val
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Values returns the cached values in no particular order.
func (c *Cache[K, V]) Values() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]V, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out
}

// DeleteFunc removes every entry for which del returns true and reports how
// many were removed.
func (c *Cache[K, V]) DeleteFunc(del func(K, V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []K
	for k, v := range c.items {
		if del(k, v) {
			keys = append(keys, k)
		}
	}
	for _, k := range slices.Clip(keys) {
		delete(c.items, k)
	}
	return len(keys)
}

// RenderedContent is a rendered markdown preview and the title data mmark
// extracted from it.
type RenderedContent struct {
	HTML  []byte
	Extra any
}

var renderedPreviewCache = NewCache[string, *RenderedContent]()

func GetRenderedPreview(contentHash, syntaxTheme string) (*RenderedContent, bool) {
	return renderedPreviewCache.Get(contentHash + ":" + syntaxTheme)
}

func SetRenderedPreview(contentHash, syntaxTheme string, html []byte, extra any) {
	renderedPreviewCache.Set(contentHash+":"+syntaxTheme, &RenderedContent{
		HTML:  html,
		Extra: extra,
	})
}

func ClearRenderedPreviewCache() {
	renderedPreviewCache.Clear()
}
