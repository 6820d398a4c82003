package middleware

import (
	"container/list"
	"sync"

	pk "github.com/pipelinekit/pipelinekit"
)

// CacheKeyer is the canonical cache-key contract a cacheable command must
// implement, replacing an unstable structural hash of the command's string
// description.
type CacheKeyer interface {
	CacheKey() string
}

// Cache is the cache backend integration contract; concrete backends
// (Redis, memcached, ...) are an external collaborator's concern.
type Cache[R any] interface {
	Get(key string) (R, bool)
	Set(key string, value R)
}

// CacheMiddleware serves a cached result for a previously seen CacheKeyer
// command without invoking next, and stores next's result on a miss.
type CacheMiddleware[C pk.Command, R any] struct {
	cache Cache[R]
}

// NewCacheMiddleware wraps cache as middleware. C must implement CacheKeyer.
func NewCacheMiddleware[C interface {
	pk.Command
	CacheKeyer
}, R any](cache Cache[R]) *CacheMiddleware[C, R] {
	return &CacheMiddleware[C, R]{cache: cache}
}

// Priority implements pk.Middleware.
func (m *CacheMiddleware[C, R]) Priority() int { return pk.PriorityEnhancement }

// Name implements pk.Name.
func (m *CacheMiddleware[C, R]) Name() string { return "cache" }

// IsNextGuardSuppressing implements pk.NextGuardSuppressing: a cache hit
// deliberately never calls next.
func (m *CacheMiddleware[C, R]) IsNextGuardSuppressing() bool { return true }

// Execute implements pk.Middleware. cmd must satisfy CacheKeyer; this is
// enforced at construction via NewCacheMiddleware's type constraint, so the
// type assertion below never fails for middleware built through it.
func (m *CacheMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	keyer, ok := any(cmd).(CacheKeyer)
	if !ok {
		return next(ctx, cmd)
	}
	key := keyer.CacheKey()
	if cached, hit := m.cache.Get(key); hit {
		ctx.SetAnnotation("cache", "hit")
		return cached, nil
	}
	result, err := next(ctx, cmd)
	if err != nil {
		return result, err
	}
	ctx.SetAnnotation("cache", "miss")
	m.cache.Set(key, result)
	return result, nil
}

// InMemoryCache is a bounded LRU Cache implementation, evicting the least
// recently used entries until the cache holds at most maxSize rather than
// evicting a single entry regardless of how far over capacity it is.
type InMemoryCache[R any] struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[string]*list.Element
}

type cacheEntry[R any] struct {
	key   string
	value R
}

// NewInMemoryCache creates an InMemoryCache bounded at maxSize entries.
func NewInMemoryCache[R any](maxSize int) *InMemoryCache[R] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &InMemoryCache[R]{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Get implements Cache.
func (c *InMemoryCache[R]) Get(key string) (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero R
	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry[R]).value, true
}

// Set implements Cache, evicting from the back until the cache holds at
// most maxSize entries after the insert.
func (c *InMemoryCache[R]) Set(key string, value R) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*cacheEntry[R]).value = value
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry[R]{key: key, value: value})
	c.index[key] = el
	for c.order.Len() > c.maxSize {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.index, back.Value.(*cacheEntry[R]).key)
	}
}

// Len returns the number of cached entries.
func (c *InMemoryCache[R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
