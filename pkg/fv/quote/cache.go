package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/komsit37/fv/pkg/fv/types"
)

// DefaultCacheTTL is how long a fetched quote stays fresh.
const DefaultCacheTTL = time.Hour

// Cache decorates a Provider with a TTL+LRU cache keyed by symbol and need.
// Failed fetches are not cached.
type Cache struct {
	next Provider
	ttl  time.Duration
	size int // <= 0 means unbounded
	now  func() time.Time

	mu    sync.Mutex
	items map[string]cacheEntry
	order []string // LRU order, oldest at index 0
}

type cacheEntry struct {
	at time.Time
	q  types.Quote
}

func NewCache(next Provider, ttl time.Duration, size int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{next: next, ttl: ttl, size: size, now: time.Now, items: make(map[string]cacheEntry)}
}

func (c *Cache) key(sym string, need Need) string {
	return fmt.Sprintf("%s|%d", Normalize(sym), need)
}

func (c *Cache) Fetch(ctx context.Context, sym string, need Need) (types.Quote, error) {
	if sym == "" {
		return types.Quote{}, nil
	}
	k := c.key(sym, need)
	now := c.now()

	c.mu.Lock()
	if ent, ok := c.items[k]; ok {
		if now.Sub(ent.at) <= c.ttl {
			c.touchLocked(k)
			q := ent.q
			c.mu.Unlock()
			return q, nil
		}
		delete(c.items, k)
		c.removeLocked(k)
	}
	c.mu.Unlock()

	q, err := c.next.Fetch(ctx, sym, need)
	if err != nil {
		return q, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[k]; ok {
		c.removeLocked(k)
	}
	c.items[k] = cacheEntry{at: now, q: q}
	c.order = append(c.order, k)
	for c.size > 0 && len(c.items) > c.size && len(c.order) > 0 {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.items, old)
	}
	return q, nil
}

// Len returns the number of cached entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) touchLocked(k string) {
	c.removeLocked(k)
	c.order = append(c.order, k)
}

func (c *Cache) removeLocked(k string) {
	for i, v := range c.order {
		if v == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
