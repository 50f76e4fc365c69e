package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process LRU. The LRU evicts everything after maxTTL;
// shorter per-entry TTLs are enforced on read.
type MemoryCache struct {
	cache      *lru.LRU[string, memoryEntry]
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemoryCache(maxEntries int, defaultTTL, maxTTL time.Duration) *MemoryCache {
	if maxEntries < 10 {
		maxEntries = 10
	}
	if maxTTL < defaultTTL {
		maxTTL = defaultTTL
	}
	return &MemoryCache{
		cache:      lru.NewLRU[string, memoryEntry](maxEntries, nil, maxTTL),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (Lookup, error) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return Lookup{}, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.cache.Remove(key)
		return Lookup{}, nil
	}
	return Lookup{Value: entry.value, Hit: true}, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.cache.Add(key, memoryEntry{value: value, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return nil
}

func (c *MemoryCache) Flush(ctx context.Context) error {
	c.cache.Purge()
	return nil
}

func (c *MemoryCache) Info(ctx context.Context) (Info, error) {
	return Info{
		Backend:    "memory",
		Available:  true,
		Items:      int64(c.cache.Len()),
		DefaultTTL: c.defaultTTL,
	}, nil
}
