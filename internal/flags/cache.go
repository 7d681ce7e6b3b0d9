package flags

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache fronts the flag store with explicit invalidation. There is no TTL
// coupling to correctness: every flag mutation calls Invalidate, so a stale
// read can only survive until the next mutation plus the safety TTL.
type Cache interface {
	Get(ctx context.Context, name Name) (enabled bool, ok bool)
	Put(ctx context.Context, name Name, enabled bool)
	Invalidate(ctx context.Context)
}

// cacheTTL bounds staleness if an Invalidate is ever missed (process crash
// between store write and cache call).
const cacheTTL = 5 * time.Minute

// MemoryCache is the in-process cache used when Redis is not configured and
// in unit tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Name]memoryEntry
}

type memoryEntry struct {
	enabled   bool
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Name]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, name Name) (bool, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return false, false
	}
	return entry.enabled, true
}

func (c *MemoryCache) Put(_ context.Context, name Name, enabled bool) {
	c.mu.Lock()
	c.entries[name] = memoryEntry{enabled: enabled, expiresAt: time.Now().Add(cacheTTL)}
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[Name]memoryEntry)
	c.mu.Unlock()
}

// RedisCache shares flag state across processes. Keys live under a single
// prefix so Invalidate can drop them in one pass.
type RedisCache struct {
	client *goredis.Client
}

const redisKeyPrefix = "agora:flag:"

func NewRedisCache(client *goredis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, name Name) (bool, bool) {
	val, err := c.client.Get(ctx, redisKeyPrefix+string(name)).Result()
	if err != nil {
		// Cache miss and cache outage look identical to callers; the store
		// remains the source of truth either way.
		return false, false
	}
	return val == "1", true
}

func (c *RedisCache) Put(ctx context.Context, name Name, enabled bool) {
	val := "0"
	if enabled {
		val = "1"
	}
	c.client.Set(ctx, redisKeyPrefix+string(name), val, cacheTTL)
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}
