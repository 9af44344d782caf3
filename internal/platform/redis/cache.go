package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin TTL cache over the Redis client. All methods are nil-safe
// so call sites need no cache-enabled branches.
type Cache struct {
	client *Client
}

// NewCache wraps a client (possibly nil) as a cache.
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Get returns the cached value and true on a hit. Misses and transport
// errors both report false; the caller falls through to the store.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil || err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value with a TTL. Errors are ignored: the cache is an
// optimization, never a source of truth.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, key, value, ttl)
}

// Invalidate drops a key after a mutation.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, key)
}
