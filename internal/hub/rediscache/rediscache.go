// Package rediscache offers the Market Data Provider's cache interface
// (spec.md §4.D) over Redis, for deployments that run more than one
// instance of the hub and want upstream quote caching to be shared rather
// than duplicated per-process. Nothing in this module constructs it: the
// Provider always caches through internal/hub/memcache, whatever the Redis
// configuration.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a generic TTL-keyed cache backed by a Redis string value holding
// the JSON-encoded T. Values must round-trip through encoding/json.
type Cache[T any] struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// New creates a Cache using an existing Redis client. prefix namespaces keys
// so quote/candle/order-book caches sharing one Redis instance don't
// collide.
func New[T any](rdb *redis.Client, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *Cache[T]) fullKey(key string) string {
	return c.prefix + ":" + key
}

// Get returns the cached value for key if present and not expired. Redis
// handles expiry itself; a miss and a decode failure are both reported as
// "not present" since a corrupt cache entry is no better than an absent one.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	data, err := c.rdb.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false
	}
	return value, true
}

// Set stores value for key with this cache's configured TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.fullKey(key), data, c.ttl).Err()
}

// Invalidate removes key, if present.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.fullKey(key)).Err()
}

// Flush clears every key under this cache's prefix.
func (c *Cache[T]) Flush(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
