package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache holds the single implicitly-resolved tenant. Implementations must
// be safe for concurrent use; racing writers are fine because they all
// store the same externally sourced value.
type Cache interface {
	Get(ctx context.Context) (Info, bool)
	Set(ctx context.Context, info Info)
	Reset(ctx context.Context)
}

const defaultKey = "default"

// MemoryCache is a process-local single-entry cache with a TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, Info]
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, Info](1, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context) (Info, bool) {
	return c.lru.Get(defaultKey)
}

func (c *MemoryCache) Set(_ context.Context, info Info) {
	c.lru.Add(defaultKey, info)
}

func (c *MemoryCache) Reset(_ context.Context) {
	c.lru.Purge()
}

// RedisCache shares the default tenant between API replicas. Redis errors
// are treated as misses.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "cmms"
	}
	return &RedisCache{client: client, key: prefix + ":tenant:" + defaultKey, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) (Info, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("Redis tenant cache read failed: %v", err)
		}
		return Info{}, false
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		log.Warn("Discarding malformed tenant cache entry: %v", err)
		return Info{}, false
	}
	return info, true
}

func (c *RedisCache) Set(ctx context.Context, info Info) {
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		log.Warn("Redis tenant cache write failed: %v", err)
	}
}

func (c *RedisCache) Reset(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		log.Warn("Redis tenant cache reset failed: %v", err)
	}
}
