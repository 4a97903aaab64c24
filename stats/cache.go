package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores serialized upstream responses for a bounded time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	clock func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty MemoryCache. clock may be nil.
func NewMemoryCache(clock func() time.Time) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{items: make(map[string]memoryItem), clock: clock}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.clock().Before(item.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	return item.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{value: value, expiresAt: c.clock().Add(ttl)}
	return nil
}

// RedisCache is a Cache shared by every instance connected to the same Redis.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache creates a RedisCache storing keys under prefix.
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", c.prefix+key, err)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.prefix+key, err)
	}
	return nil
}

// Locker serializes refreshes of one cache key across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Cached fronts a fetch function with a Cache entry that is refreshed after ttl.
type Cached[T any] struct {
	Cache Cache
	Key   string
	TTL   time.Duration // zero disables caching
	Fetch func(ctx context.Context) (*T, error)
	// NewLocker, when set, is used to keep concurrent instances from refreshing together.
	NewLocker func(key string) Locker

	mu sync.Mutex // serializes refreshes inside this process
}

// Get returns the cached value, fetching and storing it on a miss.
// Cache failures degrade to a direct fetch.
func (c *Cached[T]) Get(ctx context.Context) (*T, error) {
	if c.TTL <= 0 || c.Cache == nil {
		return c.Fetch(ctx)
	}

	if v, ok := c.load(ctx); ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.NewLocker != nil {
		lock := c.NewLocker("lock:" + c.Key)
		if err := lock.Lock(ctx); err != nil {
			log.Warn().Err(err).Str("key", c.Key).Msg("refresh lock unavailable, fetching without it")
		} else {
			defer func() {
				if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
					log.Debug().Err(err).Str("key", c.Key).Msg("refresh lock release failed")
				}
			}()
		}
	}

	// another goroutine or instance may have refreshed while we waited
	if v, ok := c.load(ctx); ok {
		return v, nil
	}

	v, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", c.Key).Msg("failed to encode value for cache")
		return v, nil
	}
	if err := c.Cache.Set(ctx, c.Key, raw, c.TTL); err != nil {
		log.Warn().Err(err).Str("key", c.Key).Msg("failed to store value in cache")
	}
	return v, nil
}

func (c *Cached[T]) load(ctx context.Context) (*T, bool) {
	raw, ok, err := c.Cache.Get(ctx, c.Key)
	if err != nil {
		log.Warn().Err(err).Str("key", c.Key).Msg("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("key", c.Key).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return &v, true
}
