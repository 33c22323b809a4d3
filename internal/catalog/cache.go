package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/vmihailenco/msgpack"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

// ErrCacheMiss is returned when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache keeps fetched episode lists between refreshes and restarts.
type Cache interface {
	Get(key string) ([]model.Episode, error)
	Set(key string, episodes []model.Episode, ttl time.Duration) error
}

type cacheEntry struct {
	episodes []model.Episode
	expires  time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(key string) ([]model.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return e.episodes, nil
}

func (c *MemoryCache) Set(key string, episodes []model.Episode, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{episodes: episodes}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// RedisCache stores msgpack-encoded episode lists in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redisURL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(key string) ([]model.Episode, error) {
	data, err := c.client.Get(key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, err
	}
	var episodes []model.Episode
	if err := msgpack.Unmarshal(data, &episodes); err != nil {
		return nil, fmt.Errorf("decode cached episodes: %w", err)
	}
	return episodes, nil
}

func (c *RedisCache) Set(key string, episodes []model.Episode, ttl time.Duration) error {
	data, err := msgpack.Marshal(episodes)
	if err != nil {
		return err
	}
	return c.client.Set(key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
