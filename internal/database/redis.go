package database

import (
	"fmt"

	"github.com/go-redis/redis"
)

// RedisStore keeps values in Redis without expiry.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedis connects to the server at redisURL ("redis://host:6379/0").
func NewRedis(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error         { return r.client.Close() }
func (r *RedisStore) DatabaseType() string { return "Redis" }

func (r *RedisStore) Get(key string) (string, error) {
	val, err := r.client.Get(key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (r *RedisStore) Set(key, value string) error {
	return r.client.Set(key, value, 0).Err()
}
