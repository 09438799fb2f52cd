package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

const redisKeyPrefix = "forecast:snapshot:"

// RedisOptions configures NewRedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisCache stores JSON-encoded snapshots in Redis with SET ... EX.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a client. The connection is established lazily.
func NewRedisCache(opts RedisOptions) *RedisCache {
	ro := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.Timeout > 0 {
		ro.DialTimeout = opts.Timeout
		ro.ReadTimeout = opts.Timeout
		ro.WriteTimeout = opts.Timeout
	}
	return &RedisCache{client: redis.NewClient(ro)}
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (models.ComparisonSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ComparisonSnapshot{}, false, nil
	}
	if err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	s, err := decodeSnapshot(raw)
	if err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	return s, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value models.ComparisonSnapshot, ttl time.Duration) error {
	raw, err := encodeSnapshot(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err()
}

// Ping implements Pinger.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client. Call during shutdown.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
