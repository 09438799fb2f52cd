package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

const memcachedKeyPrefix = "forecast:snapshot:"

// maxRelativeExpiry is the longest TTL memcached treats as relative (30 days).
const maxRelativeExpiry = 30 * 24 * 60 * 60

// MemcachedCache stores JSON-encoded snapshots in memcached.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a client for a comma-separated server list
// ("localhost:11211" or "host1:11211,host2:11211"). Zero timeout or
// maxIdleConns keep the client defaults.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements Cache.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.ComparisonSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	item, err := c.client.Get(memcachedKeyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return models.ComparisonSnapshot{}, false, nil
	}
	if err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	s, err := decodeSnapshot(item.Value)
	if err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	return s, true, nil
}

// Set implements Cache. TTLs outside memcached's relative range fall back to one hour.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.ComparisonSnapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeSnapshot(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        memcachedKeyPrefix + key,
		Value:      raw,
		Expiration: memcachedExpiry(ttl),
	})
}

func memcachedExpiry(ttl time.Duration) int32 {
	sec := int64(ttl / time.Second)
	if sec <= 0 || sec > maxRelativeExpiry {
		return 3600
	}
	return int32(sec)
}

// Ping implements Pinger.
func (c *MemcachedCache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Ping()
}

// Close releases idle connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
