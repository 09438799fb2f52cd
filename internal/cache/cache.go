// Package cache stores comparison snapshots behind a backend-neutral interface.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

// Backend names accepted by config.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Cache stores snapshots with a TTL.
// Get returns (snapshot, true, nil) on hit and (zero, false, nil) on miss or expiry.
type Cache interface {
	Get(ctx context.Context, key string) (models.ComparisonSnapshot, bool, error)
	Set(ctx context.Context, key string, value models.ComparisonSnapshot, ttl time.Duration) error
}

// Pinger is implemented by backends that can report reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Key namespaces. Snapshot ids and latest-per-length entries never collide.
const (
	snapshotKeyPrefix = "id:"
	latestKeyPrefix   = "latest:"
)

// SnapshotKey is the key a snapshot is stored under by id.
func SnapshotKey(id string) string {
	return snapshotKeyPrefix + id
}

// LatestKey is the key the warmer keeps fresh for a series of the given length.
func LatestKey(points int) string {
	return latestKeyPrefix + strconv.Itoa(points)
}

// InMemoryCache is a mutex-protected map with lazy expiry.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.ComparisonSnapshot
	expiresAt time.Time
}

// NewInMemoryCache returns an empty in-process cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns the entry for key. Expired entries are removed on access.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ComparisonSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.ComparisonSnapshot{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		return models.ComparisonSnapshot{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores value until ttl elapses.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ComparisonSnapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func encodeSnapshot(s models.ComparisonSnapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.ID, err)
	}
	return raw, nil
}

func decodeSnapshot(raw []byte) (models.ComparisonSnapshot, error) {
	var s models.ComparisonSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.ComparisonSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
