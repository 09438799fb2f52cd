package cache

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/kjstillabower/forecast-lab/internal/circuitbreaker"
	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/observability"
)

// BreakerCache routes calls to a remote backend through a circuit breaker and
// records per-operation latency and error metrics.
type BreakerCache struct {
	next    Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerCache wraps next. A nil breaker only instruments.
func NewBreakerCache(next Cache, breaker *circuitbreaker.CircuitBreaker) *BreakerCache {
	return &BreakerCache{next: next, breaker: breaker}
}

// Get implements Cache.
func (c *BreakerCache) Get(ctx context.Context, key string) (models.ComparisonSnapshot, bool, error) {
	var (
		out models.ComparisonSnapshot
		hit bool
	)
	err := c.do(ctx, "get", func(ctx context.Context) error {
		var err error
		out, hit, err = c.next.Get(ctx, key)
		return err
	})
	if err != nil {
		return models.ComparisonSnapshot{}, false, err
	}
	return out, hit, nil
}

// Set implements Cache.
func (c *BreakerCache) Set(ctx context.Context, key string, value models.ComparisonSnapshot, ttl time.Duration) error {
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.next.Set(ctx, key, value, ttl)
	})
}

// Ping implements Pinger when the wrapped backend does. Pings bypass the breaker
// so /health reports actual reachability.
func (c *BreakerCache) Ping(ctx context.Context) error {
	if p, ok := c.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *BreakerCache) do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, fn)
	} else {
		err = fn(ctx)
	}
	status := "success"
	if err != nil {
		status = "error"
		observability.CacheErrorsTotal.WithLabelValues(op, errorCategory(err)).Inc()
	}
	observability.CacheOperationDurationSeconds.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func errorCategory(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "connection"
	default:
		return "unknown"
	}
}
