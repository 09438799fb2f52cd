package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

// call is one in-progress snapshot build shared by every caller asking for the same key.
type call struct {
	done   chan struct{}
	result models.ComparisonSnapshot
	err    error
}

// snapshotCoalescer runs at most one build per key at a time. Later callers
// wait for the first caller's result instead of generating their own series.
type snapshotCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*call
	timeout  time.Duration
}

func newSnapshotCoalescer(timeout time.Duration) *snapshotCoalescer {
	return &snapshotCoalescer{
		inFlight: make(map[string]*call),
		timeout:  timeout,
	}
}

// Do returns the result of fn for key, sharing an in-progress build if there is one.
// fn runs detached from ctx cancellation, bounded by the coalescer timeout, so one
// caller giving up does not fail the others. shared reports whether this caller joined.
func (c *snapshotCoalescer) Do(ctx context.Context, key string, fn func(context.Context) (models.ComparisonSnapshot, error)) (snap models.ComparisonSnapshot, shared bool, err error) {
	c.mu.Lock()
	cl, ok := c.inFlight[key]
	if !ok {
		cl = &call{done: make(chan struct{})}
		c.inFlight[key] = cl
		go c.run(ctx, key, cl, fn)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.result, ok, cl.err
	case <-ctx.Done():
		return models.ComparisonSnapshot{}, ok, ctx.Err()
	}
}

func (c *snapshotCoalescer) run(ctx context.Context, key string, cl *call, fn func(context.Context) (models.ComparisonSnapshot, error)) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	cl.result, cl.err = fn(runCtx)

	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()
	close(cl.done)
}
