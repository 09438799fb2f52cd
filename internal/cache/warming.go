package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/observability"
)

// SnapshotBuilder is implemented by the service layer. Declared here so the
// warmer does not depend on the service package.
type SnapshotBuilder interface {
	BuildSnapshot(ctx context.Context, points int) (models.ComparisonSnapshot, error)
}

// SnapshotWarmer keeps one pre-built snapshot per series length under LatestKey.
// Each snapshot is also stored under SnapshotKey so its id can be fetched.
type SnapshotWarmer struct {
	builder SnapshotBuilder
	cache   Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSnapshotWarmer returns a warmer writing to c with the given TTL. logger may be nil.
func NewSnapshotWarmer(builder SnapshotBuilder, c Cache, ttl time.Duration, logger *zap.Logger) *SnapshotWarmer {
	return &SnapshotWarmer{builder: builder, cache: c, ttl: ttl, logger: logger}
}

// Warm builds and stores a snapshot for each length concurrently.
// All failures are joined into the returned error.
func (w *SnapshotWarmer) Warm(ctx context.Context, lengths []int) error {
	start := time.Now()
	observability.SnapshotWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Debug("warming snapshots", zap.Ints("lengths", lengths))
	}
	var wg sync.WaitGroup
	errs := make([]error, len(lengths))
	for i, n := range lengths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.warmOne(ctx, n)
		}()
	}
	wg.Wait()
	err := errors.Join(errs...)

	duration := time.Since(start).Seconds()
	observability.SnapshotWarmingDurationSeconds.Observe(duration)
	if err != nil {
		observability.SnapshotWarmingErrorsTotal.Inc()
	}
	if w.logger != nil {
		w.logger.Info("snapshot warming complete",
			zap.Int("lengths", len(lengths)),
			zap.Float64("duration_seconds", duration),
			zap.Error(err))
	}
	return err
}

func (w *SnapshotWarmer) warmOne(ctx context.Context, points int) error {
	snap, err := w.builder.BuildSnapshot(ctx, points)
	if err != nil {
		return fmt.Errorf("warm %d points: build: %w", points, err)
	}
	for _, key := range []string{SnapshotKey(snap.ID), LatestKey(points)} {
		if err := w.cache.Set(ctx, key, snap, w.ttl); err != nil {
			return fmt.Errorf("warm %d points: store %s: %w", points, key, err)
		}
	}
	return nil
}

// WarmPeriodic runs Warm immediately and then every interval until ctx is done.
func (w *SnapshotWarmer) WarmPeriodic(ctx context.Context, lengths []int, interval time.Duration) error {
	if err := w.Warm(ctx, lengths); err != nil && w.logger != nil {
		w.logger.Warn("initial snapshot warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, lengths); err != nil && w.logger != nil {
				w.logger.Warn("periodic snapshot warm failed", zap.Error(err))
			}
		}
	}
}
