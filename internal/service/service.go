// Package service orchestrates the forecast engine, series generator, metrics
// tables and snapshot cache behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-lab/internal/cache"
	"github.com/kjstillabower/forecast-lab/internal/evaluation"
	"github.com/kjstillabower/forecast-lab/internal/forecast"
	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/numeric"
	"github.com/kjstillabower/forecast-lab/internal/observability"
	"github.com/kjstillabower/forecast-lab/internal/series"
)

// ErrSnapshotNotFound is returned when a snapshot id is unknown or expired.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// TotalSamples is the size of the hourly one-year dataset the reference table was measured on.
const TotalSamples = 8760

// Options configures ForecastService. Zero values take defaults.
type Options struct {
	// SnapshotTTL is how long created snapshots stay retrievable. Default 10m.
	SnapshotTTL time.Duration
	// SnapshotPoints is the series length for snapshots when the caller passes 0. Default 30.
	SnapshotPoints int
	// BuildTimeout bounds a shared latest-snapshot build. Default 10s.
	BuildTimeout time.Duration
}

// ForecastService is the application layer.
type ForecastService struct {
	engine    *forecast.Engine
	generator *series.Generator
	cache     cache.Cache
	opts      Options
	coalescer *snapshotCoalescer
	now       func() time.Time
	newID     func() string
}

// NewForecastService wires the service. A nil cache uses an in-memory one.
func NewForecastService(engine *forecast.Engine, generator *series.Generator, c cache.Cache, opts Options) *ForecastService {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 10 * time.Minute
	}
	if opts.SnapshotPoints <= 0 {
		opts.SnapshotPoints = 30
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 10 * time.Second
	}
	if c == nil {
		c = cache.NewInMemoryCache()
	}
	return &ForecastService{
		engine:    engine,
		generator: generator,
		cache:     c,
		opts:      opts,
		coalescer: newSnapshotCoalescer(opts.BuildTimeout),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// loggerFromContext returns the request-scoped logger set by the HTTP middleware, or a no-op logger.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value("logger").(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// ModelSummary is a registry entry together with its reference metrics.
type ModelSummary struct {
	models.ModelInfo
	Metrics models.ModelMetrics `json:"metrics"`
}

// Models lists every registered model in registry order.
func (s *ForecastService) Models() []ModelSummary {
	ref := evaluation.Reference()
	out := make([]ModelSummary, 0, len(ref))
	for _, info := range models.Registry() {
		out = append(out, ModelSummary{ModelInfo: info, Metrics: ref[info.ID]})
	}
	return out
}

// Predict runs one forecast.
func (s *ForecastService) Predict(ctx context.Context, features models.WeatherFeatures, model models.ModelID) (models.PredictionResult, error) {
	logger := loggerFromContext(ctx)
	start := time.Now()
	res, err := s.engine.Predict(ctx, features, model)
	if err != nil {
		observability.RecordPredictionError(predictionErrorReason(err))
		logger.Debug("prediction failed", zap.Stringer("model", model), zap.Error(err))
		return models.PredictionResult{}, err
	}
	elapsed := time.Since(start)
	observability.RecordPrediction(model.String(), elapsed)
	logger.Debug("prediction served",
		zap.Stringer("model", model),
		zap.Float64("predicted_temp", res.PredictedTemp),
		zap.Duration("duration", elapsed))
	return res, nil
}

// Compare runs every model concurrently against the same features.
func (s *ForecastService) Compare(ctx context.Context, features models.WeatherFeatures) ([]models.PredictionResult, error) {
	logger := loggerFromContext(ctx)
	start := time.Now()
	results, err := s.engine.PredictAll(ctx, features)
	if err != nil {
		observability.RecordPredictionError(predictionErrorReason(err))
		logger.Debug("comparison failed", zap.Error(err))
		return nil, err
	}
	elapsed := time.Since(start)
	for _, r := range results {
		observability.RecordPrediction(r.Model.String(), elapsed)
	}
	logger.Debug("comparison served", zap.Int("models", len(results)), zap.Duration("duration", elapsed))
	return results, nil
}

func predictionErrorReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidModel):
		return "invalid_model"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unknown"
	}
}

// History generates a fresh synthetic series of n points.
func (s *ForecastService) History(ctx context.Context, n int) ([]models.HistoricalDataPoint, error) {
	points, err := s.generator.Generate(n)
	if err != nil {
		return nil, err
	}
	observability.HistoryPointsGenerated.Add(float64(len(points)))
	loggerFromContext(ctx).Debug("series generated", zap.Int("points", len(points)))
	return points, nil
}

// Evaluation returns the reference table ranked best first.
func (s *ForecastService) Evaluation() []evaluation.Ranked {
	return evaluation.Rank(evaluation.Reference())
}

// EvaluationFor returns the reference metrics for one model.
func (s *ForecastService) EvaluationFor(model models.ModelID) (models.ModelMetrics, error) {
	return evaluation.Lookup(model)
}

// DefaultPoints asks the snapshot operations for the configured series length.
// A literal 0 builds an empty snapshot.
const DefaultPoints = -1

func (s *ForecastService) resolvePoints(points int) int {
	if points == DefaultPoints {
		return s.opts.SnapshotPoints
	}
	return points
}

// BuildSnapshot generates and scores a series without storing it.
func (s *ForecastService) BuildSnapshot(ctx context.Context, points int) (models.ComparisonSnapshot, error) {
	points = s.resolvePoints(points)
	data, err := s.History(ctx, points)
	if err != nil {
		return models.ComparisonSnapshot{}, err
	}
	return models.ComparisonSnapshot{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Points:    len(data),
		Series:    data,
		Scores:    roundTable(evaluation.Score(data)),
		Reference: evaluation.Reference(),
	}, nil
}

// roundTable rounds scored metrics to four places for display stability.
func roundTable(t evaluation.Table) map[models.ModelID]models.ModelMetrics {
	out := make(map[models.ModelID]models.ModelMetrics, len(t))
	for id, m := range t {
		out[id] = models.ModelMetrics{
			MSE:  numeric.Round(m.MSE, 4),
			RMSE: numeric.Round(m.RMSE, 4),
			MAE:  numeric.Round(m.MAE, 4),
			R2:   numeric.Round(m.R2, 4),
		}
	}
	return out
}

// CreateSnapshot builds a snapshot and stores it under its id. A cache write
// failure is logged and the snapshot is still returned.
func (s *ForecastService) CreateSnapshot(ctx context.Context, points int) (models.ComparisonSnapshot, error) {
	logger := loggerFromContext(ctx)
	snap, err := s.BuildSnapshot(ctx, points)
	if err != nil {
		return models.ComparisonSnapshot{}, err
	}
	observability.SnapshotsCreatedTotal.Inc()
	s.store(ctx, cache.SnapshotKey(snap.ID), snap)
	logger.Info("snapshot created", zap.String("snapshot_id", snap.ID), zap.Int("points", snap.Points))
	return snap, nil
}

// Snapshot fetches a stored snapshot by id. Latest-per-length entries are not
// reachable by their cache key.
func (s *ForecastService) Snapshot(ctx context.Context, id string) (models.ComparisonSnapshot, error) {
	snap, ok, err := s.cache.Get(ctx, cache.SnapshotKey(id))
	if err != nil {
		observability.SnapshotCacheRequestsTotal.WithLabelValues("get", "error").Inc()
		return models.ComparisonSnapshot{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	if !ok {
		observability.SnapshotCacheRequestsTotal.WithLabelValues("get", "miss").Inc()
		return models.ComparisonSnapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	observability.SnapshotCacheRequestsTotal.WithLabelValues("get", "hit").Inc()
	return snap, nil
}

// Latest returns the warmed snapshot for a series length, building and storing
// one on a miss. Concurrent misses share a single build, which is stored both
// as the latest entry and under its id. A cache read error is treated as a miss.
func (s *ForecastService) Latest(ctx context.Context, points int) (models.ComparisonSnapshot, error) {
	points = s.resolvePoints(points)
	logger := loggerFromContext(ctx)
	key := cache.LatestKey(points)
	snap, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		observability.SnapshotCacheRequestsTotal.WithLabelValues("get", "error").Inc()
		logger.Warn("latest snapshot lookup failed", zap.String("key", key), zap.Error(err))
	case ok:
		observability.SnapshotCacheRequestsTotal.WithLabelValues("get", "hit").Inc()
		return snap, nil
	default:
		observability.SnapshotCacheRequestsTotal.WithLabelValues("get", "miss").Inc()
	}

	snap, shared, err := s.coalescer.Do(ctx, key, func(ctx context.Context) (models.ComparisonSnapshot, error) {
		built, err := s.BuildSnapshot(ctx, points)
		if err != nil {
			return models.ComparisonSnapshot{}, err
		}
		observability.SnapshotsCreatedTotal.Inc()
		s.store(ctx, cache.SnapshotKey(built.ID), built)
		s.store(ctx, key, built)
		return built, nil
	})
	if err != nil {
		return models.ComparisonSnapshot{}, err
	}
	logger.Debug("latest snapshot built", zap.String("key", key), zap.Bool("shared", shared))
	return snap, nil
}

func (s *ForecastService) store(ctx context.Context, key string, snap models.ComparisonSnapshot) {
	if err := s.cache.Set(ctx, key, snap, s.opts.SnapshotTTL); err != nil {
		observability.SnapshotCacheRequestsTotal.WithLabelValues("set", "error").Inc()
		loggerFromContext(ctx).Warn("snapshot store failed", zap.String("key", key), zap.Error(err))
		return
	}
	observability.SnapshotCacheRequestsTotal.WithLabelValues("set", "stored").Inc()
}

// Dashboard is the landing-page summary.
type Dashboard struct {
	BestModel     models.ModelID `json:"bestModel"`
	BestModelName string         `json:"bestModelName"`
	BestR2        float64        `json:"bestR2"`
	AvgError      float64        `json:"avgError"`
	TotalSamples  int            `json:"totalSamples"`
	ModelsLoaded  int            `json:"modelsLoaded"`
	Features      []string       `json:"features"`
	Status        string         `json:"status"`
}

var featureNames = []string{
	"Temperature (C)", "Humidity (%)", "Wind Speed (km/h)",
	"Hour of Day", "Day of Week", "Is Weekend", "Month",
}

// Dashboard summarizes the reference table. status is the caller's view of service health.
func (s *ForecastService) Dashboard(status string) Dashboard {
	ref := evaluation.Reference()
	d := Dashboard{
		TotalSamples: TotalSamples,
		ModelsLoaded: len(models.All()),
		Features:     append([]string(nil), featureNames...),
		Status:       status,
	}
	if best, ok := evaluation.Best(ref); ok {
		d.BestModel = best.Model
		d.BestModelName = best.Name
		d.BestR2 = best.Metrics.R2
		d.AvgError = numeric.Round(best.Metrics.RMSE, 2)
	}
	return d
}
