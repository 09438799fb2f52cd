// Package forecast produces single-step temperature forecasts under one of
// the registered models.
package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/numeric"
	"github.com/kjstillabower/forecast-lab/internal/randsrc"
)

// Default simulated inference latency range.
const (
	DefaultLatencyMin = 400 * time.Millisecond
	DefaultLatencyMax = 900 * time.Millisecond
)

// processingTimeMs is drawn from [processingTimeBase, processingTimeBase+processingTimeSpan).
const (
	processingTimeBase = 20
	processingTimeSpan = 100
)

// Config holds engine parameters. Zero latency values disable the wait.
type Config struct {
	LatencyMin time.Duration
	LatencyMax time.Duration
	Sources    randsrc.Factory
}

// Engine computes forecasts. It holds no mutable state, so one Engine serves
// any number of concurrent callers.
type Engine struct {
	latencyMin time.Duration
	latencyMax time.Duration
	sources    randsrc.Factory
}

// NewEngine creates an Engine. A nil Sources factory uses randsrc.NewFactory.
// LatencyMax below LatencyMin is raised to LatencyMin.
func NewEngine(cfg Config) *Engine {
	if cfg.LatencyMin < 0 {
		cfg.LatencyMin = 0
	}
	if cfg.LatencyMax < cfg.LatencyMin {
		cfg.LatencyMax = cfg.LatencyMin
	}
	if cfg.Sources == nil {
		cfg.Sources = randsrc.NewFactory()
	}
	return &Engine{
		latencyMin: cfg.LatencyMin,
		latencyMax: cfg.LatencyMax,
		sources:    cfg.Sources,
	}
}

// LatencyRange returns the configured simulated latency bounds.
func (e *Engine) LatencyRange() (min, max time.Duration) {
	return e.latencyMin, e.latencyMax
}

// Predict returns the next-step forecast for features under model. An
// unregistered model fails immediately with models.ErrInvalidModel. The call
// then waits for the simulated latency and returns ctx.Err() if ctx ends first.
func (e *Engine) Predict(ctx context.Context, features models.WeatherFeatures, model models.ModelID) (models.PredictionResult, error) {
	info, err := model.Info()
	if err != nil {
		return models.PredictionResult{}, err
	}
	predict := formulas[model]
	if predict == nil {
		return models.PredictionResult{}, fmt.Errorf("%w: no formula for %s", models.ErrInvalidModel, model)
	}

	src := e.sources()
	if err := wait(ctx, e.latency(src)); err != nil {
		return models.PredictionResult{}, fmt.Errorf("predict %s: %w", model, err)
	}

	predicted := numeric.Round(predict(features, src), 2)
	return models.PredictionResult{
		Model:            model,
		PredictedTemp:    predicted,
		Confidence:       numeric.Round(info.Confidence, 2),
		ProcessingTimeMs: processingTimeBase + src.IntN(processingTimeSpan),
		Trend:            models.TrendFor(predicted, features.Temperature),
	}, nil
}

// PredictAll runs one prediction per registered model concurrently and
// returns the results in registry order. The first error wins.
func (e *Engine) PredictAll(ctx context.Context, features models.WeatherFeatures) ([]models.PredictionResult, error) {
	ids := models.All()
	results := make([]models.PredictionResult, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.Predict(ctx, features, id)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// latency draws the simulated wait. A draw is always consumed so the
// remaining draws do not depend on the configured range.
func (e *Engine) latency(src randsrc.Source) time.Duration {
	u := src.Float64()
	span := e.latencyMax - e.latencyMin
	return e.latencyMin + time.Duration(u*float64(span))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
