package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/numeric"
	"github.com/kjstillabower/forecast-lab/internal/randsrc"
)

func newTestEngine(sources randsrc.Factory) *Engine {
	return NewEngine(Config{Sources: sources})
}

// sampleFeatures covers in-domain vectors across hours, months and wind.
func sampleFeatures() []models.WeatherFeatures {
	var out []models.WeatherFeatures
	for _, temp := range []float64{-10, -3.25, 0, 12.5, 20, 33.75, 40} {
		for _, hour := range []int{0, 6, 12, 13, 18, 23} {
			for _, month := range []int{1, 3, 6, 9, 12} {
				out = append(out, models.WeatherFeatures{
					Temperature: temp,
					Humidity:    float64(hour * 4),
					WindSpeed:   float64(month * 3),
					Hour:        hour,
					DayOfWeek:   hour % 7,
					IsWeekend:   month % 2,
					Month:       month,
				})
			}
		}
	}
	return out
}

func TestEngine_Persistence(t *testing.T) {
	e := newTestEngine(nil)
	for _, f := range sampleFeatures() {
		res, err := e.Predict(context.Background(), f, models.Persistence)
		require.NoError(t, err)
		assert.Equal(t, numeric.Round(f.Temperature, 2), res.PredictedTemp)
		assert.Equal(t, 0.85, res.Confidence)
		assert.Equal(t, models.Persistence, res.Model)
	}
}

// TestEngine_LinearRegression_Deterministic verifies repeated calls agree.
func TestEngine_LinearRegression_Deterministic(t *testing.T) {
	e := newTestEngine(nil)
	for _, f := range sampleFeatures() {
		a, err := e.Predict(context.Background(), f, models.LinearRegression)
		require.NoError(t, err)
		b, err := e.Predict(context.Background(), f, models.LinearRegression)
		require.NoError(t, err)
		assert.Equal(t, a.PredictedTemp, b.PredictedTemp)
		assert.Equal(t, 0.90, a.Confidence)
	}
}

// TestEngine_LinearRegression_Scenario checks the default form values. The
// diurnal term is +0.5 up to and including hour 12 and -0.5 after it.
func TestEngine_LinearRegression_Scenario(t *testing.T) {
	e := newTestEngine(nil)
	f := models.DefaultFeatures()

	res, err := e.Predict(context.Background(), f, models.LinearRegression)
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.PredictedTemp)
	assert.Equal(t, 0.90, res.Confidence)

	f.Hour = 13
	res, err = e.Predict(context.Background(), f, models.LinearRegression)
	require.NoError(t, err)
	assert.Equal(t, 19.0, res.PredictedTemp)
}

func TestEngine_Persistence_Scenario(t *testing.T) {
	res, err := newTestEngine(nil).Predict(context.Background(), models.DefaultFeatures(), models.Persistence)
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.PredictedTemp)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, models.TrendDown, res.Trend)
}

// TestEngine_KNN_Bounded verifies the noise never moves the forecast more
// than one degree from the input temperature.
func TestEngine_KNN_Bounded(t *testing.T) {
	e := newTestEngine(randsrc.NewSeededFactory(42))
	for i := 0; i < 20; i++ {
		for _, f := range sampleFeatures() {
			res, err := e.Predict(context.Background(), f, models.KNN)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.PredictedTemp, f.Temperature-1)
			assert.LessOrEqual(t, res.PredictedTemp, f.Temperature+1)
			assert.Equal(t, 0.88, res.Confidence)
		}
	}
}

// TestEngine_KNN_FixedDraws pins the noise with injected draws. The first
// draw of each call is the latency, the second the noise.
func TestEngine_KNN_FixedDraws(t *testing.T) {
	tests := []struct {
		name  string
		noise float64
		want  float64
	}{
		{"centre", 0.5, 20},
		{"low", 0, 19},
		{"high", 0.75, 20.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := randsrc.Fixed(0.5, tc.noise, 0.5)
			res, err := newTestEngine(randsrc.FactoryOf(src)).Predict(context.Background(), models.DefaultFeatures(), models.KNN)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.PredictedTemp)
			assert.Equal(t, 70, res.ProcessingTimeMs)
			assert.Equal(t, 3, src.Draws())
		})
	}
}

// TestEngine_GRU_DeterministicAndBounded verifies the sinusoid and wind terms
// keep the forecast near 0.9 * temperature.
func TestEngine_GRU_DeterministicAndBounded(t *testing.T) {
	e := newTestEngine(nil)
	for _, f := range sampleFeatures() {
		a, err := e.Predict(context.Background(), f, models.GRU)
		require.NoError(t, err)
		b, err := e.Predict(context.Background(), f, models.GRU)
		require.NoError(t, err)
		assert.Equal(t, a.PredictedTemp, b.PredictedTemp)
		assert.Equal(t, 0.98, a.Confidence)

		base := 0.9 * f.Temperature
		lower := base - 2.0 - 0.02*f.WindSpeed - 0.005
		upper := base + 2.0 + 0.005
		assert.GreaterOrEqual(t, a.PredictedTemp, lower, "features %+v", f)
		assert.LessOrEqual(t, a.PredictedTemp, upper, "features %+v", f)
	}
}

func TestEngine_GRU_Known(t *testing.T) {
	f := models.WeatherFeatures{Temperature: 20, Hour: 6, Month: 12}
	res, err := newTestEngine(nil).Predict(context.Background(), f, models.GRU)
	require.NoError(t, err)
	// 18 + 1.5*sin(pi/2) + 0.5*cos(2pi)
	assert.Equal(t, 20.0, res.PredictedTemp)
	assert.Equal(t, models.TrendDown, res.Trend)
}

// TestEngine_InvalidModel verifies an unknown model fails before any wait.
func TestEngine_InvalidModel(t *testing.T) {
	e := NewEngine(Config{LatencyMin: time.Hour, LatencyMax: 2 * time.Hour})
	start := time.Now()
	_, err := e.Predict(context.Background(), models.DefaultFeatures(), models.ModelID(7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidModel))
	assert.Less(t, time.Since(start), time.Second)
}

// TestEngine_OutOfDomainInputs verifies arithmetic degrades without panics.
func TestEngine_OutOfDomainInputs(t *testing.T) {
	e := newTestEngine(nil)
	f := models.WeatherFeatures{Temperature: 1e6, Humidity: -50, WindSpeed: -10, Hour: 99, DayOfWeek: -3, IsWeekend: 5, Month: 0}
	for _, id := range models.All() {
		res, err := e.Predict(context.Background(), f, id)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(res.PredictedTemp), "%s produced NaN", id)
	}
}

func TestEngine_ProcessingTimeRange(t *testing.T) {
	e := newTestEngine(randsrc.NewSeededFactory(3))
	for i := 0; i < 500; i++ {
		res, err := e.Predict(context.Background(), models.DefaultFeatures(), models.Persistence)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.ProcessingTimeMs, 20)
		assert.Less(t, res.ProcessingTimeMs, 120)
	}
}

// TestEngine_LatencyCancelled verifies a cancelled context aborts the wait.
func TestEngine_LatencyCancelled(t *testing.T) {
	e := NewEngine(Config{LatencyMin: time.Minute, LatencyMax: 2 * time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.Predict(ctx, models.DefaultFeatures(), models.GRU)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEngine_LatencyApplied(t *testing.T) {
	e := NewEngine(Config{LatencyMin: 20 * time.Millisecond, LatencyMax: 30 * time.Millisecond})
	start := time.Now()
	_, err := e.Predict(context.Background(), models.DefaultFeatures(), models.Persistence)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(Config{LatencyMin: -time.Second, LatencyMax: -2 * time.Second})
	lo, hi := e.LatencyRange()
	assert.Equal(t, time.Duration(0), lo)
	assert.Equal(t, time.Duration(0), hi)
}

// TestEngine_PredictAll verifies one result per model in registry order.
func TestEngine_PredictAll(t *testing.T) {
	e := NewEngine(Config{LatencyMin: 5 * time.Millisecond, LatencyMax: 10 * time.Millisecond})
	results, err := e.PredictAll(context.Background(), models.DefaultFeatures())
	require.NoError(t, err)
	require.Len(t, results, len(models.All()))
	for i, id := range models.All() {
		assert.Equal(t, id, results[i].Model)
	}
	assert.Equal(t, 20.0, results[0].PredictedTemp)
}

func TestEngine_PredictAll_Cancelled(t *testing.T) {
	e := NewEngine(Config{LatencyMin: time.Minute, LatencyMax: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.PredictAll(ctx, models.DefaultFeatures())
	assert.ErrorIs(t, err, context.Canceled)
}

// TestFormulas_CoverRegistry verifies every registered model has a formula.
func TestFormulas_CoverRegistry(t *testing.T) {
	for _, id := range models.All() {
		require.Less(t, int(id), len(formulas))
		assert.NotNil(t, formulas[id], "missing formula for %s", id)
	}
}
