// Package series synthesizes historical actual/forecast series whose per-model
// noise encodes each model's accuracy ranking.
package series

import (
	"errors"
	"fmt"
	"math"

	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/numeric"
	"github.com/kjstillabower/forecast-lab/internal/randsrc"
)

// DefaultPoints is the series length used when the caller does not pick one.
const DefaultPoints = 50

// ErrNegativeLength is returned for a negative series length.
var ErrNegativeLength = errors.New("series length must be >= 0")

const (
	baseTemp = 20.0

	shockSpread     = 3.0
	seasonAmplitude = 2.0
	seasonPeriodDiv = 5.0
	lrNoiseSpread   = 1.5
	knnNoiseSpread  = 2.5
	gruNoiseSpread  = 0.8
)

// Generator builds series from a random source factory.
type Generator struct {
	sources randsrc.Factory
}

// NewGenerator creates a Generator. A nil factory uses randsrc.NewFactory.
func NewGenerator(sources randsrc.Factory) *Generator {
	if sources == nil {
		sources = randsrc.NewFactory()
	}
	return &Generator{sources: sources}
}

// Generate returns n points indexed 0..n-1. n == 0 yields an empty series.
func (g *Generator) Generate(n int) ([]models.HistoricalDataPoint, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeLength, n)
	}
	return Fold(n, g.sources()), nil
}

// walk is the generator state threaded through each step.
type walk struct {
	current float64
}

// Fold runs the step function n times over a walk seeded at the base
// temperature, drawing from src in the order shock, lr, knn, gru.
func Fold(n int, src randsrc.Source) []models.HistoricalDataPoint {
	out := make([]models.HistoricalDataPoint, 0, n)
	state := walk{current: baseTemp}
	for i := 0; i < n; i++ {
		var p models.HistoricalDataPoint
		state, p = step(state, i, src)
		out = append(out, p)
	}
	return out
}

// step recomputes the current value from the base, a fresh shock and the
// seasonal term. The previous value is not carried into the next one.
// Persistence removes the shock, so it follows the seasonal curve but misses
// the latest change.
func step(_ walk, i int, src randsrc.Source) (walk, models.HistoricalDataPoint) {
	change := centred(src, shockSpread)
	seasonality := math.Sin(float64(i)/seasonPeriodDiv) * seasonAmplitude
	current := baseTemp + change + seasonality

	p := models.HistoricalDataPoint{
		Index:       i,
		Actual:      numeric.Round(current, 1),
		Persistence: numeric.Round(current-change, 1),
		LR:          numeric.Round(current+centred(src, lrNoiseSpread), 1),
		KNN:         numeric.Round(current+centred(src, knnNoiseSpread), 1),
		GRU:         numeric.Round(current+centred(src, gruNoiseSpread), 1),
	}
	return walk{current: current}, p
}

// centred draws a uniform value in [-spread/2, spread/2).
func centred(src randsrc.Source, spread float64) float64 {
	return (src.Float64() - 0.5) * spread
}
