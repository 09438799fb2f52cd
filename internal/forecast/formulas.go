package forecast

import (
	"math"

	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/randsrc"
)

// formula computes the raw next-step temperature for one model class.
// Only KNN consumes a draw from src.
type formula func(f models.WeatherFeatures, src randsrc.Source) float64

// formulas is indexed by models.ModelID; every registered model has an entry.
var formulas = [...]formula{
	models.Persistence:      persistence,
	models.LinearRegression: linearRegression,
	models.KNN:              nearestNeighbours,
	models.GRU:              recurrent,
}

// persistence carries the current temperature forward unchanged.
func persistence(f models.WeatherFeatures, _ randsrc.Source) float64 {
	return f.Temperature
}

func linearRegression(f models.WeatherFeatures, _ randsrc.Source) float64 {
	diurnal := -0.5
	if f.Hour <= 12 {
		diurnal = 0.5
	}
	return f.Temperature*0.95 + f.Humidity*0.02 - f.WindSpeed*0.05 + diurnal
}

// nearestNeighbours adds bounded noise in [-1, 1) to the current temperature.
func nearestNeighbours(f models.WeatherFeatures, src randsrc.Source) float64 {
	noise := (src.Float64() - 0.5) * 2
	return f.Temperature + noise
}

// recurrent models diurnal and annual periodicity with sinusoids.
func recurrent(f models.WeatherFeatures, _ randsrc.Source) float64 {
	timeFactor := math.Sin(float64(f.Hour) / 24 * 2 * math.Pi)
	monthFactor := math.Cos(float64(f.Month) / 12 * 2 * math.Pi)
	return f.Temperature*0.9 + timeFactor*1.5 + monthFactor*0.5 - f.WindSpeed*0.02
}
