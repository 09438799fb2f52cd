// Package validation checks caller input before it reaches the engine or generator.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

// ErrFeatureNotFinite is returned when a feature is NaN or infinite.
var ErrFeatureNotFinite = errors.New("feature must be a finite number")

// ErrFeatureOutOfRange is returned when a feature falls outside its documented domain.
var ErrFeatureOutOfRange = errors.New("feature out of range")

// ErrPointsInvalid is returned when a points parameter is not a non-negative integer.
var ErrPointsInvalid = errors.New("points must be a non-negative integer")

// ErrPointsTooLarge is returned when a points parameter exceeds the configured maximum.
var ErrPointsTooLarge = errors.New("points exceeds maximum")

// ErrModelEmpty is returned when no model identifier was supplied.
var ErrModelEmpty = errors.New("model is required")

type featureRange struct {
	name     string
	value    func(models.WeatherFeatures) float64
	min, max float64
}

var featureRanges = []featureRange{
	{"temperature", func(f models.WeatherFeatures) float64 { return f.Temperature }, math.Inf(-1), math.Inf(1)},
	{"humidity", func(f models.WeatherFeatures) float64 { return f.Humidity }, 0, 100},
	{"windSpeed", func(f models.WeatherFeatures) float64 { return f.WindSpeed }, 0, math.Inf(1)},
	{"hour", func(f models.WeatherFeatures) float64 { return float64(f.Hour) }, 0, 23},
	{"dayOfWeek", func(f models.WeatherFeatures) float64 { return float64(f.DayOfWeek) }, 0, 6},
	{"isWeekend", func(f models.WeatherFeatures) float64 { return float64(f.IsWeekend) }, 0, 1},
	{"month", func(f models.WeatherFeatures) float64 { return float64(f.Month) }, 1, 12},
}

// ValidateFeatures enforces finite values and the documented domain of each feature.
// The engine itself accepts anything; this is the strict-mode gate.
func ValidateFeatures(f models.WeatherFeatures) error {
	for _, r := range featureRanges {
		v := r.value(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", r.name, ErrFeatureNotFinite)
		}
		if v < r.min || v > r.max {
			return fmt.Errorf("%s=%g: %w", r.name, v, ErrFeatureOutOfRange)
		}
	}
	return nil
}

// ValidatePoints parses a points query value. Empty input yields def.
// max <= 0 disables the upper bound.
func ValidatePoints(input string, def, max int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrPointsInvalid
	}
	if max > 0 && n > max {
		return 0, fmt.Errorf("%d > %d: %w", n, max, ErrPointsTooLarge)
	}
	return n, nil
}

// ParseModel trims the input and resolves it against the registry.
func ParseModel(input string) (models.ModelID, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrModelEmpty
	}
	return models.ParseModelID(s)
}
