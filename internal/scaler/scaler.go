// Package scaler maps raw weather readings into the [0,1] analysis range
// using fixed min-max calibration bounds.
package scaler

import (
	"fmt"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

// Bounds is a calibrated min/max pair. Max must differ from Min.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Calibration bounds for the scaled features.
var (
	TemperatureBounds = Bounds{Min: -10, Max: 40}
	HumidityBounds    = Bounds{Min: 0, Max: 100}
	WindBounds        = Bounds{Min: 0, Max: 100}
)

// Feature names a calibrated input.
type Feature int

const (
	Temperature Feature = iota
	Humidity
	Wind
)

func (f Feature) String() string {
	switch f {
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case Wind:
		return "wind"
	default:
		return fmt.Sprintf("feature(%d)", int(f))
	}
}

// BoundsFor returns the calibration bounds of f.
func BoundsFor(f Feature) (Bounds, error) {
	switch f {
	case Temperature:
		return TemperatureBounds, nil
	case Humidity:
		return HumidityBounds, nil
	case Wind:
		return WindBounds, nil
	default:
		return Bounds{}, fmt.Errorf("no calibration bounds for %s", f)
	}
}

// Normalize computes (value - min) / (max - min).
func Normalize(value, min, max float64) float64 {
	return (value - min) / (max - min)
}

// Denormalize computes scaled * (max - min) + min, the inverse of Normalize.
func Denormalize(scaled, min, max float64) float64 {
	return scaled*(max-min) + min
}

// Normalize scales value with b.
func (b Bounds) Normalize(value float64) float64 {
	return Normalize(value, b.Min, b.Max)
}

// Denormalize maps a scaled value back to raw units.
func (b Bounds) Denormalize(scaled float64) float64 {
	return Denormalize(scaled, b.Min, b.Max)
}

// Scaled holds the calibrated features of a WeatherFeatures vector.
type Scaled struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Wind        float64 `json:"wind"`
}

// NormalizeFeatures scales the calibrated fields of f. Out-of-range inputs
// produce values outside [0,1] rather than being clamped.
func NormalizeFeatures(f models.WeatherFeatures) Scaled {
	return Scaled{
		Temperature: TemperatureBounds.Normalize(f.Temperature),
		Humidity:    HumidityBounds.Normalize(f.Humidity),
		Wind:        WindBounds.Normalize(f.WindSpeed),
	}
}
