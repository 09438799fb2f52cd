package scaler

import (
	"math"
	"testing"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

const epsilon = 1e-9

// TestNormalize_Bounds verifies the calibration endpoints map to 0 and 1.
func TestNormalize_Bounds(t *testing.T) {
	for _, f := range []Feature{Temperature, Humidity, Wind} {
		b, err := BoundsFor(f)
		if err != nil {
			t.Fatalf("BoundsFor(%s) error = %v", f, err)
		}
		if got := b.Normalize(b.Min); got != 0 {
			t.Errorf("%s: Normalize(min) = %v, want 0", f, got)
		}
		if got := b.Normalize(b.Max); got != 1 {
			t.Errorf("%s: Normalize(max) = %v, want 1", f, got)
		}
	}
}

// TestNormalize_RoundTrip verifies Normalize and Denormalize are inverses for
// values inside and outside every calibrated range.
func TestNormalize_RoundTrip(t *testing.T) {
	values := []float64{-1e6, -55.5, -10, -0.001, 0, 12.34, 20, 40, 99.99, 100, 250, 1e6}
	for _, f := range []Feature{Temperature, Humidity, Wind} {
		b, _ := BoundsFor(f)
		for _, v := range values {
			got := Denormalize(Normalize(v, b.Min, b.Max), b.Min, b.Max)
			tol := epsilon * math.Max(1, math.Abs(v))
			if math.Abs(got-v) > tol {
				t.Errorf("%s: round trip of %v = %v", f, v, got)
			}
			scaled := (v - b.Min) / (b.Max - b.Min)
			if back := b.Denormalize(scaled); math.Abs(back-v) > tol {
				t.Errorf("%s: Denormalize(%v) = %v, want %v", f, scaled, back, v)
			}
		}
	}
}

func TestNormalize_Known(t *testing.T) {
	if got := TemperatureBounds.Normalize(15); got != 0.5 {
		t.Errorf("Normalize(15°C) = %v, want 0.5", got)
	}
	if got := HumidityBounds.Normalize(50); got != 0.5 {
		t.Errorf("Normalize(50%%) = %v, want 0.5", got)
	}
	if got := WindBounds.Denormalize(0.25); got != 25 {
		t.Errorf("Denormalize(0.25) = %v, want 25", got)
	}
}

func TestBoundsFor_Unknown(t *testing.T) {
	if _, err := BoundsFor(Feature(9)); err == nil {
		t.Fatal("BoundsFor(9) error = nil, want error")
	}
}

// TestNormalizeFeatures verifies only calibrated fields are scaled and
// out-of-range values are not clamped.
func TestNormalizeFeatures(t *testing.T) {
	got := NormalizeFeatures(models.WeatherFeatures{Temperature: 40, Humidity: 120, WindSpeed: 0})
	if got.Temperature != 1 || got.Wind != 0 {
		t.Errorf("NormalizeFeatures = %+v", got)
	}
	if math.Abs(got.Humidity-1.2) > epsilon {
		t.Errorf("Humidity = %v, want 1.2", got.Humidity)
	}
}
