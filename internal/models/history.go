package models

import (
	"math"
	"time"
)

// HistoricalDataPoint is one step of a synthetic series: the actual value
// and one forecast per model, each rounded to one decimal place.
type HistoricalDataPoint struct {
	Index       int     `json:"index"`
	Actual      float64 `json:"actual"`
	Persistence float64 `json:"persistence"`
	LR          float64 `json:"lr"`
	KNN         float64 `json:"knn"`
	GRU         float64 `json:"gru"`
}

// Value returns the forecast column for model m, or NaN for an unknown model.
func (p HistoricalDataPoint) Value(m ModelID) float64 {
	switch m {
	case Persistence:
		return p.Persistence
	case LinearRegression:
		return p.LR
	case KNN:
		return p.KNN
	case GRU:
		return p.GRU
	default:
		return math.NaN()
	}
}

// ModelMetrics summarizes forecast accuracy for one model.
type ModelMetrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// ComparisonSnapshot is a generated series frozen together with its scores so
// a comparison view can fetch the same data repeatedly.
type ComparisonSnapshot struct {
	ID        string                   `json:"id"`
	CreatedAt time.Time                `json:"createdAt"`
	Points    int                      `json:"points"`
	Series    []HistoricalDataPoint    `json:"series"`
	Scores    map[ModelID]ModelMetrics `json:"scores"`
	Reference map[ModelID]ModelMetrics `json:"reference"`
}
