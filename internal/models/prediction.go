package models

// Trend directions reported alongside a prediction.
const (
	TrendUp   = "up"
	TrendDown = "down"
)

// PredictionResult is a single next-step forecast. A new value is built for
// every engine call.
type PredictionResult struct {
	Model            ModelID `json:"model"`
	PredictedTemp    float64 `json:"predictedTemp"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs int     `json:"processingTimeMs"`
	Trend            string  `json:"trend"`
}

// TrendFor compares a prediction with the current temperature.
func TrendFor(predicted, current float64) string {
	if predicted > current {
		return TrendUp
	}
	return TrendDown
}
