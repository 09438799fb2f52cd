package models

// WeatherFeatures is the feature vector describing current conditions.
// Values outside the documented domains are accepted; callers that need
// strict checks run validation.ValidateFeatures first.
type WeatherFeatures struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %, 0-100
	WindSpeed   float64 `json:"windSpeed"`   // km/h, >= 0
	Hour        int     `json:"hour"`        // 0-23
	DayOfWeek   int     `json:"dayOfWeek"`   // 0-6
	IsWeekend   int     `json:"isWeekend"`   // 0 or 1
	Month       int     `json:"month"`       // 1-12
}

// DefaultFeatures returns the values the prediction form starts with.
func DefaultFeatures() WeatherFeatures {
	return WeatherFeatures{
		Temperature: 20,
		Humidity:    50,
		WindSpeed:   10,
		Hour:        12,
		DayOfWeek:   2,
		IsWeekend:   0,
		Month:       6,
	}
}
