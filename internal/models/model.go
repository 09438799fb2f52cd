package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidModel is returned when a model identifier is outside the registry.
var ErrInvalidModel = errors.New("invalid model")

// ModelID identifies one of the fixed forecasting strategies.
type ModelID int

const (
	Persistence ModelID = iota
	LinearRegression
	KNN
	GRU
)

// ModelInfo is the static registry entry for a model.
type ModelInfo struct {
	ID         ModelID `json:"id"`
	Name       string  `json:"name"`
	Column     string  `json:"column"`
	Technique  string  `json:"technique"`
	Confidence float64 `json:"confidence"`
}

var registry = [...]ModelInfo{
	Persistence: {
		ID:         Persistence,
		Name:       "Persistence",
		Column:     "persistence",
		Technique:  "naive baseline",
		Confidence: 0.85,
	},
	LinearRegression: {
		ID:         LinearRegression,
		Name:       "Linear Regression",
		Column:     "lr",
		Technique:  "linear model",
		Confidence: 0.90,
	},
	KNN: {
		ID:         KNN,
		Name:       "KNN",
		Column:     "knn",
		Technique:  "instance-based regressor",
		Confidence: 0.88,
	},
	GRU: {
		ID:         GRU,
		Name:       "GRU (Deep Learning)",
		Column:     "gru",
		Technique:  "recurrent non-linear model",
		Confidence: 0.98,
	},
}

var keys = [...]string{
	Persistence:      "persistence",
	LinearRegression: "linear_regression",
	KNN:              "knn",
	GRU:              "gru",
}

// All returns every model in registry order.
func All() []ModelID {
	return []ModelID{Persistence, LinearRegression, KNN, GRU}
}

// Registry returns the static info for every model in registry order.
func Registry() []ModelInfo {
	out := make([]ModelInfo, len(registry))
	copy(out, registry[:])
	return out
}

// IsValid reports whether m is one of the registered models.
func (m ModelID) IsValid() bool {
	return m >= Persistence && m <= GRU
}

// Info returns the registry entry for m.
func (m ModelID) Info() (ModelInfo, error) {
	if !m.IsValid() {
		return ModelInfo{}, fmt.Errorf("%w: %d", ErrInvalidModel, int(m))
	}
	return registry[m], nil
}

// String returns the stable key used in JSON and URLs.
func (m ModelID) String() string {
	if !m.IsValid() {
		return fmt.Sprintf("model(%d)", int(m))
	}
	return keys[m]
}

// DisplayName returns the human-readable model name.
func (m ModelID) DisplayName() string {
	if !m.IsValid() {
		return m.String()
	}
	return registry[m].Name
}

// MarshalText implements encoding.TextMarshaler.
func (m ModelID) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidModel, int(m))
	}
	return []byte(keys[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ModelID) UnmarshalText(text []byte) error {
	id, err := ParseModelID(string(text))
	if err != nil {
		return err
	}
	*m = id
	return nil
}

// ParseModelID resolves a key, series column or display name, ignoring case
// and surrounding whitespace.
func ParseModelID(s string) (ModelID, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return 0, fmt.Errorf("%w: empty identifier", ErrInvalidModel)
	}
	for _, id := range All() {
		info := registry[id]
		if norm == keys[id] || norm == info.Column || norm == strings.ToLower(info.Name) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidModel, s)
}
