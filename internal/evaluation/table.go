// Package evaluation holds the model accuracy table used by comparison views
// and the scoring function that derives the same figures from a series.
package evaluation

import (
	"fmt"
	"math"
	"sort"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

// sqrtTolerance bounds |rmse - sqrt(mse)| for every table entry.
const sqrtTolerance = 1e-6

// Table maps each model to its accuracy summary.
type Table map[models.ModelID]models.ModelMetrics

// NewMetrics builds a ModelMetrics with RMSE derived from MSE.
func NewMetrics(mse, mae, r2 float64) models.ModelMetrics {
	return models.ModelMetrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  mae,
		R2:   r2,
	}
}

// reference figures are illustrative constants ordered like the series noise:
// GRU best, Persistence worst.
var reference = Table{
	models.Persistence:      NewMetrics(3.24, 1.45, 0.82),
	models.LinearRegression: NewMetrics(2.15, 1.12, 0.89),
	models.KNN:              NewMetrics(2.89, 1.35, 0.85),
	models.GRU:              NewMetrics(1.05, 0.78, 0.95),
}

func init() {
	if err := Validate(reference); err != nil {
		panic(err)
	}
}

// Reference returns a copy of the static accuracy table.
func Reference() Table {
	out := make(Table, len(reference))
	for k, v := range reference {
		out[k] = v
	}
	return out
}

// Lookup returns the reference metrics for model.
func Lookup(model models.ModelID) (models.ModelMetrics, error) {
	m, ok := reference[model]
	if !ok {
		return models.ModelMetrics{}, fmt.Errorf("%w: %s", models.ErrInvalidModel, model)
	}
	return m, nil
}

// Validate checks that every registered model has an entry and that each
// entry satisfies rmse = sqrt(mse).
func Validate(t Table) error {
	for _, id := range models.All() {
		m, ok := t[id]
		if !ok {
			return fmt.Errorf("metrics table: missing entry for %s", id)
		}
		if m.MSE < 0 || m.MAE < 0 {
			return fmt.Errorf("metrics table: %s has negative error figures", id)
		}
		if math.Abs(m.RMSE-math.Sqrt(m.MSE)) >= sqrtTolerance {
			return fmt.Errorf("metrics table: %s rmse %v != sqrt(mse %v)", id, m.RMSE, m.MSE)
		}
		if m.R2 > 1 {
			return fmt.Errorf("metrics table: %s r2 %v above 1", id, m.R2)
		}
	}
	return nil
}

// Ranked is a table entry with its model.
type Ranked struct {
	Model   models.ModelID      `json:"model"`
	Name    string              `json:"name"`
	Metrics models.ModelMetrics `json:"metrics"`
}

// Rank orders the table by R2 descending, ties broken by lower RMSE and then
// registry order.
func Rank(t Table) []Ranked {
	out := make([]Ranked, 0, len(t))
	for id, m := range t {
		out = append(out, Ranked{Model: id, Name: id.DisplayName(), Metrics: m})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Metrics.R2 != b.Metrics.R2 {
			return a.Metrics.R2 > b.Metrics.R2
		}
		if a.Metrics.RMSE != b.Metrics.RMSE {
			return a.Metrics.RMSE < b.Metrics.RMSE
		}
		return a.Model < b.Model
	})
	return out
}

// Best returns the top-ranked entry. ok is false for an empty table.
func Best(t Table) (Ranked, bool) {
	ranked := Rank(t)
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	return ranked[0], true
}
