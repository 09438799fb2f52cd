package evaluation

import (
	"math"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

// Score computes MSE, RMSE, MAE and R2 of every model column against the
// actual values of series. An empty series scores zero for every model. When
// the actual values have no variance R2 is 1 for a perfect fit and 0 otherwise.
func Score(series []models.HistoricalDataPoint) Table {
	out := make(Table, len(models.All()))
	if len(series) == 0 {
		for _, id := range models.All() {
			out[id] = models.ModelMetrics{}
		}
		return out
	}

	actual := make([]float64, len(series))
	for i, p := range series {
		actual[i] = p.Actual
	}
	mean := meanFloat64(actual)
	var totalSS float64
	for _, a := range actual {
		d := a - mean
		totalSS += d * d
	}

	n := float64(len(series))
	for _, id := range models.All() {
		var sqErr, absErr float64
		for i, p := range series {
			diff := p.Value(id) - actual[i]
			sqErr += diff * diff
			absErr += math.Abs(diff)
		}
		mse := sqErr / n
		out[id] = models.ModelMetrics{
			MSE:  mse,
			RMSE: math.Sqrt(mse),
			MAE:  absErr / n,
			R2:   rSquared(sqErr, totalSS),
		}
	}
	return out
}

func rSquared(residualSS, totalSS float64) float64 {
	if totalSS == 0 {
		if residualSS == 0 {
			return 1
		}
		return 0
	}
	return 1 - residualSS/totalSS
}

func meanFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
