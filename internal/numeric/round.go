// Package numeric holds the rounding rule shared by every reported figure.
package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds x to the given number of decimal places, half away from zero,
// working on the shortest decimal representation of x so that 2.675 rounds to
// 2.68. NaN and infinities are returned unchanged.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}
