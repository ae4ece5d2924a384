package index

import "math"

// MeanAcross computes the per-row arithmetic mean of the given columns.
// A row missing any input yields NaN; there is no partial averaging.
func MeanAcross(cols ...[]float64) []float64 {
	if len(cols) == 0 {
		return nil
	}
	n := len(cols[0])
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		sum := 0.0
		missing := false
		for _, col := range cols {
			if math.IsNaN(col[i]) {
				missing = true
				break
			}
			sum += col[i]
		}
		if missing {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(len(cols))
		}
	}
	return out
}

// BestAvailable selects the five-metric composite where the life-expectancy
// percentile is present and the four-metric composite otherwise. No
// interpolation between the two.
func BestAvailable(five, four, lifePct []float64) []float64 {
	out := make([]float64, len(five))
	for i := range five {
		if math.IsNaN(lifePct[i]) {
			out[i] = four[i]
		} else {
			out[i] = five[i]
		}
	}
	return out
}

// Scale multiplies each non-missing value by factor. Used to lift
// EJSCREEN fractional indicators onto 0-100 percentage units.
func Scale(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
		} else {
			out[i] = v * factor
		}
	}
	return out
}

// Negate flips a value around ceiling so that higher means worse,
// aligning life expectancy with the disadvantage direction of the
// other indicators.
func Negate(values []float64, ceiling float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
		} else {
			out[i] = ceiling - v
		}
	}
	return out
}
