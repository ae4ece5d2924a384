// Package index computes composite demographic-vulnerability indexes:
// rank percentiles, raw and percentile composites, PCA scores, and
// multi-scale threshold exceedances.
package index

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// PercentileRank replaces each value with its rank among the non-missing
// values of the column, scaled to [0, 100]. Ties receive averaged ranks.
// NaN inputs yield NaN outputs and do not shift the ranks of the rest.
func PercentileRank(values []float64) []float64 {
	out := make([]float64, len(values))

	type indexed struct {
		val float64
		pos int
	}
	present := make([]indexed, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		present = append(present, indexed{val: v, pos: i})
	}

	n := len(present)
	if n == 0 {
		return out
	}

	sort.Slice(present, func(i, j int) bool { return present[i].val < present[j].val })

	// Average ranks within tie groups. Ranks are 1-based.
	for i := 0; i < n; {
		j := i + 1
		for j < n && present[j].val == present[i].val {
			j++
		}
		// Ranks i+1..j averaged over the tie group.
		avgRank := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			out[present[k].pos] = avgRank / float64(n) * 100
		}
		i = j
	}

	return out
}

// Quantile returns the value at quantile q of the non-missing entries,
// using linear interpolation between order statistics. An empty or
// all-missing input yields NaN.
func Quantile(values []float64, q float64) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN()
	}
	sort.Float64s(present)
	return stat.Quantile(q, stat.LinInterp, present, nil)
}
