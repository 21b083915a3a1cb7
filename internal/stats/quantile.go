package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// valid returns the non-NaN values of x.
func valid(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// quantileSorted returns the p-quantile (0 <= p <= 1) of an ascending
// slice, interpolating linearly between the closest ranks: position
// (n-1)*p, as dataframe libraries report quartiles.
//
// stat.LinInterp interpolates the empirical CDF at p*n, one rank later;
// asking it for ((n-1)*p+1)/n lands on the same position.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	q := (float64(n-1)*p + 1) / float64(n)
	return stat.Quantile(math.Min(q, 1), stat.LinInterp, sorted, nil)
}

// Percentile returns the p-th percentile (0 <= p <= 100) of x, ignoring NaN
// values. It allocates a sorted copy.
func Percentile(x []float64, p float64) float64 {
	cp := valid(x)
	sort.Float64s(cp)
	return quantileSorted(cp, p/100)
}

// constant reports whether x has fewer than two values or all values equal.
func constant(x []float64) bool {
	for _, v := range x {
		if v != x[0] {
			return false
		}
	}
	return true
}
