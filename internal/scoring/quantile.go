package scoring

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of sorted using linear interpolation between
// closest ranks (the default of numpy and pandas). sorted must be ascending and
// non-empty; p must lie in [0,1].
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// quartiles returns the 25th, 50th and 75th percentiles of the day diffs.
func quartiles(dayDiffs []int) [3]float64 {
	sorted := make([]float64, len(dayDiffs))
	for i, d := range dayDiffs {
		sorted[i] = float64(d)
	}
	sort.Float64s(sorted)
	return [3]float64{
		Quantile(sorted, 0.25),
		Quantile(sorted, 0.50),
		Quantile(sorted, 0.75),
	}
}
