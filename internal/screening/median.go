package screening

import (
	"math"
	"sort"
)

// Medians computes the per-metric median over the entire population, rounded
// to 2 decimal places. A metric with no present values anywhere in the
// population is omitted from the result, never reported as 0.
func Medians(population []Stock, metrics []Metric) map[Metric]float64 {
	out := make(map[Metric]float64)
	seen := make(map[Metric]bool)

	for _, m := range metrics {
		if seen[m] {
			continue
		}
		seen[m] = true

		values := make([]float64, 0, len(population))
		for _, s := range population {
			if v, ok := s.Metric(m); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		out[m] = round2(median(values))
	}

	return out
}

// median uses the standard definition: the middle value, or the average of
// the two middle values for even counts.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
