package screening

import (
	"fmt"
	"sort"
)

// InvalidLimitError reports an explicit non-positive result limit.
type InvalidLimitError struct {
	Limit int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid limit %d: must be positive", e.Limit)
}

// RankAndLimit orders the stocks and truncates to the requested size.
//
// With a sort metric the order is ascending by that metric; without one the
// fallback is descending by market cap. In both cases an absent value ranks
// as 0, which places data gaps at the low end of ascending sorts. Both sorts
// are stable, so ties keep their input order.
//
// A nil limit means defaultLimit. An explicit limit of zero or less is a
// caller error, never silently clamped.
func RankAndLimit(stocks []Stock, sortMetric Metric, limit *int, defaultLimit int) ([]Stock, error) {
	n := defaultLimit
	if limit != nil {
		if *limit <= 0 {
			return nil, &InvalidLimitError{Limit: *limit}
		}
		n = *limit
	}

	out := make([]Stock, len(stocks))
	copy(out, stocks)

	if sortMetric != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return metricOrZero(out[i], sortMetric) < metricOrZero(out[j], sortMetric)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return metricOrZero(out[i], MetricMarketCap) > metricOrZero(out[j], MetricMarketCap)
		})
	}

	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func metricOrZero(s Stock, m Metric) float64 {
	v, ok := s.Metric(m)
	if !ok {
		return 0
	}
	return v
}
