// Package screening implements the intent-driven filtering, ranking, and
// aggregation engine behind the stock-screening pipeline. It is pure
// computation: no I/O, no shared state, safe for concurrent use as long as
// each call gets its own population snapshot.
package screening

// Metric identifies a numeric attribute of a screenable stock. The set is
// closed; metric access is always through this type, never by probing
// arbitrary string keys.
type Metric string

const (
	MetricPrice             Metric = "price"
	MetricPERatio           Metric = "peRatio"
	MetricPBRatio           Metric = "pbRatio"
	MetricDebtToEquity      Metric = "debtToEquity"
	MetricRevenueGrowth     Metric = "revenueGrowth"
	MetricDividendYield     Metric = "dividendYield"
	MetricFreeCashFlowYield Metric = "freeCashFlowYield"
	MetricMarketCap         Metric = "marketCap"
)

var allMetrics = []Metric{
	MetricPrice,
	MetricPERatio,
	MetricPBRatio,
	MetricDebtToEquity,
	MetricRevenueGrowth,
	MetricDividendYield,
	MetricFreeCashFlowYield,
	MetricMarketCap,
}

// AllMetrics returns the full metric set in display order.
func AllMetrics() []Metric {
	out := make([]Metric, len(allMetrics))
	copy(out, allMetrics)
	return out
}

// ParseMetric validates a raw metric name against the closed set.
func ParseMetric(s string) (Metric, bool) {
	for _, m := range allMetrics {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}
