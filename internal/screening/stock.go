package screening

import "math"

// Stock is a screenable record. Symbol and Sector are always non-empty.
// A metric missing from Metrics means the data was unavailable; present
// values are always finite.
type Stock struct {
	Symbol  string
	Name    string
	Sector  string
	Metrics map[Metric]float64
}

// Metric returns the value for m and whether it is present. NaN and Inf are
// reported as absent so a bad upstream computation can never leak into
// comparisons.
func (s Stock) Metric(m Metric) (float64, bool) {
	v, ok := s.Metrics[m]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// SetMetric records a metric value, coercing NaN/Inf to absent.
func (s *Stock) SetMetric(m Metric, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if s.Metrics == nil {
		s.Metrics = make(map[Metric]float64)
	}
	s.Metrics[m] = v
}
