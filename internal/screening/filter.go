package screening

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Op is a comparison operator in a filter key suffix.
type Op string

const (
	OpLt Op = "lt"
	OpGt Op = "gt"
	OpEq Op = "eq"
)

// InvalidFilterKeyError reports a filter key whose suffix is not a recognized
// operator or whose prefix is not a known metric. This is a configuration
// error on the caller's side, never a runtime data condition.
type InvalidFilterKeyError struct {
	Key string
}

func (e *InvalidFilterKeyError) Error() string {
	return fmt.Sprintf("invalid filter key %q: expected <metric>_<lt|gt|eq>", e.Key)
}

// Predicate is a single (metric, operator, threshold) filter condition.
type Predicate struct {
	Metric    Metric
	Op        Op
	Threshold float64
}

// Key renders the predicate back to its wire form, e.g. "peRatio_lt".
func (p Predicate) Key() string {
	return string(p.Metric) + "_" + string(p.Op)
}

// Matches reports whether the stock passes the predicate. A stock with the
// metric absent never matches. Comparisons are strict: lt means <, gt means >.
func (p Predicate) Matches(s Stock) bool {
	v, ok := s.Metric(p.Metric)
	if !ok {
		return false
	}
	switch p.Op {
	case OpLt:
		return v < p.Threshold
	case OpGt:
		return v > p.Threshold
	case OpEq:
		return v == p.Threshold
	}
	return false
}

// ParseFilterKey splits a filter key on its last underscore into metric and
// operator, validating both parts.
func ParseFilterKey(key string) (Metric, Op, error) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", &InvalidFilterKeyError{Key: key}
	}

	metric, ok := ParseMetric(key[:idx])
	if !ok {
		return "", "", &InvalidFilterKeyError{Key: key}
	}

	switch op := Op(key[idx+1:]); op {
	case OpLt, OpGt, OpEq:
		return metric, op, nil
	default:
		return "", "", &InvalidFilterKeyError{Key: key}
	}
}

// FilterSet is an ordered collection of predicates. The order matters: the
// first predicate's metric determines the ranking order of the results.
type FilterSet []Predicate

// SortMetric returns the ranking metric implied by the filter set, which is
// the metric of the first predicate.
func (fs FilterSet) SortMetric() (Metric, bool) {
	if len(fs) == 0 {
		return "", false
	}
	return fs[0].Metric, true
}

// Metrics returns the distinct metrics referenced by the filter keys, in
// first-appearance order.
func (fs FilterSet) Metrics() []Metric {
	var out []Metric
	seen := make(map[Metric]bool)
	for _, p := range fs {
		if !seen[p.Metric] {
			seen[p.Metric] = true
			out = append(out, p.Metric)
		}
	}
	return out
}

// UnmarshalJSON decodes the wire form {"<metric>_<op>": threshold, ...}
// preserving key order, which a plain map would lose.
func (fs *FilterSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*fs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("filters: expected object, got %v", tok)
	}

	var out FilterSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		metric, op, err := ParseFilterKey(key)
		if err != nil {
			return err
		}

		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return fmt.Errorf("filters: %s: expected numeric threshold: %w", key, err)
		}
		threshold, err := num.Float64()
		if err != nil {
			return fmt.Errorf("filters: %s: %w", key, err)
		}

		out = append(out, Predicate{Metric: metric, Op: op, Threshold: threshold})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*fs = out
	return nil
}

// MarshalJSON renders the ordered wire form.
func (fs FilterSet) MarshalJSON() ([]byte, error) {
	if fs == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(p.Key()))
		buf.WriteByte(':')
		val, err := json.Marshal(p.Threshold)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ApplyFilters returns the stocks passing every predicate, preserving input
// order. The input is never mutated.
func ApplyFilters(stocks []Stock, filters FilterSet) []Stock {
	out := make([]Stock, 0, len(stocks))
	for _, s := range stocks {
		if passesAll(s, filters) {
			out = append(out, s)
		}
	}
	return out
}

func passesAll(s Stock, filters FilterSet) bool {
	for _, p := range filters {
		if !p.Matches(s) {
			return false
		}
	}
	return true
}
