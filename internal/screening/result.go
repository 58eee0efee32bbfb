package screening

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Sentinel values tagging the aggregate median row. Consumers rely on these
// exact strings to tell the median row apart from real stocks; the flat list
// shape is a compatibility-sensitive legacy format.
const (
	SentinelSymbol = "Sector"
	SentinelName   = "Median"
)

// Row is one entry of a result set: a real stock or the aggregate median
// row. Only present display metrics are carried; absent metrics are omitted
// from the serialized form rather than emitted as nulls.
type Row struct {
	Symbol  string
	Name    string
	Sector  string
	Metrics map[Metric]float64
}

// IsAggregate reports whether the row is the sentinel median row.
func (r Row) IsAggregate() bool {
	return r.Symbol == SentinelSymbol && r.Name == SentinelName
}

// MarshalJSON emits the flat legacy shape: symbol/name/sector followed by
// the metric fields at top level, in fixed metric order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"symbol":`)
	buf.WriteString(strconv.Quote(r.Symbol))
	buf.WriteString(`,"name":`)
	buf.WriteString(strconv.Quote(r.Name))
	buf.WriteString(`,"sector":`)
	buf.WriteString(strconv.Quote(r.Sector))

	for _, m := range allMetrics {
		v, ok := r.Metrics[m]
		if !ok {
			continue
		}
		buf.WriteByte(',')
		buf.WriteString(strconv.Quote(string(m)))
		buf.WriteByte(':')
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat shape back. Unknown fields and null metric
// values are ignored.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Row
	for key, val := range raw {
		switch key {
		case "symbol":
			if err := json.Unmarshal(val, &out.Symbol); err != nil {
				return err
			}
		case "name":
			if err := json.Unmarshal(val, &out.Name); err != nil {
				return err
			}
		case "sector":
			if err := json.Unmarshal(val, &out.Sector); err != nil {
				return err
			}
		default:
			m, ok := ParseMetric(key)
			if !ok || string(val) == "null" {
				continue
			}
			var v float64
			if err := json.Unmarshal(val, &v); err != nil {
				return err
			}
			if out.Metrics == nil {
				out.Metrics = make(map[Metric]float64)
			}
			out.Metrics[m] = v
		}
	}

	*r = out
	return nil
}

// ResultSet is the assembled screening response. AfterFilters counts the
// rows actually returned, after ranking and truncation.
type ResultSet struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	TotalFound   int    `json:"totalFound"`
	AfterFilters int    `json:"afterFilters"`
	Rows         []Row  `json:"results"`
}

// DisplayMetrics returns the union of the intent's requested metrics and the
// metrics referenced by its filter keys, so a metric used to filter is
// always shown even when the caller forgot to list it.
func DisplayMetrics(intent Intent) []Metric {
	return unionMetrics(intent.Metrics, intent.Filters.Metrics())
}

// Assemble combines the filtered/ranked stocks with the population-wide
// medians into the final response. When at least one stock matched, exactly
// one sentinel median row is appended; an empty match yields an unsuccessful
// NoMatch result with no rows and no median row.
func Assemble(filteredRanked, population []Stock, intent Intent) ResultSet {
	medians := Medians(population, DisplayMetrics(intent))
	return AssembleWithMedians(filteredRanked, medians, len(population), intent)
}

// AssembleWithMedians is Assemble with the population medians supplied by
// the caller, for callers that hold them cached.
func AssembleWithMedians(filteredRanked []Stock, medians map[Metric]float64, populationSize int, intent Intent) ResultSet {
	display := DisplayMetrics(intent)

	if len(filteredRanked) == 0 {
		return ResultSet{
			Success:      false,
			Message:      "No matching stocks found.",
			TotalFound:   populationSize,
			AfterFilters: 0,
			Rows:         []Row{},
		}
	}

	rows := make([]Row, 0, len(filteredRanked)+1)
	for _, s := range filteredRanked {
		row := Row{Symbol: s.Symbol, Name: s.Name, Sector: s.Sector, Metrics: make(map[Metric]float64, len(display))}
		for _, m := range display {
			if v, ok := s.Metric(m); ok {
				row.Metrics[m] = v
			}
		}
		rows = append(rows, row)
	}

	medianRow := Row{
		Symbol:  SentinelSymbol,
		Name:    SentinelName,
		Sector:  intent.Sector,
		Metrics: make(map[Metric]float64, len(display)),
	}
	for _, m := range display {
		if v, ok := medians[m]; ok {
			medianRow.Metrics[m] = v
		}
	}
	rows = append(rows, medianRow)

	return ResultSet{
		Success:      true,
		TotalFound:   populationSize,
		AfterFilters: len(filteredRanked),
		Rows:         rows,
	}
}

// Screen runs the whole engine for one request: filter, rank, truncate, and
// assemble against the population snapshot.
func Screen(intent Intent, population []Stock, defaultLimit int) (ResultSet, error) {
	filtered := ApplyFilters(population, intent.Filters)

	sortMetric, _ := intent.Filters.SortMetric()
	ranked, err := RankAndLimit(filtered, sortMetric, intent.Limit, defaultLimit)
	if err != nil {
		return ResultSet{}, err
	}

	return Assemble(ranked, population, intent), nil
}
