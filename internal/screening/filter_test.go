package screening

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockWith(symbol string, metrics map[Metric]float64) Stock {
	return Stock{Symbol: symbol, Name: symbol + " Inc", Sector: "Information Technology", Metrics: metrics}
}

func TestParseFilterKey(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		wantMetric Metric
		wantOp     Op
		wantErr    bool
	}{
		{name: "lt", key: "peRatio_lt", wantMetric: MetricPERatio, wantOp: OpLt},
		{name: "gt", key: "dividendYield_gt", wantMetric: MetricDividendYield, wantOp: OpGt},
		{name: "eq", key: "price_eq", wantMetric: MetricPrice, wantOp: OpEq},
		{name: "unrecognized operator suffix", key: "price_under", wantErr: true},
		{name: "unknown metric prefix", key: "volatility_lt", wantErr: true},
		{name: "no underscore", key: "price", wantErr: true},
		{name: "trailing underscore", key: "price_", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metric, op, err := ParseFilterKey(tt.key)
			if tt.wantErr {
				var invalidKey *InvalidFilterKeyError
				require.ErrorAs(t, err, &invalidKey)
				assert.Equal(t, tt.key, invalidKey.Key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMetric, metric)
			assert.Equal(t, tt.wantOp, op)
		})
	}
}

func TestPredicateMatches_StrictComparisons(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		value float64
		want  bool
	}{
		{name: "lt below threshold", op: OpLt, value: 19.99, want: true},
		{name: "lt at threshold excluded", op: OpLt, value: 20, want: false},
		{name: "lt above threshold", op: OpLt, value: 20.01, want: false},
		{name: "gt above threshold", op: OpGt, value: 20.01, want: true},
		{name: "gt at threshold excluded", op: OpGt, value: 20, want: false},
		{name: "eq exact", op: OpEq, value: 20, want: true},
		{name: "eq near miss", op: OpEq, value: 20.0001, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Predicate{Metric: MetricPERatio, Op: tt.op, Threshold: 20}
			s := stockWith("AAA", map[Metric]float64{MetricPERatio: tt.value})
			assert.Equal(t, tt.want, p.Matches(s))
		})
	}
}

func TestPredicateMatches_AbsentMetricNeverMatches(t *testing.T) {
	s := stockWith("AAA", map[Metric]float64{MetricPrice: 10})

	for _, op := range []Op{OpLt, OpGt, OpEq} {
		p := Predicate{Metric: MetricPERatio, Op: op, Threshold: 100}
		assert.False(t, p.Matches(s), "op %s must not match an absent metric", op)
	}
}

func TestApplyFilters_PreservesOrder(t *testing.T) {
	stocks := []Stock{
		stockWith("C", map[Metric]float64{MetricPERatio: 18}),
		stockWith("A", map[Metric]float64{MetricPERatio: 12}),
		stockWith("B", map[Metric]float64{MetricPERatio: 25}),
		stockWith("D", map[Metric]float64{MetricPERatio: 15}),
	}
	filters := FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 20}}

	got := ApplyFilters(stocks, filters)

	require.Len(t, got, 3)
	assert.Equal(t, "C", got[0].Symbol)
	assert.Equal(t, "A", got[1].Symbol)
	assert.Equal(t, "D", got[2].Symbol)
}

func TestApplyFilters_Idempotent(t *testing.T) {
	stocks := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 12, MetricDividendYield: 2}),
		stockWith("B", map[Metric]float64{MetricPERatio: 30, MetricDividendYield: 1}),
		stockWith("C", map[Metric]float64{MetricPERatio: 8}),
	}
	filters := FilterSet{
		{Metric: MetricPERatio, Op: OpLt, Threshold: 20},
		{Metric: MetricDividendYield, Op: OpGt, Threshold: 0},
	}

	once := ApplyFilters(stocks, filters)
	twice := ApplyFilters(once, filters)

	assert.Equal(t, once, twice)
}

func TestApplyFilters_LogicalAnd(t *testing.T) {
	stocks := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 12, MetricDividendYield: 2}),
		stockWith("B", map[Metric]float64{MetricPERatio: 12, MetricDividendYield: 0}),
	}
	filters := FilterSet{
		{Metric: MetricPERatio, Op: OpLt, Threshold: 20},
		{Metric: MetricDividendYield, Op: OpGt, Threshold: 0},
	}

	got := ApplyFilters(stocks, filters)

	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Symbol)
}

func TestApplyFilters_EmptyInputs(t *testing.T) {
	filters := FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 20}}
	assert.Empty(t, ApplyFilters(nil, filters))

	stocks := []Stock{stockWith("A", map[Metric]float64{MetricPERatio: 12})}
	got := ApplyFilters(stocks, nil)
	assert.Equal(t, stocks, got)
}

func TestFilterSet_JSONRoundTripPreservesOrder(t *testing.T) {
	raw := `{"peRatio_lt":20,"dividendYield_gt":0,"price_lt":50}`

	var fs FilterSet
	require.NoError(t, json.Unmarshal([]byte(raw), &fs))

	require.Len(t, fs, 3)
	assert.Equal(t, MetricPERatio, fs[0].Metric)
	assert.Equal(t, MetricDividendYield, fs[1].Metric)
	assert.Equal(t, MetricPrice, fs[2].Metric)

	out, err := json.Marshal(fs)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
	assert.Equal(t, raw, string(out), "key order must survive the round trip")
}

func TestFilterSet_UnmarshalRejectsBadKey(t *testing.T) {
	var fs FilterSet
	err := json.Unmarshal([]byte(`{"price_under":50}`), &fs)

	var invalidKey *InvalidFilterKeyError
	require.ErrorAs(t, err, &invalidKey)
	assert.Equal(t, "price_under", invalidKey.Key)
}

func TestFilterSet_SortMetric(t *testing.T) {
	fs := FilterSet{
		{Metric: MetricPERatio, Op: OpLt, Threshold: 20},
		{Metric: MetricDividendYield, Op: OpGt, Threshold: 0},
	}

	m, ok := fs.SortMetric()
	require.True(t, ok)
	assert.Equal(t, MetricPERatio, m)

	_, ok = FilterSet(nil).SortMetric()
	assert.False(t, ok)
}
