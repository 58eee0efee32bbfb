package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func symbols(stocks []Stock) []string {
	out := make([]string, len(stocks))
	for i, s := range stocks {
		out[i] = s.Symbol
	}
	return out
}

func TestRankAndLimit_AscendingBySortMetric(t *testing.T) {
	stocks := []Stock{
		stockWith("B", map[Metric]float64{MetricPERatio: 18}),
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
		stockWith("C", map[Metric]float64{MetricPERatio: 14}),
	}

	got, err := RankAndLimit(stocks, MetricPERatio, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, symbols(got))
}

func TestRankAndLimit_AbsentValueRanksAsZero(t *testing.T) {
	stocks := []Stock{
		stockWith("B", map[Metric]float64{MetricPERatio: 18}),
		stockWith("GAP", map[Metric]float64{MetricPrice: 5}),
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
	}

	got, err := RankAndLimit(stocks, MetricPERatio, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"GAP", "A", "B"}, symbols(got))
}

func TestRankAndLimit_FallbackDescendingMarketCap(t *testing.T) {
	stocks := []Stock{
		stockWith("SMALL", map[Metric]float64{MetricMarketCap: 1e9}),
		stockWith("BIG", map[Metric]float64{MetricMarketCap: 5e11}),
		stockWith("MID", map[Metric]float64{MetricMarketCap: 2e10}),
		stockWith("NOCAP", map[Metric]float64{}),
	}

	got, err := RankAndLimit(stocks, "", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"BIG", "MID", "SMALL", "NOCAP"}, symbols(got))
}

func TestRankAndLimit_StableOnTies(t *testing.T) {
	stocks := []Stock{
		stockWith("FIRST", map[Metric]float64{MetricPERatio: 15}),
		stockWith("SECOND", map[Metric]float64{MetricPERatio: 15}),
		stockWith("THIRD", map[Metric]float64{MetricPERatio: 15}),
	}

	got, err := RankAndLimit(stocks, MetricPERatio, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"FIRST", "SECOND", "THIRD"}, symbols(got))
}

func TestRankAndLimit_ExplicitLimit(t *testing.T) {
	stocks := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
		stockWith("B", map[Metric]float64{MetricPERatio: 12}),
		stockWith("C", map[Metric]float64{MetricPERatio: 14}),
	}

	got, err := RankAndLimit(stocks, MetricPERatio, intPtr(2), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, symbols(got))
}

func TestRankAndLimit_DefaultLimit(t *testing.T) {
	stocks := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
		stockWith("B", map[Metric]float64{MetricPERatio: 12}),
		stockWith("C", map[Metric]float64{MetricPERatio: 14}),
		stockWith("D", map[Metric]float64{MetricPERatio: 16}),
	}

	got, err := RankAndLimit(stocks, MetricPERatio, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, symbols(got))
}

func TestRankAndLimit_InvalidLimit(t *testing.T) {
	stocks := []Stock{stockWith("A", map[Metric]float64{MetricPERatio: 10})}

	for _, limit := range []int{0, -1} {
		_, err := RankAndLimit(stocks, MetricPERatio, intPtr(limit), 3)

		var invalidLimit *InvalidLimitError
		require.ErrorAs(t, err, &invalidLimit)
		assert.Equal(t, limit, invalidLimit.Limit)
	}
}

func TestRankAndLimit_DoesNotMutateInput(t *testing.T) {
	stocks := []Stock{
		stockWith("B", map[Metric]float64{MetricPERatio: 18}),
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
	}

	_, err := RankAndLimit(stocks, MetricPERatio, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, symbols(stocks))
}
