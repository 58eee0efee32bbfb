package screening

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedians_OddCount(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
		stockWith("B", map[Metric]float64{MetricPERatio: 30}),
		stockWith("C", map[Metric]float64{MetricPERatio: 20}),
	}

	got := Medians(population, []Metric{MetricPERatio})
	assert.Equal(t, map[Metric]float64{MetricPERatio: 20}, got)
}

func TestMedians_EvenCountAveragesMiddlePair(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
		stockWith("B", map[Metric]float64{MetricPERatio: 12}),
		stockWith("C", map[Metric]float64{MetricPERatio: 18}),
		stockWith("D", map[Metric]float64{MetricPERatio: 20}),
	}

	got := Medians(population, []Metric{MetricPERatio})
	assert.Equal(t, map[Metric]float64{MetricPERatio: 15}, got)
}

func TestMedians_RoundsToTwoDecimals(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPrice: 10.123}),
		stockWith("B", map[Metric]float64{MetricPrice: 10.128}),
	}

	got := Medians(population, []Metric{MetricPrice})
	require.Contains(t, got, MetricPrice)
	assert.InDelta(t, 10.13, got[MetricPrice], 1e-9)
}

func TestMedians_MetricWithNoValuesOmitted(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPrice: 10}),
		stockWith("B", map[Metric]float64{MetricPrice: 20}),
	}

	got := Medians(population, []Metric{MetricPrice, MetricDividendYield})

	assert.Contains(t, got, MetricPrice)
	assert.NotContains(t, got, MetricDividendYield, "a metric with zero present values is omitted, never 0")
}

func TestMedians_SkipsAbsentValues(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPERatio: 10}),
		stockWith("B", map[Metric]float64{}),
		stockWith("C", map[Metric]float64{MetricPERatio: 20}),
	}

	got := Medians(population, []Metric{MetricPERatio})
	assert.Equal(t, map[Metric]float64{MetricPERatio: 15}, got)
}

func TestMedians_OrderInvariant(t *testing.T) {
	population := make([]Stock, 0, 9)
	for i, v := range []float64{3, 1, 4, 1, 5, 9, 2, 6, 5} {
		population = append(population, stockWith(string(rune('A'+i)), map[Metric]float64{MetricPrice: v}))
	}

	want := Medians(population, []Metric{MetricPrice})

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]Stock, len(population))
		copy(shuffled, population)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		assert.Equal(t, want, Medians(shuffled, []Metric{MetricPrice}))
	}
}

func TestMedians_DuplicateMetricRequestsCollapse(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPrice: 10}),
	}

	got := Medians(population, []Metric{MetricPrice, MetricPrice})
	assert.Equal(t, map[Metric]float64{MetricPrice: 10}, got)
}

func TestMedians_EmptyPopulation(t *testing.T) {
	got := Medians(nil, []Metric{MetricPrice})
	assert.Empty(t, got)
}
