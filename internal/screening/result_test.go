package screening

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// techPopulation returns 10 stocks with peRatio 10,12,...,28.
func techPopulation() []Stock {
	population := make([]Stock, 0, 10)
	for i := 0; i < 10; i++ {
		pe := float64(10 + 2*i)
		population = append(population, Stock{
			Symbol: fmt.Sprintf("T%02d", i),
			Name:   fmt.Sprintf("Tech %02d", i),
			Sector: "Information Technology",
			Metrics: map[Metric]float64{
				MetricPERatio:   pe,
				MetricPrice:     pe * 10,
				MetricMarketCap: 1e9 * float64(10-i),
			},
		})
	}
	return population
}

func TestScreen_PERatioScenario(t *testing.T) {
	population := techPopulation()
	intent := Intent{
		Action:  "screen",
		Sector:  "Information Technology",
		Metrics: []Metric{MetricPrice, MetricPERatio},
		Filters: FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 20}},
	}

	got, err := Screen(intent, population, 10)
	require.NoError(t, err)

	assert.True(t, got.Success)
	assert.Equal(t, 10, got.TotalFound)
	assert.Equal(t, 5, got.AfterFilters)

	// 5 survivors (10,12,14,16,18) ascending by peRatio, then the median row
	require.Len(t, got.Rows, 6)
	wantPE := []float64{10, 12, 14, 16, 18}
	for i, pe := range wantPE {
		assert.Equal(t, pe, got.Rows[i].Metrics[MetricPERatio])
		assert.False(t, got.Rows[i].IsAggregate())
	}

	medianRow := got.Rows[5]
	assert.True(t, medianRow.IsAggregate())
	assert.Equal(t, SentinelSymbol, medianRow.Symbol)
	assert.Equal(t, SentinelName, medianRow.Name)
	assert.Equal(t, "Information Technology", medianRow.Sector)
	assert.Equal(t, 19.0, medianRow.Metrics[MetricPERatio], "median of full population, average of 18 and 20")
}

func TestScreen_DefaultLimitTruncates(t *testing.T) {
	population := techPopulation()
	intent := Intent{
		Sector:  "Information Technology",
		Metrics: []Metric{MetricPERatio},
		Filters: FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 20}},
	}

	got, err := Screen(intent, population, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, got.AfterFilters, "afterFilters reflects the truncated result size")
	require.Len(t, got.Rows, 4)
}

func TestScreen_InvalidLimitSurfaces(t *testing.T) {
	intent := Intent{
		Sector:  "Information Technology",
		Limit:   intPtr(0),
		Filters: FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 20}},
	}

	_, err := Screen(intent, techPopulation(), 3)

	var invalidLimit *InvalidLimitError
	require.ErrorAs(t, err, &invalidLimit)
}

func TestScreen_NoMatch(t *testing.T) {
	intent := Intent{
		Sector:  "Information Technology",
		Metrics: []Metric{MetricPERatio},
		Filters: FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 5}},
	}

	got, err := Screen(intent, techPopulation(), 3)
	require.NoError(t, err)

	assert.False(t, got.Success)
	assert.Equal(t, "No matching stocks found.", got.Message)
	assert.Equal(t, 10, got.TotalFound)
	assert.Equal(t, 0, got.AfterFilters)
	assert.Empty(t, got.Rows, "no median row without at least one matching stock")
}

func TestScreen_NoFiltersFallsBackToMarketCap(t *testing.T) {
	intent := Intent{
		Sector:  "Information Technology",
		Metrics: []Metric{MetricMarketCap},
	}

	got, err := Screen(intent, techPopulation(), 3)
	require.NoError(t, err)

	require.Len(t, got.Rows, 4)
	assert.Equal(t, "T00", got.Rows[0].Symbol, "largest market cap first without a filter metric")
	assert.Equal(t, "T01", got.Rows[1].Symbol)
	assert.Equal(t, "T02", got.Rows[2].Symbol)
}

func TestAssemble_DisplayMetricsUnionFilterPrefixes(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPrice: 10, MetricDividendYield: 3}),
	}
	// dividendYield only appears in the filters, not the metrics list
	intent := Intent{
		Sector:  "Energy",
		Metrics: []Metric{MetricPrice},
		Filters: FilterSet{{Metric: MetricDividendYield, Op: OpGt, Threshold: 0}},
	}

	got := Assemble(population, population, intent)

	require.Len(t, got.Rows, 2)
	assert.Contains(t, got.Rows[0].Metrics, MetricDividendYield, "filter metrics are always shown")
	assert.Contains(t, got.Rows[1].Metrics, MetricDividendYield)
}

func TestAssemble_OmitsAbsentMetricsOnStockRows(t *testing.T) {
	population := []Stock{
		stockWith("A", map[Metric]float64{MetricPrice: 10}),
		stockWith("B", map[Metric]float64{MetricPrice: 20, MetricDividendYield: 2}),
	}
	intent := Intent{
		Sector:  "Energy",
		Metrics: []Metric{MetricPrice, MetricDividendYield},
	}

	got := Assemble(population, population, intent)

	assert.NotContains(t, got.Rows[0].Metrics, MetricDividendYield)
	assert.Contains(t, got.Rows[1].Metrics, MetricDividendYield)
}

func TestRow_JSONRoundTrip(t *testing.T) {
	row := Row{
		Symbol: "AAPL",
		Name:   "Apple Inc",
		Sector: "Information Technology",
		Metrics: map[Metric]float64{
			MetricPrice:   189.5,
			MetricPERatio: 31.2,
		},
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "AAPL", m["symbol"])
	assert.Equal(t, 189.5, m["price"])
	assert.NotContains(t, m, "dividendYield", "absent metrics are omitted, not null")

	var back Row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, row, back)
}

func TestResultSet_WireShape(t *testing.T) {
	population := techPopulation()
	intent := Intent{
		Sector:  "Information Technology",
		Metrics: []Metric{MetricPrice, MetricPERatio},
		Filters: FilterSet{{Metric: MetricPERatio, Op: OpLt, Threshold: 14}},
	}

	rs, err := Screen(intent, population, 10)
	require.NoError(t, err)

	data, err := json.Marshal(rs)
	require.NoError(t, err)

	var wire struct {
		Success      bool                     `json:"success"`
		TotalFound   int                      `json:"totalFound"`
		AfterFilters int                      `json:"afterFilters"`
		Results      []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.True(t, wire.Success)
	assert.Equal(t, 10, wire.TotalFound)
	assert.Equal(t, 2, wire.AfterFilters)

	// Flat list: real rows then exactly one sentinel-tagged median row
	require.Len(t, wire.Results, 3)
	last := wire.Results[len(wire.Results)-1]
	assert.Equal(t, "Sector", last["symbol"])
	assert.Equal(t, "Median", last["name"])

	var back ResultSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rs, back)
}
