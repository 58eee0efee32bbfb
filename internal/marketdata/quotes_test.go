// internal/marketdata/quotes_test.go
package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/screening"
)

func newQuoteServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Path[len("/quote/"):]
		body, ok := responses[symbol]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func newQuoteClient(t *testing.T, baseURL string) *QuoteClient {
	t.Helper()
	return NewQuoteClient(QuoteClientConfig{
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
		Concurrency: 4,
		RatePerSec:  1000,
	}, logger.NewNoOpLogger())
}

func TestQuoteClient_FetchQuote(t *testing.T) {
	srv := newQuoteServer(t, map[string]string{
		"AAPL": `{"symbol":"AAPL","currentPrice":189.5,"trailingPE":31.2,"priceToBook":45.1,"dividendYield":0.5,"marketCap":3.0e12,"freeCashflow":9.0e10}`,
	})
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	got, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 189.5, got[screening.MetricPrice])
	assert.Equal(t, 31.2, got[screening.MetricPERatio])
	assert.Equal(t, 45.1, got[screening.MetricPBRatio])
	assert.Equal(t, 0.5, got[screening.MetricDividendYield])
	assert.Equal(t, 3.0e12, got[screening.MetricMarketCap])
	assert.InDelta(t, 0.03, got[screening.MetricFreeCashFlowYield], 1e-9)
}

func TestQuoteClient_ForwardPEFallback(t *testing.T) {
	srv := newQuoteServer(t, map[string]string{
		"GRW": `{"symbol":"GRW","currentPrice":42,"forwardPE":18.4}`,
	})
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	got, err := client.FetchQuote(context.Background(), "GRW")
	require.NoError(t, err)

	assert.Equal(t, 18.4, got[screening.MetricPERatio])
}

func TestQuoteClient_MarketPriceFallback(t *testing.T) {
	srv := newQuoteServer(t, map[string]string{
		"XYZ": `{"symbol":"XYZ","regularMarketPrice":12.3}`,
	})
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	got, err := client.FetchQuote(context.Background(), "XYZ")
	require.NoError(t, err)

	assert.Equal(t, 12.3, got[screening.MetricPrice])
}

func TestQuoteClient_NonPositiveValuesAbsent(t *testing.T) {
	srv := newQuoteServer(t, map[string]string{
		"BAD": `{"symbol":"BAD","currentPrice":0,"trailingPE":-5,"marketCap":0}`,
	})
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	got, err := client.FetchQuote(context.Background(), "BAD")
	require.NoError(t, err)

	assert.NotContains(t, got, screening.MetricPrice)
	assert.NotContains(t, got, screening.MetricPERatio)
	assert.NotContains(t, got, screening.MetricMarketCap)
	assert.NotContains(t, got, screening.MetricFreeCashFlowYield)
}

func TestQuoteClient_NegativeGrowthKept(t *testing.T) {
	// Revenue growth is legitimately negative, unlike prices and ratios.
	srv := newQuoteServer(t, map[string]string{
		"DWN": `{"symbol":"DWN","currentPrice":10,"revenueGrowth":-0.12}`,
	})
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	got, err := client.FetchQuote(context.Background(), "DWN")
	require.NoError(t, err)

	assert.Equal(t, -0.12, got[screening.MetricRevenueGrowth])
}

func TestQuoteClient_FetchQuoteErrorStatus(t *testing.T) {
	srv := newQuoteServer(t, nil)
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	_, err := client.FetchQuote(context.Background(), "MISSING")

	assert.Error(t, err)
}

func TestQuoteClient_FetchAllSkipsFailures(t *testing.T) {
	srv := newQuoteServer(t, map[string]string{
		"AAA": `{"symbol":"AAA","currentPrice":10}`,
		"CCC": `{"symbol":"CCC","currentPrice":30}`,
	})
	defer srv.Close()

	client := newQuoteClient(t, srv.URL)
	constituents := []Constituent{
		{Symbol: "AAA", Name: "Alpha", Sector: "Energy"},
		{Symbol: "BBB", Name: "Beta", Sector: "Energy"},
		{Symbol: "CCC", Name: "Gamma", Sector: "Energy"},
	}

	got := client.FetchAll(context.Background(), constituents)

	require.Len(t, got, 2)
	assert.Equal(t, "AAA", got[0].Symbol, "constituent order preserved")
	assert.Equal(t, "CCC", got[1].Symbol)
	assert.Equal(t, "Energy", got[0].Sector)
}
