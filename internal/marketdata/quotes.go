// internal/marketdata/quotes.go
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	commonhttp "assistant-workers/internal/common/http"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/screening"
)

// QuoteClient fetches per-symbol fundamentals from the market-data API.
// Fetches run through a bounded worker pool paced by a rate limiter so a
// sector-wide refresh stays inside the provider's request quota.
type QuoteClient struct {
	baseURL     string
	client      *commonhttp.Client
	limiter     *rate.Limiter
	concurrency int
	logger      logger.Logger
}

type QuoteClientConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Concurrency int
	RatePerSec  int
}

func NewQuoteClient(cfg QuoteClientConfig, log logger.Logger) *QuoteClient {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	return &QuoteClient{
		baseURL:     cfg.BaseURL,
		client:      commonhttp.NewClientWithAuth(cfg.Timeout, cfg.APIKey),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		concurrency: cfg.Concurrency,
		logger:      log,
	}
}

// quoteResponse mirrors the provider's quote payload. Pointers distinguish
// absent fields from zeroes.
type quoteResponse struct {
	Symbol        string   `json:"symbol"`
	Price         *float64 `json:"currentPrice"`
	MarketPrice   *float64 `json:"regularMarketPrice"`
	TrailingPE    *float64 `json:"trailingPE"`
	ForwardPE     *float64 `json:"forwardPE"`
	PriceToBook   *float64 `json:"priceToBook"`
	DebtToEquity  *float64 `json:"debtToEquity"`
	RevenueGrowth *float64 `json:"revenueGrowth"`
	DividendYield *float64 `json:"dividendYield"`
	FreeCashflow  *float64 `json:"freeCashflow"`
	MarketCap     *float64 `json:"marketCap"`
}

// FetchQuote returns the metric values for one symbol. Missing or
// non-positive provider fields simply stay absent.
func (c *QuoteClient) FetchQuote(ctx context.Context, symbol string) (map[screening.Metric]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/quote/%s", c.baseURL, symbol)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("quote fetch for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("quote fetch for %s returned status %d: %s", symbol, resp.StatusCode, string(body))
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("quote decode for %s failed: %w", symbol, err)
	}

	return quote.metrics(), nil
}

func (q quoteResponse) metrics() map[screening.Metric]float64 {
	var s screening.Stock

	if v, ok := positive(q.Price); ok {
		s.SetMetric(screening.MetricPrice, v)
	} else if v, ok := positive(q.MarketPrice); ok {
		s.SetMetric(screening.MetricPrice, v)
	}

	if v, ok := positive(q.TrailingPE); ok {
		s.SetMetric(screening.MetricPERatio, v)
	} else if v, ok := positive(q.ForwardPE); ok {
		s.SetMetric(screening.MetricPERatio, v)
	}

	if v, ok := positive(q.PriceToBook); ok {
		s.SetMetric(screening.MetricPBRatio, v)
	}
	if v, ok := positive(q.DebtToEquity); ok {
		s.SetMetric(screening.MetricDebtToEquity, v)
	}
	if q.RevenueGrowth != nil {
		s.SetMetric(screening.MetricRevenueGrowth, *q.RevenueGrowth)
	}
	if q.DividendYield != nil {
		s.SetMetric(screening.MetricDividendYield, *q.DividendYield)
	}
	if mcap, ok := positive(q.MarketCap); ok {
		s.SetMetric(screening.MetricMarketCap, mcap)
		if fcf := q.FreeCashflow; fcf != nil {
			s.SetMetric(screening.MetricFreeCashFlowYield, *fcf/mcap)
		}
	}

	return s.Metrics
}

func positive(v *float64) (float64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

// FetchAll fetches quotes for every constituent concurrently and returns the
// assembled stocks in constituent order. A symbol whose fetch fails is
// logged and skipped rather than failing the whole snapshot.
func (c *QuoteClient) FetchAll(ctx context.Context, constituents []Constituent) []screening.Stock {
	results := make([]*screening.Stock, len(constituents))

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.concurrency)

	for i, con := range constituents {
		wg.Add(1)
		go func(i int, con Constituent) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			metrics, err := c.FetchQuote(ctx, con.Symbol)
			if err != nil {
				c.logger.Warn("quote fetch skipped", map[string]interface{}{
					"symbol": con.Symbol,
					"error":  err.Error(),
				})
				return
			}

			results[i] = &screening.Stock{
				Symbol:  con.Symbol,
				Name:    con.Name,
				Sector:  con.Sector,
				Metrics: metrics,
			}
		}(i, con)
	}
	wg.Wait()

	out := make([]screening.Stock, 0, len(constituents))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
