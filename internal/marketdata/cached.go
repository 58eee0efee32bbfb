// internal/marketdata/cached.go
package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"assistant-workers/internal/common/cache"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/screening"
)

// CachedProvider snapshots populations per sector in the injected cache
// store. Whenever a sector's population is refreshed, its median cache entry
// is invalidated in the same step, so medians are never served against a
// population they were not computed from.
type CachedProvider struct {
	inner  Provider
	store  cache.Store
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProvider(inner Provider, store cache.Store, ttl time.Duration, log logger.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, store: store, ttl: ttl, logger: log}
}

type stockSnapshot struct {
	Symbol  string                        `json:"symbol"`
	Name    string                        `json:"name"`
	Sector  string                        `json:"sector"`
	Metrics map[screening.Metric]float64 `json:"metrics"`
}

func populationKey(sector string) string { return "population:" + sector }
func mediansKey(sector string) string    { return "medians:" + sector }

// FetchPopulation returns the cached snapshot for the sector, refreshing it
// from the inner provider on a miss.
func (p *CachedProvider) FetchPopulation(ctx context.Context, sector string) ([]screening.Stock, error) {
	if data, err := p.store.Get(ctx, populationKey(sector)); err == nil {
		var snapshots []stockSnapshot
		if err := json.Unmarshal(data, &snapshots); err == nil {
			metrics.PopulationFetches.WithLabelValues(sector, "cache").Inc()
			metrics.CacheOperations.WithLabelValues("population", "hit").Inc()
			return snapshotsToStocks(snapshots), nil
		}
		p.logger.Warn("corrupt population snapshot, refetching", map[string]interface{}{"sector": sector})
	}
	metrics.CacheOperations.WithLabelValues("population", "miss").Inc()

	population, err := p.inner.FetchPopulation(ctx, sector)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stocksToSnapshots(population)); err == nil {
		if err := p.store.Set(ctx, populationKey(sector), data, p.ttl); err != nil {
			p.logger.Warn("population cache write failed", map[string]interface{}{
				"sector": sector,
				"error":  err.Error(),
			})
		}
	}

	// The fresh population obsoletes any medians computed from the old one.
	if err := p.store.Delete(ctx, mediansKey(sector)); err != nil {
		p.logger.Warn("median cache invalidation failed", map[string]interface{}{
			"sector": sector,
			"error":  err.Error(),
		})
	}

	return population, nil
}

// Medians returns the cached per-sector medians over the full metric set,
// filtered to the requested metrics. On a miss it computes them from the
// current population snapshot and caches the result.
func (p *CachedProvider) Medians(ctx context.Context, sector string, requested []screening.Metric) (map[screening.Metric]float64, error) {
	if data, err := p.store.Get(ctx, mediansKey(sector)); err == nil {
		var all map[screening.Metric]float64
		if err := json.Unmarshal(data, &all); err == nil {
			metrics.CacheOperations.WithLabelValues("medians", "hit").Inc()
			return filterMedians(all, requested), nil
		}
	}
	metrics.CacheOperations.WithLabelValues("medians", "miss").Inc()

	population, err := p.FetchPopulation(ctx, sector)
	if err != nil {
		return nil, err
	}

	all := screening.Medians(population, screening.AllMetrics())
	if data, err := json.Marshal(all); err == nil {
		if err := p.store.Set(ctx, mediansKey(sector), data, p.ttl); err != nil {
			p.logger.Warn("median cache write failed", map[string]interface{}{
				"sector": sector,
				"error":  err.Error(),
			})
		}
	}

	return filterMedians(all, requested), nil
}

func filterMedians(all map[screening.Metric]float64, requested []screening.Metric) map[screening.Metric]float64 {
	out := make(map[screening.Metric]float64, len(requested))
	for _, m := range requested {
		if v, ok := all[m]; ok {
			out[m] = v
		}
	}
	return out
}

func snapshotsToStocks(snapshots []stockSnapshot) []screening.Stock {
	out := make([]screening.Stock, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, screening.Stock{
			Symbol:  s.Symbol,
			Name:    s.Name,
			Sector:  s.Sector,
			Metrics: s.Metrics,
		})
	}
	return out
}

func stocksToSnapshots(stocks []screening.Stock) []stockSnapshot {
	out := make([]stockSnapshot, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, stockSnapshot{
			Symbol:  s.Symbol,
			Name:    s.Name,
			Sector:  s.Sector,
			Metrics: s.Metrics,
		})
	}
	return out
}
