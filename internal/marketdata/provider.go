// internal/marketdata/provider.go
package marketdata

import (
	"context"

	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/screening"
)

// Provider supplies a materialized, immutable population snapshot for a
// sector. The screening engine never sees partial results.
type Provider interface {
	FetchPopulation(ctx context.Context, sector string) ([]screening.Stock, error)
}

// FetchProvider builds populations from the constituent table and live
// quotes.
type FetchProvider struct {
	constituents *ConstituentStore
	quotes       *QuoteClient
}

func NewFetchProvider(constituents *ConstituentStore, quotes *QuoteClient) *FetchProvider {
	return &FetchProvider{constituents: constituents, quotes: quotes}
}

func (p *FetchProvider) FetchPopulation(ctx context.Context, sector string) ([]screening.Stock, error) {
	cons, err := p.constituents.BySector(ctx, sector)
	if err != nil {
		return nil, &PopulationUnavailableError{Sector: sector, Err: err}
	}
	if len(cons) == 0 {
		return nil, &PopulationUnavailableError{Sector: sector}
	}

	stocks := p.quotes.FetchAll(ctx, cons)
	if len(stocks) == 0 {
		return nil, &PopulationUnavailableError{Sector: sector}
	}

	metrics.PopulationFetches.WithLabelValues(sector, "fetch").Inc()
	return stocks, nil
}
