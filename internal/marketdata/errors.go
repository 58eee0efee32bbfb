// Package marketdata supplies sector population snapshots to the screening
// engine: index constituents from Postgres, per-symbol quotes from the
// market-data HTTP API, and a cached provider layered on top.
package marketdata

import "fmt"

// PopulationUnavailableError reports that neither cache nor fetch could
// supply a population for the sector.
type PopulationUnavailableError struct {
	Sector string
	Err    error
}

func (e *PopulationUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("population unavailable for sector %q: %v", e.Sector, e.Err)
	}
	return fmt.Sprintf("population unavailable for sector %q", e.Sector)
}

func (e *PopulationUnavailableError) Unwrap() error {
	return e.Err
}
