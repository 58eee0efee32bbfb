// internal/marketdata/constituents.go
package marketdata

import (
	"context"
	"fmt"

	"assistant-workers/internal/common/database"
)

// Constituent is one index membership row.
type Constituent struct {
	Symbol string
	Name   string
	Sector string
}

// ConstituentStore reads index membership from Postgres.
type ConstituentStore struct {
	db *database.PostgresClient
}

func NewConstituentStore(db *database.PostgresClient) *ConstituentStore {
	return &ConstituentStore{db: db}
}

// BySector returns the constituents of one sector ordered by symbol.
func (s *ConstituentStore) BySector(ctx context.Context, sector string) ([]Constituent, error) {
	query := `
		SELECT symbol, name, sector
		FROM index_constituents
		WHERE sector = $1
		ORDER BY symbol`

	rows, err := s.db.Query(ctx, query, sector)
	if err != nil {
		return nil, fmt.Errorf("failed to query constituents: %w", err)
	}
	defer rows.Close()

	var out []Constituent
	for rows.Next() {
		var c Constituent
		if err := rows.Scan(&c.Symbol, &c.Name, &c.Sector); err != nil {
			return nil, fmt.Errorf("failed to scan constituent: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("constituent rows error: %w", err)
	}

	return out, nil
}

// Sectors returns the distinct sectors present in the index table.
func (s *ConstituentStore) Sectors(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT sector FROM index_constituents ORDER BY sector`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sector string
		if err := rows.Scan(&sector); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		out = append(out, sector)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sector rows error: %w", err)
	}

	return out, nil
}
