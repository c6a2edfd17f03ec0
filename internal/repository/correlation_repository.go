package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taxharvest/engine/internal/model"
)

// CorrelationRepository provides read access to the stock_correlations table.
// Rows are computed offline and written only through UpsertEntry (import path);
// the harvest engine treats the table as read-only.
type CorrelationRepository struct {
	db *sql.DB
}

// NewCorrelationRepository creates a new CorrelationRepository with the provided database connection.
func NewCorrelationRepository(db *sql.DB) *CorrelationRepository {
	return &CorrelationRepository{db: db}
}

const correlationColumns = `
	id, ticker_a, ticker_b, correlation_coefficient, sector, industry,
	beta_similarity, calculated_at
`

// GetEntriesForTicker retrieves every correlation row containing the ticker,
// in either column of the canonical pair.
func (r *CorrelationRepository) GetEntriesForTicker(ticker string) ([]model.CorrelationEntry, error) {
	query := `
		SELECT ` + correlationColumns + `
		FROM stock_correlations
		WHERE ticker_a = ? OR ticker_b = ?
	`

	rows, err := r.db.Query(query, ticker, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlations: %w", err)
	}
	defer rows.Close()

	entries := []model.CorrelationEntry{}
	for rows.Next() {
		var e model.CorrelationEntry
		var corr, beta string
		var sector, industry, calculatedAt sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.TickerA,
			&e.TickerB,
			&corr,
			&sector,
			&industry,
			&beta,
			&calculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correlation row: %w", err)
		}

		if e.Correlation, err = ParseDecimal(corr); err != nil {
			return nil, err
		}
		if e.BetaSimilarity, err = ParseDecimal(beta); err != nil {
			return nil, err
		}
		e.Sector = sector.String
		e.Industry = industry.String
		if calculatedAt.Valid {
			if e.CalculatedAt, err = ParseTime(calculatedAt.String); err != nil {
				return nil, err
			}
		}

		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correlations: %w", err)
	}

	return entries, nil
}

// UpsertEntry writes one pairwise correlation fact, normalizing the tickers to
// canonical order first. Used by the offline import path, not the engine.
func (r *CorrelationRepository) UpsertEntry(ctx context.Context, e *model.CorrelationEntry) error {
	e.TickerA, e.TickerB = model.CanonicalPair(e.TickerA, e.TickerB)

	query := `
		INSERT INTO stock_correlations (` + correlationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker_a, ticker_b) DO UPDATE SET
			correlation_coefficient = excluded.correlation_coefficient,
			sector = excluded.sector,
			industry = excluded.industry,
			beta_similarity = excluded.beta_similarity,
			calculated_at = excluded.calculated_at
	`

	var calculatedAt any
	if !e.CalculatedAt.IsZero() {
		calculatedAt = FormatTime(e.CalculatedAt)
	}

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.TickerA,
		e.TickerB,
		e.Correlation.String(),
		e.Sector,
		e.Industry,
		e.BetaSimilarity.String(),
		calculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert correlation: %w", err)
	}

	return nil
}
