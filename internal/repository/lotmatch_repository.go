package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/model"
)

// LotMatchRepository provides data access methods for the lot_matches table.
// Rows are written only inside the matcher's commit transaction and are
// immutable afterwards.
type LotMatchRepository struct {
	db *sql.DB
}

// NewLotMatchRepository creates a new LotMatchRepository with the provided database connection.
func NewLotMatchRepository(db *sql.DB) *LotMatchRepository {
	return &LotMatchRepository{db: db}
}

const lotMatchColumns = `
	id, account_id, symbol, sell_transaction_id, buy_transaction_id,
	quantity_matched, cost_basis, proceeds, realized_gain_loss,
	acquisition_date, disposal_date, holding_period_days, is_long_term, created_at
`

// InsertLotMatch appends a lot match row inside the given database
// transaction. The unique (sell, buy) pair constraint is enforced by the
// schema.
func (r *LotMatchRepository) InsertLotMatch(ctx context.Context, tx *sql.Tx, m *model.LotMatch) error {
	query := `
		INSERT INTO lot_matches (` + lotMatchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		m.ID,
		m.AccountID,
		m.Symbol,
		m.SellID,
		m.BuyID,
		m.QuantityMatched.String(),
		m.CostBasis.String(),
		m.Proceeds.String(),
		m.RealizedGain.String(),
		FormatTime(m.AcquisitionDate),
		FormatTime(m.DisposalDate),
		m.HoldingDays,
		m.IsLongTerm,
		FormatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot match: %w", err)
	}

	return nil
}

// GetMatchesBySell retrieves all lot matches produced by one sell transaction.
func (r *LotMatchRepository) GetMatchesBySell(sellID string) ([]model.LotMatch, error) {
	query := `
		SELECT ` + lotMatchColumns + `
		FROM lot_matches
		WHERE sell_transaction_id = ?
		ORDER BY created_at ASC, acquisition_date ASC
	`
	return r.queryMatches(query, sellID)
}

// GetMatchesByAccount retrieves all lot matches for an account ordered by
// disposal date.
func (r *LotMatchRepository) GetMatchesByAccount(accountID string) ([]model.LotMatch, error) {
	query := `
		SELECT ` + lotMatchColumns + `
		FROM lot_matches
		WHERE account_id = ?
		ORDER BY disposal_date ASC
	`
	return r.queryMatches(query, accountID)
}

// SumRealizedForYear totals realized gain/loss across all matches for the
// account disposed within the given tax year.
func (r *LotMatchRepository) SumRealizedForYear(accountID string, year int) (decimal.Decimal, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	query := `
		SELECT realized_gain_loss
		FROM lot_matches
		WHERE account_id = ? AND disposal_date >= ? AND disposal_date < ?
	`

	rows, err := r.db.Query(query, accountID, FormatTime(start), FormatTime(end))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query realized gains: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var gainStr string
		if err := rows.Scan(&gainStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan realized gain: %w", err)
		}
		gain, err := ParseDecimal(gainStr)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(gain)
	}

	if err = rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating realized gains: %w", err)
	}

	return total, nil
}

func (r *LotMatchRepository) queryMatches(query string, args ...any) ([]model.LotMatch, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lot matches: %w", err)
	}
	defer rows.Close()

	matches := []model.LotMatch{}
	for rows.Next() {
		var m model.LotMatch
		var qty, costBasis, proceeds, gain string
		var acquiredStr, disposedStr, createdStr string

		err := rows.Scan(
			&m.ID,
			&m.AccountID,
			&m.Symbol,
			&m.SellID,
			&m.BuyID,
			&qty,
			&costBasis,
			&proceeds,
			&gain,
			&acquiredStr,
			&disposedStr,
			&m.HoldingDays,
			&m.IsLongTerm,
			&createdStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot match row: %w", err)
		}

		if m.QuantityMatched, err = ParseDecimal(qty); err != nil {
			return nil, err
		}
		if m.CostBasis, err = ParseDecimal(costBasis); err != nil {
			return nil, err
		}
		if m.Proceeds, err = ParseDecimal(proceeds); err != nil {
			return nil, err
		}
		if m.RealizedGain, err = ParseDecimal(gain); err != nil {
			return nil, err
		}
		if m.AcquisitionDate, err = ParseTime(acquiredStr); err != nil {
			return nil, err
		}
		if m.DisposalDate, err = ParseTime(disposedStr); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = ParseTime(createdStr); err != nil {
			return nil, err
		}

		matches = append(matches, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lot matches: %w", err)
	}

	return matches, nil
}
