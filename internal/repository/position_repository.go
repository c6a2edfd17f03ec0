package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
)

// PositionRepository provides data access methods for the positions table,
// one row per (account, symbol).
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository creates a new PositionRepository with the provided database connection.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

const positionColumns = `
	id, account_id, symbol, total_shares, average_cost_basis, total_cost,
	last_price, last_priced_at, market_value, unrealized_pl,
	realized_pl_ytd, realized_year, is_open, opened_at, closed_at, last_updated_at
`

// GetPosition retrieves the position row for an account and symbol.
// Returns apperrors.ErrPositionNotFound when no row exists.
func (r *PositionRepository) GetPosition(accountID, symbol string) (model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE account_id = ? AND symbol = ?`

	row := r.db.QueryRow(query, accountID, symbol)
	p, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return model.Position{}, apperrors.ErrPositionNotFound
	}
	if err != nil {
		return model.Position{}, err
	}

	return p, nil
}

// GetPositionsByAccount retrieves all position rows for an account.
func (r *PositionRepository) GetPositionsByAccount(accountID string) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE account_id = ? ORDER BY symbol ASC`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// GetPositionsBySymbol retrieves the position rows of every account holding
// the symbol. Used when a price mark fans out to all holders.
func (r *PositionRepository) GetPositionsBySymbol(symbol string) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE symbol = ? ORDER BY account_id ASC`

	rows, err := r.db.Query(query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions by symbol: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// UpsertPosition writes the position row, inserting it on first touch of the
// (account, symbol) pair. Side effects are confined to this single row.
func (r *PositionRepository) UpsertPosition(ctx context.Context, p *model.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, symbol) DO UPDATE SET
			total_shares = excluded.total_shares,
			average_cost_basis = excluded.average_cost_basis,
			total_cost = excluded.total_cost,
			last_price = excluded.last_price,
			last_priced_at = excluded.last_priced_at,
			market_value = excluded.market_value,
			unrealized_pl = excluded.unrealized_pl,
			realized_pl_ytd = excluded.realized_pl_ytd,
			realized_year = excluded.realized_year,
			is_open = excluded.is_open,
			opened_at = excluded.opened_at,
			closed_at = excluded.closed_at,
			last_updated_at = excluded.last_updated_at
	`

	var lastPricedAt, openedAt, closedAt, lastUpdatedAt any
	if !p.LastPricedAt.IsZero() {
		lastPricedAt = FormatTime(p.LastPricedAt)
	}
	if !p.OpenedAt.IsZero() {
		openedAt = FormatTime(p.OpenedAt)
	}
	if p.ClosedAt != nil {
		closedAt = FormatTime(*p.ClosedAt)
	}
	if !p.LastUpdatedAt.IsZero() {
		lastUpdatedAt = FormatTime(p.LastUpdatedAt)
	}

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.AccountID,
		p.Symbol,
		p.TotalShares.String(),
		p.AvgCostBasis.String(),
		p.TotalCost.String(),
		p.LastPrice.String(),
		lastPricedAt,
		p.MarketValue.String(),
		p.UnrealizedPL.String(),
		p.RealizedPLYTD.String(),
		p.RealizedYear,
		p.IsOpen,
		openedAt,
		closedAt,
		lastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	return nil
}

func scanPosition(scan func(...any) error) (model.Position, error) {
	var p model.Position
	var totalShares, avgCost, totalCost, lastPrice, marketValue, unrealized, realized string
	var lastPricedAt, openedAt, closedAt, lastUpdatedAt sql.NullString

	err := scan(
		&p.ID,
		&p.AccountID,
		&p.Symbol,
		&totalShares,
		&avgCost,
		&totalCost,
		&lastPrice,
		&lastPricedAt,
		&marketValue,
		&unrealized,
		&realized,
		&p.RealizedYear,
		&p.IsOpen,
		&openedAt,
		&closedAt,
		&lastUpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.Position{}, err
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to scan position row: %w", err)
	}

	if p.TotalShares, err = ParseDecimal(totalShares); err != nil {
		return model.Position{}, err
	}
	if p.AvgCostBasis, err = ParseDecimal(avgCost); err != nil {
		return model.Position{}, err
	}
	if p.TotalCost, err = ParseDecimal(totalCost); err != nil {
		return model.Position{}, err
	}
	if p.LastPrice, err = ParseDecimal(lastPrice); err != nil {
		return model.Position{}, err
	}
	if p.MarketValue, err = ParseDecimal(marketValue); err != nil {
		return model.Position{}, err
	}
	if p.UnrealizedPL, err = ParseDecimal(unrealized); err != nil {
		return model.Position{}, err
	}
	if p.RealizedPLYTD, err = ParseDecimal(realized); err != nil {
		return model.Position{}, err
	}

	if lastPricedAt.Valid {
		if p.LastPricedAt, err = ParseTime(lastPricedAt.String); err != nil {
			return model.Position{}, err
		}
	}
	if openedAt.Valid {
		if p.OpenedAt, err = ParseTime(openedAt.String); err != nil {
			return model.Position{}, err
		}
	}
	if p.ClosedAt, err = ParseNullTime(closedAt); err != nil {
		return model.Position{}, err
	}
	if lastUpdatedAt.Valid {
		if p.LastUpdatedAt, err = ParseTime(lastUpdatedAt.String); err != nil {
			return model.Position{}, err
		}
	}

	return p, nil
}
