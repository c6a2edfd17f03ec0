package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
)

// PriceRepository caches the last known price per symbol. The harvest
// generator reads from here; the price feed and the mark-price endpoint
// write.
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository creates a new PriceRepository with the provided database connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// GetPrice returns the cached price for a symbol and when it was observed.
// Returns apperrors.ErrMissingPrice when no price has been recorded.
func (r *PriceRepository) GetPrice(symbol string) (decimal.Decimal, time.Time, error) {
	query := `SELECT price, as_of FROM symbol_prices WHERE symbol = ?`

	var priceStr, asOfStr string
	err := r.db.QueryRow(query, symbol).Scan(&priceStr, &asOfStr)
	if err == sql.ErrNoRows {
		return decimal.Zero, time.Time{}, apperrors.ErrMissingPrice
	}
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to query symbol price: %w", err)
	}

	price, err := ParseDecimal(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	asOf, err := ParseTime(asOfStr)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	return price, asOf, nil
}

// UpsertPrice records the current price for a symbol as of the given time.
func (r *PriceRepository) UpsertPrice(ctx context.Context, symbol string, price decimal.Decimal, asOf time.Time) error {
	query := `
		INSERT INTO symbol_prices (symbol, price, as_of)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			price = excluded.price,
			as_of = excluded.as_of
	`

	_, err := r.db.ExecContext(ctx, query, symbol, price.String(), FormatTime(asOf))
	if err != nil {
		return fmt.Errorf("failed to upsert symbol price: %w", err)
	}

	return nil
}
