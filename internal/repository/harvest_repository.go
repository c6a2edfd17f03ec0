package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
)

// HarvestRepository provides data access methods for the
// harvest_recommendations table.
type HarvestRepository struct {
	db *sql.DB
}

// NewHarvestRepository creates a new HarvestRepository with the provided database connection.
func NewHarvestRepository(db *sql.DB) *HarvestRepository {
	return &HarvestRepository{db: db}
}

const harvestColumns = `
	id, account_id, buy_transaction_id, ticker, quantity, original_price,
	current_price, unrealized_loss, potential_tax_savings, purchase_date,
	alternative_stocks, status, generated_at, expires_at
`

// InsertRecommendation appends a harvest recommendation row.
func (r *HarvestRepository) InsertRecommendation(ctx context.Context, rec *model.HarvestRecommendation) error {
	alternatives, err := json.Marshal(rec.AlternativeStocks)
	if err != nil {
		return fmt.Errorf("failed to marshal alternatives: %w", err)
	}

	query := `
		INSERT INTO harvest_recommendations (` + harvestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.AccountID,
		rec.BuyTransactionID,
		rec.Ticker,
		rec.Quantity.String(),
		rec.OriginalPrice.String(),
		rec.CurrentPrice.String(),
		rec.UnrealizedLoss.String(),
		rec.PotentialTaxSavings.String(),
		FormatTime(rec.PurchaseDate),
		string(alternatives),
		string(rec.Status),
		FormatTime(rec.GeneratedAt),
		FormatTime(rec.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert harvest recommendation: %w", err)
	}

	return nil
}

// GetRecommendation retrieves one recommendation by ID.
// Returns apperrors.ErrRecommendationNotFound when no row exists.
func (r *HarvestRepository) GetRecommendation(id string) (model.HarvestRecommendation, error) {
	query := `SELECT ` + harvestColumns + ` FROM harvest_recommendations WHERE id = ?`

	row := r.db.QueryRow(query, id)
	rec, err := scanRecommendation(row.Scan)
	if err == sql.ErrNoRows {
		return model.HarvestRecommendation{}, apperrors.ErrRecommendationNotFound
	}
	if err != nil {
		return model.HarvestRecommendation{}, err
	}

	return rec, nil
}

// GetRecommendationsByAccount retrieves recommendations for an account,
// optionally filtered by status.
func (r *HarvestRepository) GetRecommendationsByAccount(accountID string, status model.HarvestStatus) ([]model.HarvestRecommendation, error) {
	query := `SELECT ` + harvestColumns + ` FROM harvest_recommendations WHERE account_id = ?`

	args := []any{accountID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY generated_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query harvest recommendations: %w", err)
	}
	defer rows.Close()

	recs := []model.HarvestRecommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating harvest recommendations: %w", err)
	}

	return recs, nil
}

// HasOpenForLot reports whether an OPEN, unexpired recommendation already
// exists for the buy lot. Repeated scans consult this to stay idempotent.
func (r *HarvestRepository) HasOpenForLot(buyTransactionID string, now time.Time) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM harvest_recommendations
		WHERE buy_transaction_id = ? AND status = ? AND expires_at > ?
	`

	var count int
	err := r.db.QueryRow(query, buyTransactionID, string(model.HarvestOpen), FormatTime(now)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check open recommendation: %w", err)
	}

	return count > 0, nil
}

// UpdateStatus moves one recommendation to a new status. The WHERE clause
// only matches OPEN rows, so a lost race against another transition leaves
// the earlier terminal state in place; affected reports whether the row moved.
func (r *HarvestRepository) UpdateStatus(ctx context.Context, id string, next model.HarvestStatus) (bool, error) {
	query := `
		UPDATE harvest_recommendations
		SET status = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(next), id, string(model.HarvestOpen))
	if err != nil {
		return false, fmt.Errorf("failed to update recommendation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// MarkExecutedForLots transitions any OPEN recommendation for the consumed
// buy lots to EXECUTED. Called after a match commits.
func (r *HarvestRepository) MarkExecutedForLots(ctx context.Context, buyTransactionIDs []string) error {
	for _, id := range buyTransactionIDs {
		query := `
			UPDATE harvest_recommendations
			SET status = ?
			WHERE buy_transaction_id = ? AND status = ?
		`
		if _, err := r.db.ExecContext(ctx, query, string(model.HarvestExecuted), id, string(model.HarvestOpen)); err != nil {
			return fmt.Errorf("failed to mark recommendation executed: %w", err)
		}
	}
	return nil
}

// ExpireDue transitions every OPEN recommendation whose expiry has passed to
// EXPIRED and returns how many rows moved.
func (r *HarvestRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE harvest_recommendations
		SET status = ?
		WHERE status = ? AND expires_at <= ?
	`

	result, err := r.db.ExecContext(ctx, query, string(model.HarvestExpired), string(model.HarvestOpen), FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to expire recommendations: %w", err)
	}

	return result.RowsAffected()
}

func scanRecommendation(scan func(...any) error) (model.HarvestRecommendation, error) {
	var rec model.HarvestRecommendation
	var qty, origPrice, curPrice, loss, savings, status string
	var purchaseStr, generatedStr, expiresStr string
	var alternatives sql.NullString

	err := scan(
		&rec.ID,
		&rec.AccountID,
		&rec.BuyTransactionID,
		&rec.Ticker,
		&qty,
		&origPrice,
		&curPrice,
		&loss,
		&savings,
		&purchaseStr,
		&alternatives,
		&status,
		&generatedStr,
		&expiresStr,
	)
	if err == sql.ErrNoRows {
		return model.HarvestRecommendation{}, err
	}
	if err != nil {
		return model.HarvestRecommendation{}, fmt.Errorf("failed to scan recommendation row: %w", err)
	}

	if rec.Quantity, err = ParseDecimal(qty); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.OriginalPrice, err = ParseDecimal(origPrice); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.CurrentPrice, err = ParseDecimal(curPrice); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.UnrealizedLoss, err = ParseDecimal(loss); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.PotentialTaxSavings, err = ParseDecimal(savings); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.PurchaseDate, err = ParseTime(purchaseStr); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.GeneratedAt, err = ParseTime(generatedStr); err != nil {
		return model.HarvestRecommendation{}, err
	}
	if rec.ExpiresAt, err = ParseTime(expiresStr); err != nil {
		return model.HarvestRecommendation{}, err
	}

	if rec.Status, err = model.ParseHarvestStatus(status); err != nil {
		return model.HarvestRecommendation{}, err
	}

	rec.AlternativeStocks = []string{}
	if alternatives.Valid && alternatives.String != "" {
		if err := json.Unmarshal([]byte(alternatives.String), &rec.AlternativeStocks); err != nil {
			return model.HarvestRecommendation{}, fmt.Errorf("failed to unmarshal alternatives: %w", err)
		}
	}

	return rec, nil
}
