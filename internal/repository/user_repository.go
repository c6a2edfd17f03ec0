package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
)

// UserRepository provides data access methods for the user_profiles table.
// Token encryption happens in the service layer; this repository stores the
// ciphertext verbatim.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the provided database connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, account_id, tax_rate, wash_sale_window_days, broker_token, created_at, updated_at
`

// GetProfileByAccount retrieves the profile for an account.
// Returns apperrors.ErrUserProfileNotFound when no row exists.
func (r *UserRepository) GetProfileByAccount(accountID string) (model.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM user_profiles WHERE account_id = ?`

	var p model.UserProfile
	var taxRate, brokerToken, createdAt, updatedAt sql.NullString
	var washWindow sql.NullInt64

	err := r.db.QueryRow(query, accountID).Scan(
		&p.ID,
		&p.AccountID,
		&taxRate,
		&washWindow,
		&brokerToken,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return model.UserProfile{}, apperrors.ErrUserProfileNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to scan user profile: %w", err)
	}

	if p.TaxRate, err = ParseNullDecimal(taxRate); err != nil {
		return model.UserProfile{}, err
	}
	if washWindow.Valid {
		days := int(washWindow.Int64)
		p.WashSaleWindowDays = &days
	}
	p.BrokerToken = brokerToken.String
	if createdAt.Valid {
		if p.CreatedAt, err = ParseTime(createdAt.String); err != nil {
			return model.UserProfile{}, err
		}
	}
	if updatedAt.Valid {
		if p.UpdatedAt, err = ParseTime(updatedAt.String); err != nil {
			return model.UserProfile{}, err
		}
	}

	return p, nil
}

// UpsertProfile writes the profile row for an account.
func (r *UserRepository) UpsertProfile(ctx context.Context, p *model.UserProfile) error {
	query := `
		INSERT INTO user_profiles (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE SET
			tax_rate = excluded.tax_rate,
			wash_sale_window_days = excluded.wash_sale_window_days,
			broker_token = excluded.broker_token,
			updated_at = excluded.updated_at
	`

	var taxRate, washWindow, brokerToken, updatedAt any
	if p.TaxRate != nil {
		taxRate = p.TaxRate.String()
	}
	if p.WashSaleWindowDays != nil {
		washWindow = *p.WashSaleWindowDays
	}
	if p.BrokerToken != "" {
		brokerToken = p.BrokerToken
	}
	if !p.UpdatedAt.IsZero() {
		updatedAt = FormatTime(p.UpdatedAt)
	}

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.AccountID,
		taxRate,
		washWindow,
		brokerToken,
		FormatTime(p.CreatedAt),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}

	return nil
}
