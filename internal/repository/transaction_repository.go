package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
)

// TransactionRepository provides data access methods for the transactions
// table, the append-only ledger of filled orders. Rows are created once and
// mutated only in remaining_qty, by the lot matcher, under a quantity
// check-and-set.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, account_id, symbol, side, filled_qty, filled_avg_price,
	fees, remaining_qty, filled_at, status, created_at
`

// InsertTransaction appends a transaction to the ledger.
func (r *TransactionRepository) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.AccountID,
		t.Symbol,
		t.Side,
		t.FilledQty.String(),
		t.FilledAvgPrice.String(),
		t.Fees.String(),
		t.RemainingQty.String(),
		FormatTime(t.FilledAt),
		t.Status,
		FormatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// GetTransaction retrieves a single ledger transaction by ID.
// Returns apperrors.ErrTransactionNotFound when no row exists.
func (r *TransactionRepository) GetTransaction(transactionID string) (model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	row := r.db.QueryRow(query, transactionID)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return model.Transaction{}, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}

	return t, nil
}

// GetTransactionsByAccount retrieves all ledger transactions for an account,
// optionally filtered by symbol, ordered by fill time ascending. An empty
// accountID returns all transactions.
func (r *TransactionRepository) GetTransactionsByAccount(accountID, symbol string) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`

	var args []any
	switch {
	case accountID != "" && symbol != "":
		query += ` WHERE account_id = ? AND symbol = ?`
		args = append(args, accountID, symbol)
	case accountID != "":
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY filled_at ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// GetOpenBuyLots retrieves all FILLED BUY transactions for the account and
// symbol with remaining_qty > 0, ordered by fill time. newestFirst selects
// LIFO candidate order; otherwise FIFO.
//
// remaining_qty is TEXT, so the positivity filter is applied in Go rather
// than SQL.
func (r *TransactionRepository) GetOpenBuyLots(accountID, symbol string, newestFirst bool) ([]model.Transaction, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = ? AND symbol = ? AND side = ? AND status = ?
		ORDER BY filled_at ` + order

	rows, err := r.db.Query(query, accountID, symbol, model.SideBuy, model.StatusFilled)
	if err != nil {
		return nil, fmt.Errorf("failed to query open buy lots: %w", err)
	}
	defer rows.Close()

	lots := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		if t.RemainingQty.IsPositive() {
			lots = append(lots, t)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open buy lots: %w", err)
	}

	return lots, nil
}

// GetOpenBuyLotsByAccount retrieves every open BUY lot across all symbols of
// one account, ordered by symbol then fill time. The harvest generator scans
// this set.
func (r *TransactionRepository) GetOpenBuyLotsByAccount(accountID string) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = ? AND side = ? AND status = ?
		ORDER BY symbol ASC, filled_at ASC
	`

	rows, err := r.db.Query(query, accountID, model.SideBuy, model.StatusFilled)
	if err != nil {
		return nil, fmt.Errorf("failed to query open buy lots: %w", err)
	}
	defer rows.Close()

	lots := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		if t.RemainingQty.IsPositive() {
			lots = append(lots, t)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open buy lots: %w", err)
	}

	return lots, nil
}

// GetSymbolsWithOpenLots returns the distinct symbols with at least one open
// BUY lot, across all accounts. The price refresh job uses this set.
func (r *TransactionRepository) GetSymbolsWithOpenLots() ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM transactions
		WHERE side = ? AND status = ? AND CAST(remaining_qty AS REAL) > 0
		ORDER BY symbol ASC
	`

	rows, err := r.db.Query(query, model.SideBuy, model.StatusFilled)
	if err != nil {
		return nil, fmt.Errorf("failed to query open symbols: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open symbols: %w", err)
	}

	return symbols, nil
}

// DecrementRemainingQty reduces a transaction's remaining quantity by qty
// inside the given database transaction. The WHERE clause re-checks the
// expected remaining quantity; a zero row count means another matcher got
// there first and the caller must abort with
// apperrors.ErrStaleConcurrentModification.
func (r *TransactionRepository) DecrementRemainingQty(ctx context.Context, tx *sql.Tx, id string, expected, qty decimal.Decimal) error {
	query := `
		UPDATE transactions
		SET remaining_qty = ?
		WHERE id = ? AND remaining_qty = ?
	`

	result, err := tx.ExecContext(ctx, query, expected.Sub(qty).String(), id, expected.String())
	if err != nil {
		return fmt.Errorf("failed to decrement remaining quantity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrStaleConcurrentModification
	}

	return nil
}

// GetSymbolsBoughtSince returns the distinct symbols the account bought on or
// after the cutoff. The harvest generator uses this as the wash-sale exclusion
// set for substitute tickers.
func (r *TransactionRepository) GetSymbolsBoughtSince(accountID string, cutoff time.Time) (map[string]bool, error) {
	query := `
		SELECT DISTINCT symbol
		FROM transactions
		WHERE account_id = ? AND side = ? AND status = ? AND filled_at >= ?
	`

	rows, err := r.db.Query(query, accountID, model.SideBuy, model.StatusFilled, FormatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent buys: %w", err)
	}
	defer rows.Close()

	symbols := make(map[string]bool)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols[symbol] = true
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent buys: %w", err)
	}

	return symbols, nil
}

// GetAccountsWithOpenLots returns the distinct account IDs holding at least
// one FILLED BUY transaction, for scheduler-driven scans.
func (r *TransactionRepository) GetAccountsWithOpenLots() ([]string, error) {
	query := `
		SELECT DISTINCT account_id
		FROM transactions
		WHERE side = ? AND status = ? AND CAST(remaining_qty AS REAL) > 0
	`

	rows, err := r.db.Query(query, model.SideBuy, model.StatusFilled)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		accounts = append(accounts, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// scanTransaction maps one transactions row onto a model.Transaction.
func scanTransaction(scan func(...any) error) (model.Transaction, error) {
	var t model.Transaction
	var filledQty, filledAvgPrice, fees, remainingQty string
	var filledAtStr, createdAtStr string

	err := scan(
		&t.ID,
		&t.AccountID,
		&t.Symbol,
		&t.Side,
		&filledQty,
		&filledAvgPrice,
		&fees,
		&remainingQty,
		&filledAtStr,
		&t.Status,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return model.Transaction{}, err
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to scan transaction row: %w", err)
	}

	if t.FilledQty, err = ParseDecimal(filledQty); err != nil {
		return model.Transaction{}, err
	}
	if t.FilledAvgPrice, err = ParseDecimal(filledAvgPrice); err != nil {
		return model.Transaction{}, err
	}
	if t.Fees, err = ParseDecimal(fees); err != nil {
		return model.Transaction{}, err
	}
	if t.RemainingQty, err = ParseDecimal(remainingQty); err != nil {
		return model.Transaction{}, err
	}
	if t.FilledAt, err = ParseTime(filledAtStr); err != nil {
		return model.Transaction{}, err
	}
	if t.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return model.Transaction{}, err
	}

	return t, nil
}
