package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the embedded goose migrations.
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Order ledger
		CREATE TABLE transactions (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			filled_qty TEXT NOT NULL,
			filled_avg_price TEXT NOT NULL,
			fees TEXT NOT NULL DEFAULT '0',
			remaining_qty TEXT NOT NULL,
			filled_at DATETIME NOT NULL,
			status VARCHAR(10) NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CHECK (side IN ('BUY', 'SELL'))
		);

		CREATE INDEX idx_transactions_account_symbol ON transactions (account_id, symbol, filled_at);

		-- Matched sell/buy pairs
		CREATE TABLE lot_matches (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			sell_transaction_id VARCHAR(36) NOT NULL,
			buy_transaction_id VARCHAR(36) NOT NULL,
			quantity_matched TEXT NOT NULL,
			cost_basis TEXT NOT NULL,
			proceeds TEXT NOT NULL,
			realized_gain_loss TEXT NOT NULL,
			acquisition_date DATETIME NOT NULL,
			disposal_date DATETIME NOT NULL,
			holding_period_days INTEGER NOT NULL,
			is_long_term BOOLEAN NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (sell_transaction_id) REFERENCES transactions (id) ON DELETE CASCADE,
			FOREIGN KEY (buy_transaction_id) REFERENCES transactions (id) ON DELETE CASCADE,
			CONSTRAINT unique_sell_buy_pair UNIQUE (sell_transaction_id, buy_transaction_id)
		);

		-- Per-(account, symbol) aggregate
		CREATE TABLE positions (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			total_shares TEXT NOT NULL DEFAULT '0',
			average_cost_basis TEXT NOT NULL DEFAULT '0',
			total_cost TEXT NOT NULL DEFAULT '0',
			last_price TEXT NOT NULL DEFAULT '0',
			last_priced_at DATETIME,
			market_value TEXT NOT NULL DEFAULT '0',
			unrealized_pl TEXT NOT NULL DEFAULT '0',
			realized_pl_ytd TEXT NOT NULL DEFAULT '0',
			realized_year INTEGER NOT NULL DEFAULT 0,
			is_open BOOLEAN NOT NULL DEFAULT TRUE,
			opened_at DATETIME,
			closed_at DATETIME,
			last_updated_at DATETIME,
			CONSTRAINT unique_account_symbol UNIQUE (account_id, symbol)
		);

		-- Harvest proposals
		CREATE TABLE harvest_recommendations (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL,
			buy_transaction_id VARCHAR(36) NOT NULL,
			ticker VARCHAR(20) NOT NULL,
			quantity TEXT NOT NULL,
			original_price TEXT NOT NULL,
			current_price TEXT NOT NULL,
			unrealized_loss TEXT NOT NULL,
			potential_tax_savings TEXT NOT NULL,
			purchase_date DATETIME NOT NULL,
			alternative_stocks TEXT,
			status VARCHAR(10) NOT NULL DEFAULT 'OPEN',
			generated_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (buy_transaction_id) REFERENCES transactions (id) ON DELETE CASCADE
		);

		-- Pairwise ticker similarity
		CREATE TABLE stock_correlations (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker_a VARCHAR(20) NOT NULL,
			ticker_b VARCHAR(20) NOT NULL,
			correlation_coefficient TEXT NOT NULL,
			sector VARCHAR(100),
			industry VARCHAR(100),
			beta_similarity TEXT NOT NULL DEFAULT '0',
			calculated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_ticker_pair UNIQUE (ticker_a, ticker_b),
			CHECK (ticker_a < ticker_b)
		);

		-- Per-account harvesting inputs
		CREATE TABLE user_profiles (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL UNIQUE,
			tax_rate TEXT,
			wash_sale_window_days INTEGER,
			broker_token TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME
		);

		-- Last known price per symbol
		CREATE TABLE symbol_prices (
			symbol VARCHAR(20) NOT NULL PRIMARY KEY,
			price TEXT NOT NULL,
			as_of DATETIME NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}
