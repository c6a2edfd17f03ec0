package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/model"
)

// TransactionBuilder provides a fluent interface for creating ledger rows.
//
// Example usage:
//
//	// A filled buy lot with defaults
//	buy := testutil.NewBuy().Build(t, db)
//
//	// A customized sell
//	sell := testutil.NewSell().
//	    WithAccount(buy.AccountID).
//	    WithSymbol("AAPL").
//	    WithQty("150").
//	    WithPrice("15").
//	    FilledOn(day10).
//	    Build(t, db)
type TransactionBuilder struct {
	ID             string
	AccountID      string
	Symbol         string
	Side           string
	FilledQty      string
	FilledAvgPrice string
	Fees           string
	RemainingQty   string
	FilledAt       time.Time
	Status         string
}

// NewBuy creates a TransactionBuilder for a filled BUY with an untouched lot.
func NewBuy() *TransactionBuilder {
	return &TransactionBuilder{
		ID:             MakeID(),
		AccountID:      MakeID(),
		Symbol:         "AAPL",
		Side:           model.SideBuy,
		FilledQty:      "100",
		FilledAvgPrice: "10",
		Fees:           "0",
		RemainingQty:   "100",
		FilledAt:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:         model.StatusFilled,
	}
}

// NewSell creates a TransactionBuilder for a filled SELL awaiting matching.
func NewSell() *TransactionBuilder {
	b := NewBuy()
	b.Side = model.SideSell
	b.FilledAvgPrice = "15"
	b.RemainingQty = b.FilledQty
	b.FilledAt = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return b
}

// WithID sets a custom ID.
func (b *TransactionBuilder) WithID(id string) *TransactionBuilder {
	b.ID = id
	return b
}

// WithAccount sets a custom account ID.
func (b *TransactionBuilder) WithAccount(accountID string) *TransactionBuilder {
	b.AccountID = accountID
	return b
}

// WithSymbol sets a custom symbol.
func (b *TransactionBuilder) WithSymbol(symbol string) *TransactionBuilder {
	b.Symbol = symbol
	return b
}

// WithQty sets both filled and remaining quantity.
func (b *TransactionBuilder) WithQty(qty string) *TransactionBuilder {
	b.FilledQty = qty
	b.RemainingQty = qty
	return b
}

// WithRemaining sets the remaining quantity only, for partially consumed lots.
func (b *TransactionBuilder) WithRemaining(qty string) *TransactionBuilder {
	b.RemainingQty = qty
	return b
}

// WithPrice sets a custom fill price.
func (b *TransactionBuilder) WithPrice(price string) *TransactionBuilder {
	b.FilledAvgPrice = price
	return b
}

// WithFees sets custom fees.
func (b *TransactionBuilder) WithFees(fees string) *TransactionBuilder {
	b.Fees = fees
	return b
}

// FilledOn sets the fill timestamp.
func (b *TransactionBuilder) FilledOn(at time.Time) *TransactionBuilder {
	b.FilledAt = at
	return b
}

// WithStatus sets a custom status.
func (b *TransactionBuilder) WithStatus(status string) *TransactionBuilder {
	b.Status = status
	return b
}

// Canceled marks the order canceled and zeroes the remaining quantity.
func (b *TransactionBuilder) Canceled() *TransactionBuilder {
	b.Status = model.StatusCanceled
	b.RemainingQty = "0"
	return b
}

// Build inserts the transaction and returns the model.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) model.Transaction {
	t.Helper()

	query := `
		INSERT INTO transactions (id, account_id, symbol, side, filled_qty, filled_avg_price, fees, remaining_qty, filled_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		b.ID, b.AccountID, b.Symbol, b.Side,
		b.FilledQty, b.FilledAvgPrice, b.Fees, b.RemainingQty,
		b.FilledAt.UTC().Format(time.RFC3339), b.Status,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}

	return model.Transaction{
		ID:             b.ID,
		AccountID:      b.AccountID,
		Symbol:         b.Symbol,
		Side:           b.Side,
		FilledQty:      mustDecimal(t, b.FilledQty),
		FilledAvgPrice: mustDecimal(t, b.FilledAvgPrice),
		Fees:           mustDecimal(t, b.Fees),
		RemainingQty:   mustDecimal(t, b.RemainingQty),
		FilledAt:       b.FilledAt.UTC(),
		Status:         b.Status,
	}
}

// CorrelationBuilder provides a fluent interface for creating correlation rows.
type CorrelationBuilder struct {
	ID             string
	TickerA        string
	TickerB        string
	Correlation    string
	Sector         string
	Industry       string
	BetaSimilarity string
}

// NewCorrelation creates a CorrelationBuilder with sensible defaults. The
// ticker pair is canonicalized on Build.
func NewCorrelation(a, b string) *CorrelationBuilder {
	return &CorrelationBuilder{
		ID:             MakeID(),
		TickerA:        a,
		TickerB:        b,
		Correlation:    "0.9",
		BetaSimilarity: "0.5",
	}
}

// WithCorrelation sets the correlation coefficient.
func (b *CorrelationBuilder) WithCorrelation(corr string) *CorrelationBuilder {
	b.Correlation = corr
	return b
}

// WithSector marks the pair as sharing a sector.
func (b *CorrelationBuilder) WithSector(sector string) *CorrelationBuilder {
	b.Sector = sector
	return b
}

// WithIndustry marks the pair as sharing an industry.
func (b *CorrelationBuilder) WithIndustry(industry string) *CorrelationBuilder {
	b.Industry = industry
	return b
}

// WithBeta sets the beta similarity.
func (b *CorrelationBuilder) WithBeta(beta string) *CorrelationBuilder {
	b.BetaSimilarity = beta
	return b
}

// Build inserts the correlation entry and returns the model.
func (b *CorrelationBuilder) Build(t *testing.T, db *sql.DB) model.CorrelationEntry {
	t.Helper()

	tickerA, tickerB := model.CanonicalPair(b.TickerA, b.TickerB)

	query := `
		INSERT INTO stock_correlations (id, ticker_a, ticker_b, correlation_coefficient, sector, industry, beta_similarity, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var sector, industry any
	if b.Sector != "" {
		sector = b.Sector
	}
	if b.Industry != "" {
		industry = b.Industry
	}

	_, err := db.Exec(query,
		b.ID, tickerA, tickerB, b.Correlation, sector, industry, b.BetaSimilarity,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to create test correlation: %v", err)
	}

	return model.CorrelationEntry{
		ID:             b.ID,
		TickerA:        tickerA,
		TickerB:        tickerB,
		Correlation:    mustDecimal(t, b.Correlation),
		Sector:         b.Sector,
		Industry:       b.Industry,
		BetaSimilarity: mustDecimal(t, b.BetaSimilarity),
	}
}

// ProfileBuilder provides a fluent interface for creating user profiles.
type ProfileBuilder struct {
	ID                 string
	AccountID          string
	TaxRate            string
	WashSaleWindowDays *int
	BrokerToken        string
}

// NewProfile creates a ProfileBuilder with a 25% tax rate.
func NewProfile(accountID string) *ProfileBuilder {
	return &ProfileBuilder{
		ID:        MakeID(),
		AccountID: accountID,
		TaxRate:   "0.25",
	}
}

// WithTaxRate sets the tax rate; an empty string leaves it NULL.
func (b *ProfileBuilder) WithTaxRate(rate string) *ProfileBuilder {
	b.TaxRate = rate
	return b
}

// WithWashWindow overrides the wash-sale window.
func (b *ProfileBuilder) WithWashWindow(days int) *ProfileBuilder {
	b.WashSaleWindowDays = &days
	return b
}

// WithBrokerToken sets the stored (already encrypted) broker token.
func (b *ProfileBuilder) WithBrokerToken(token string) *ProfileBuilder {
	b.BrokerToken = token
	return b
}

// Build inserts the profile and returns the model.
func (b *ProfileBuilder) Build(t *testing.T, db *sql.DB) model.UserProfile {
	t.Helper()

	query := `
		INSERT INTO user_profiles (id, account_id, tax_rate, wash_sale_window_days, broker_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var taxRate, washWindow, token any
	if b.TaxRate != "" {
		taxRate = b.TaxRate
	}
	if b.WashSaleWindowDays != nil {
		washWindow = *b.WashSaleWindowDays
	}
	if b.BrokerToken != "" {
		token = b.BrokerToken
	}

	_, err := db.Exec(query, b.ID, b.AccountID, taxRate, washWindow, token,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	p := model.UserProfile{
		ID:                 b.ID,
		AccountID:          b.AccountID,
		WashSaleWindowDays: b.WashSaleWindowDays,
		BrokerToken:        b.BrokerToken,
	}
	if b.TaxRate != "" {
		rate := mustDecimal(t, b.TaxRate)
		p.TaxRate = &rate
	}
	return p
}

// RecommendationBuilder provides a fluent interface for creating harvest rows.
type RecommendationBuilder struct {
	ID               string
	AccountID        string
	BuyTransactionID string
	Ticker           string
	Status           model.HarvestStatus
	Alternatives     []string
	GeneratedAt      time.Time
	ExpiresAt        time.Time
}

// NewRecommendation creates a RecommendationBuilder tied to the given buy lot.
func NewRecommendation(buy model.Transaction) *RecommendationBuilder {
	now := time.Now().UTC()
	return &RecommendationBuilder{
		ID:               MakeID(),
		AccountID:        buy.AccountID,
		BuyTransactionID: buy.ID,
		Ticker:           buy.Symbol,
		Status:           model.HarvestOpen,
		Alternatives:     []string{},
		GeneratedAt:      now,
		ExpiresAt:        now.Add(72 * time.Hour),
	}
}

// WithStatus sets a custom status.
func (b *RecommendationBuilder) WithStatus(status model.HarvestStatus) *RecommendationBuilder {
	b.Status = status
	return b
}

// Expired backdates the expiry so the sweep picks the recommendation up.
func (b *RecommendationBuilder) Expired() *RecommendationBuilder {
	b.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	return b
}

// WithAlternatives sets the substitute ticker list.
func (b *RecommendationBuilder) WithAlternatives(alternatives ...string) *RecommendationBuilder {
	b.Alternatives = alternatives
	return b
}

// Build inserts the recommendation and returns the model.
func (b *RecommendationBuilder) Build(t *testing.T, db *sql.DB) model.HarvestRecommendation {
	t.Helper()

	alternatives, err := json.Marshal(b.Alternatives)
	if err != nil {
		t.Fatalf("Failed to marshal alternatives: %v", err)
	}

	query := `
		INSERT INTO harvest_recommendations (id, account_id, buy_transaction_id, ticker, quantity, original_price, current_price, unrealized_loss, potential_tax_savings, purchase_date, alternative_stocks, status, generated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query,
		b.ID, b.AccountID, b.BuyTransactionID, b.Ticker,
		"100", "10", "8", "-200", "50",
		b.GeneratedAt.Format(time.RFC3339),
		string(alternatives), string(b.Status),
		b.GeneratedAt.Format(time.RFC3339),
		b.ExpiresAt.Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to create test recommendation: %v", err)
	}

	return model.HarvestRecommendation{
		ID:               b.ID,
		AccountID:        b.AccountID,
		BuyTransactionID: b.BuyTransactionID,
		Ticker:           b.Ticker,
		Status:           b.Status,
		GeneratedAt:      b.GeneratedAt,
		ExpiresAt:        b.ExpiresAt,
	}
}

// SetPrice writes a cached price for a symbol, as of now unless shifted.
func SetPrice(t *testing.T, db *sql.DB, symbol, price string, asOf time.Time) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO symbol_prices (symbol, price, as_of) VALUES (?, ?, ?)
		 ON CONFLICT (symbol) DO UPDATE SET price = excluded.price, as_of = excluded.as_of`,
		symbol, price, asOf.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to set test price: %v", err)
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}
