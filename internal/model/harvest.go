package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HarvestStatus is the lifecycle state of a harvest recommendation.
type HarvestStatus string

// Recommendation lifecycle: OPEN is the only non-terminal state.
const (
	HarvestOpen     HarvestStatus = "OPEN"
	HarvestExecuted HarvestStatus = "EXECUTED"
	HarvestExpired  HarvestStatus = "EXPIRED"
	HarvestRejected HarvestStatus = "REJECTED"
)

// CanTransition reports whether the status may move to next. EXECUTED is
// event-driven (a matching sell committed), EXPIRED is time-driven, REJECTED
// is user-driven; all three are terminal.
func (s HarvestStatus) CanTransition(next HarvestStatus) bool {
	if s != HarvestOpen {
		return false
	}
	switch next {
	case HarvestExecuted, HarvestExpired, HarvestRejected:
		return true
	default:
		return false
	}
}

// ParseHarvestStatus parses a string into a HarvestStatus.
func ParseHarvestStatus(s string) (HarvestStatus, error) {
	switch HarvestStatus(s) {
	case HarvestOpen, HarvestExecuted, HarvestExpired, HarvestRejected:
		return HarvestStatus(s), nil
	default:
		return "", fmt.Errorf("unknown harvest status: %q", s)
	}
}

// HarvestRecommendation proposes selling a specific open BUY lot (or a portion
// of it) to realize a deductible loss, together with wash-sale-safe substitute
// tickers. UnrealizedLoss is always <= 0 and PotentialTaxSavings >= 0.
type HarvestRecommendation struct {
	ID                  string          `json:"id"`
	AccountID           string          `json:"accountId"`
	BuyTransactionID    string          `json:"buyTransactionId"`
	Ticker              string          `json:"ticker"`
	Quantity            decimal.Decimal `json:"quantity"`
	OriginalPrice       decimal.Decimal `json:"originalPrice"`
	CurrentPrice        decimal.Decimal `json:"currentPrice"`
	UnrealizedLoss      decimal.Decimal `json:"unrealizedLoss"`
	PotentialTaxSavings decimal.Decimal `json:"potentialTaxSavings"`
	PurchaseDate        time.Time       `json:"purchaseDate"`
	AlternativeStocks   []string        `json:"alternativeStocks"`
	Status              HarvestStatus   `json:"status"`
	GeneratedAt         time.Time       `json:"generatedAt"`
	ExpiresAt           time.Time       `json:"expiresAt"`
}
