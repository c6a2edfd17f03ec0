package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorrelationEntry is a symmetric pairwise fact about two tickers, stored once
// per unordered pair with TickerA < TickerB. Rows are computed offline and are
// read-only to this service.
type CorrelationEntry struct {
	ID             string          `json:"id"`
	TickerA        string          `json:"tickerA"`
	TickerB        string          `json:"tickerB"`
	Correlation    decimal.Decimal `json:"correlationCoefficient"`
	Sector         string          `json:"sector,omitempty"`
	Industry       string          `json:"industry,omitempty"`
	BetaSimilarity decimal.Decimal `json:"betaSimilarity"`
	CalculatedAt   time.Time       `json:"calculatedAt,omitempty"`
}

// CanonicalPair orders two tickers so each unordered pair has one stored form.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Other returns the counterpart ticker of the entry. The second return is
// false when ticker appears in neither column.
func (e CorrelationEntry) Other(ticker string) (string, bool) {
	switch ticker {
	case e.TickerA:
		return e.TickerB, true
	case e.TickerB:
		return e.TickerA, true
	default:
		return "", false
	}
}
