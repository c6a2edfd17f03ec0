package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotMatch pairs part or all of one SELL against part or all of one BUY lot.
// A given (sell, buy) pair is matched at most once; partial fills against the
// same counter-lot are expressed as a single row with the matched quantity.
// Rows are immutable once written.
type LotMatch struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"accountId"`
	Symbol          string          `json:"symbol"`
	SellID          string          `json:"sellTransactionId"`
	BuyID           string          `json:"buyTransactionId"`
	QuantityMatched decimal.Decimal `json:"quantityMatched"`
	CostBasis       decimal.Decimal `json:"costBasis"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	RealizedGain    decimal.Decimal `json:"realizedGainLoss"`
	AcquisitionDate time.Time       `json:"acquisitionDate"`
	DisposalDate    time.Time       `json:"disposalDate"`
	HoldingDays     int             `json:"holdingPeriodDays"`
	IsLongTerm      bool            `json:"isLongTerm"`
	CreatedAt       time.Time       `json:"createdAt,omitempty"`
}
