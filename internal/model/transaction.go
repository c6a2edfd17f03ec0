package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction side values.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction status values. Only FILLED transactions participate in lot matching;
// other statuses are retained in the ledger but never consumed.
const (
	StatusFilled   = "FILLED"
	StatusCanceled = "CANCELED"
	StatusExpired  = "EXPIRED"
	StatusRejected = "REJECTED"
)

// Transaction represents one filled (or terminal) order in the append-only ledger.
// It is the source of truth for lot identity: a BUY transaction is an open lot for
// as long as its RemainingQty is positive.
//
// RemainingQty is the only mutable field. For a BUY it tracks shares not yet
// consumed by any sell match; for a SELL it tracks the quantity still unmatched.
// The lot matcher is the only writer.
type Transaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"accountId"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	FilledQty      decimal.Decimal `json:"filledQty"`
	FilledAvgPrice decimal.Decimal `json:"filledAvgPrice"`
	Fees           decimal.Decimal `json:"fees"`
	RemainingQty   decimal.Decimal `json:"remainingQty"`
	FilledAt       time.Time       `json:"filledAt"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt,omitempty"`
}

// IsOpenLot reports whether the transaction is a BUY lot with unconsumed shares.
func (t Transaction) IsOpenLot() bool {
	return t.Side == SideBuy && t.Status == StatusFilled && t.RemainingQty.IsPositive()
}
