package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the derived per-(account, symbol) aggregate. It is recomputed
// incrementally: every BUY updates the weighted-average cost basis, every
// committed lot match reduces total shares and accumulates realized P&L.
// All monetary fields are decimals; the zero value is a closed, empty position.
type Position struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"accountId"`
	Symbol          string          `json:"symbol"`
	TotalShares     decimal.Decimal `json:"totalShares"`
	AvgCostBasis    decimal.Decimal `json:"averageCostBasis"`
	TotalCost       decimal.Decimal `json:"totalCost"`
	LastPrice       decimal.Decimal `json:"lastPrice"`
	LastPricedAt    time.Time       `json:"lastPricedAt,omitempty"`
	MarketValue     decimal.Decimal `json:"marketValue"`
	UnrealizedPL    decimal.Decimal `json:"unrealizedPl"`
	RealizedPLYTD   decimal.Decimal `json:"realizedPlYtd"`
	RealizedYear    int             `json:"realizedYear"`
	IsOpen          bool            `json:"isOpen"`
	OpenedAt        time.Time       `json:"openedAt,omitempty"`
	ClosedAt        *time.Time      `json:"closedAt,omitempty"`
	LastUpdatedAt   time.Time       `json:"lastUpdatedAt,omitempty"`
}
