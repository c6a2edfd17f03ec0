package pricefeed

import (
	"time"

	"github.com/shopspring/decimal"
)

// chartResponse maps the raw JSON shape of the Yahoo Finance chart API.
// Only the fields the feed consumes are declared.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *string `json:"error"`
	} `json:"chart"`
}

// Quote is the latest known closing price for a symbol.
type Quote struct {
	Symbol   string          `json:"symbol"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
	AsOf     time.Time       `json:"asOf"`
}
