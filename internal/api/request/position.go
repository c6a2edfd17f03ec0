package request

// MarkPriceRequest is the body of POST /api/position/price.
type MarkPriceRequest struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	AsOf   string `json:"asOf,omitempty"`
}
