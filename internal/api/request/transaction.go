package request

// IngestTransactionRequest is the body of POST /api/transaction. Quantities
// and prices arrive as strings so no precision is lost to JSON numbers.
type IngestTransactionRequest struct {
	AccountID      string `json:"accountId"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	FilledQty      string `json:"filledQty"`
	FilledAvgPrice string `json:"filledAvgPrice"`
	Fees           string `json:"fees"`
	FilledAt       string `json:"filledAt"`
	Status         string `json:"status"`
}

// SpecificLot names one lot and quantity of an explicit lot selection.
type SpecificLot struct {
	LotID    string `json:"lotId"`
	Quantity string `json:"quantity"`
}

// MatchRequest is the body of POST /api/transaction/{uuid}/match.
type MatchRequest struct {
	Method string        `json:"method"`
	Lots   []SpecificLot `json:"lots,omitempty"`
}
