package request

// ImportCorrelationRequest is the body of POST /api/correlation. Correlation
// and beta similarity arrive as strings to preserve precision.
type ImportCorrelationRequest struct {
	TickerA        string `json:"tickerA"`
	TickerB        string `json:"tickerB"`
	Correlation    string `json:"correlation"`
	Sector         string `json:"sector,omitempty"`
	Industry       string `json:"industry,omitempty"`
	BetaSimilarity string `json:"betaSimilarity,omitempty"`
}
