package request

// ScanRequest is the body of POST /api/harvest/scan.
type ScanRequest struct {
	AccountID string `json:"accountId"`
}
