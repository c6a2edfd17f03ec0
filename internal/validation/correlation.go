package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
)

// ValidateImportCorrelation validates a correlation import request. The
// correlation must be in [-1, 1]; beta similarity, when present, must be
// non-negative.
func ValidateImportCorrelation(req request.ImportCorrelationRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.TickerA) == "" {
		errors["tickerA"] = "tickerA is required"
	}
	if strings.TrimSpace(req.TickerB) == "" {
		errors["tickerB"] = "tickerB is required"
	}
	if req.TickerA != "" && req.TickerA == req.TickerB {
		errors["tickerB"] = "tickers must differ"
	}

	one := decimal.NewFromInt(1)
	if corr, err := decimal.NewFromString(req.Correlation); err != nil {
		errors["correlation"] = err.Error()
	} else if corr.Abs().GreaterThan(one) {
		errors["correlation"] = "correlation must be between -1 and 1"
	}

	if req.BetaSimilarity != "" {
		if beta, err := decimal.NewFromString(req.BetaSimilarity); err != nil {
			errors["betaSimilarity"] = err.Error()
		} else if beta.IsNegative() {
			errors["betaSimilarity"] = "betaSimilarity must be non-negative"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
