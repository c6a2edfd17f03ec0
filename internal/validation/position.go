package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
)

// ValidateMarkPrice validates a price mark request.
func ValidateMarkPrice(req request.MarkPriceRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Symbol) == "" {
		errors["symbol"] = "symbol is required"
	}

	if price, err := decimal.NewFromString(req.Price); err != nil {
		errors["price"] = err.Error()
	} else if !price.IsPositive() {
		errors["price"] = "price must be positive"
	}

	if req.AsOf != "" {
		if _, err := ParseTimestamp(req.AsOf); err != nil {
			errors["asOf"] = err.Error()
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
