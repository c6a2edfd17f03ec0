package validation

import (
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
)

// ValidateSetProfile validates a profile update request. The tax rate is a
// fraction in [0, 1].
func ValidateSetProfile(req request.SetProfileRequest) error {
	errors := make(map[string]string)

	if req.TaxRate != nil {
		one := decimal.NewFromInt(1)
		if rate, err := decimal.NewFromString(*req.TaxRate); err != nil {
			errors["taxRate"] = err.Error()
		} else if rate.IsNegative() || rate.GreaterThan(one) {
			errors["taxRate"] = "taxRate must be between 0 and 1"
		}
	}

	if req.WashSaleWindowDays != nil && *req.WashSaleWindowDays < 0 {
		errors["washSaleWindowDays"] = "washSaleWindowDays must be non-negative"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
