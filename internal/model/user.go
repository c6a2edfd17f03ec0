package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserProfile supplies the per-user inputs the harvest generator needs: the
// marginal tax rate applied to realized losses and an optional override of the
// wash-sale window. TaxRate is nil when the user has never configured one;
// the generator skips such accounts with a warning rather than failing.
//
// BrokerToken holds the user's brokerage API token, fernet-encrypted at rest.
type UserProfile struct {
	ID                 string           `json:"id"`
	AccountID          string           `json:"accountId"`
	TaxRate            *decimal.Decimal `json:"taxRate,omitempty"`
	WashSaleWindowDays *int             `json:"washSaleWindowDays,omitempty"`
	BrokerToken        string           `json:"-"`
	CreatedAt          time.Time        `json:"createdAt,omitempty"`
	UpdatedAt          time.Time        `json:"updatedAt,omitempty"`
}
