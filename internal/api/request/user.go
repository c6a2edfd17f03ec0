package request

// SetProfileRequest is the body of PUT /api/user/{uuid}/profile.
type SetProfileRequest struct {
	TaxRate            *string `json:"taxRate,omitempty"`
	WashSaleWindowDays *int    `json:"washSaleWindowDays,omitempty"`
	BrokerToken        string  `json:"brokerToken,omitempty"`
}
