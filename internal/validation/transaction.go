package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
	"github.com/taxharvest/engine/internal/model"
)

// ValidSide contains the allowed transaction side values.
var ValidSide = map[string]bool{
	model.SideBuy: true, model.SideSell: true,
}

// ValidStatus contains the allowed transaction status values.
var ValidStatus = map[string]bool{
	model.StatusFilled: true, model.StatusCanceled: true,
	model.StatusExpired: true, model.StatusRejected: true,
}

// ValidateIngestTransaction validates a transaction ingest request.
//
// Required fields:
//   - accountId: must be a valid UUID
//   - symbol: non-empty ticker
//   - side: BUY or SELL
//   - status: FILLED, CANCELED, EXPIRED or REJECTED
//   - filledQty, filledAvgPrice: positive decimals
//   - fees: non-negative decimal (empty means zero)
//   - filledAt: YYYY-MM-DD or RFC3339
func ValidateIngestTransaction(req request.IngestTransactionRequest) error {
	if err := ValidateUUID(req.AccountID); err != nil {
		return err
	}

	errors := make(map[string]string)

	if strings.TrimSpace(req.Symbol) == "" {
		errors["symbol"] = "symbol is required"
	}

	if !ValidSide[req.Side] {
		errors["side"] = fmt.Sprintf("invalid side: %s", req.Side)
	}
	if !ValidStatus[req.Status] {
		errors["status"] = fmt.Sprintf("invalid status: %s", req.Status)
	}

	if qty, err := decimal.NewFromString(req.FilledQty); err != nil {
		errors["filledQty"] = err.Error()
	} else if !qty.IsPositive() {
		errors["filledQty"] = "filledQty must be positive"
	}

	if price, err := decimal.NewFromString(req.FilledAvgPrice); err != nil {
		errors["filledAvgPrice"] = err.Error()
	} else if !price.IsPositive() {
		errors["filledAvgPrice"] = "filledAvgPrice must be positive"
	}

	if req.Fees != "" {
		if fees, err := decimal.NewFromString(req.Fees); err != nil {
			errors["fees"] = err.Error()
		} else if fees.IsNegative() {
			errors["fees"] = "fees must be non-negative"
		}
	}

	if strings.TrimSpace(req.FilledAt) == "" {
		errors["filledAt"] = "filledAt is required"
	} else if _, err := ParseTimestamp(req.FilledAt); err != nil {
		errors["filledAt"] = err.Error()
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ValidateMatch validates a lot match request. Explicit lots are required for
// SPECIFIC_LOT and forbidden otherwise.
func ValidateMatch(req request.MatchRequest) error {
	errors := make(map[string]string)

	method, err := model.ParseLotSelectionMethod(req.Method)
	if err != nil {
		errors["method"] = err.Error()
	}

	switch {
	case err == nil && method == model.SpecificLot && len(req.Lots) == 0:
		errors["lots"] = "SPECIFIC_LOT requires at least one lot"
	case err == nil && method != model.SpecificLot && len(req.Lots) > 0:
		errors["lots"] = fmt.Sprintf("lots are not allowed with method %s", method)
	}

	for i, lot := range req.Lots {
		if uuidErr := ValidateUUID(lot.LotID); uuidErr != nil {
			errors[fmt.Sprintf("lots[%d].lotId", i)] = uuidErr.Error()
			continue
		}
		if qty, qtyErr := decimal.NewFromString(lot.Quantity); qtyErr != nil {
			errors[fmt.Sprintf("lots[%d].quantity", i)] = qtyErr.Error()
		} else if !qty.IsPositive() {
			errors[fmt.Sprintf("lots[%d].quantity", i)] = "quantity must be positive"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ParseTimestamp parses a date-only or RFC3339 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
