package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LotSelectionMethod selects which open BUY lots a sell consumes, and in what
// order.
type LotSelectionMethod int

const (
	// FIFO consumes the oldest open lot first.
	FIFO LotSelectionMethod = iota
	// LIFO consumes the newest open lot first.
	LIFO
	// SpecificLot consumes an explicit caller-supplied ordered list of lots.
	SpecificLot
)

func (m LotSelectionMethod) String() string {
	switch m {
	case FIFO:
		return "FIFO"
	case LIFO:
		return "LIFO"
	case SpecificLot:
		return "SPECIFIC_LOT"
	default:
		return "unknown"
	}
}

// ParseLotSelectionMethod parses a string into a LotSelectionMethod.
func ParseLotSelectionMethod(s string) (LotSelectionMethod, error) {
	switch s {
	case "FIFO":
		return FIFO, nil
	case "LIFO":
		return LIFO, nil
	case "SPECIFIC_LOT":
		return SpecificLot, nil
	default:
		return 0, fmt.Errorf("unknown lot selection method: %q", s)
	}
}

// SpecificLotRequest names one lot and the quantity to consume from it, in
// caller-supplied order.
type SpecificLotRequest struct {
	LotID    string          `json:"lotId"`
	Quantity decimal.Decimal `json:"quantity"`
}
