package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
)

// lotCandidate is one open BUY lot a sell may consume, with a cap on how much
// of it this selection allows (an explicit lot request may ask for less than
// the lot holds).
type lotCandidate struct {
	lot model.Transaction
	cap decimal.Decimal
}

// lotSelector produces the ordered candidate list for one sell. FIFO and LIFO
// derive the order from fill timestamps; SPECIFIC_LOT replays the caller's
// explicit list.
type lotSelector interface {
	candidates(sell model.Transaction) ([]lotCandidate, error)
}

// newLotSelector builds the selector for the requested method.
func newLotSelector(repo ledgerReader, method model.LotSelectionMethod, explicit []model.SpecificLotRequest) (lotSelector, error) {
	switch method {
	case model.FIFO:
		return timeOrderSelector{repo: repo, newestFirst: false}, nil
	case model.LIFO:
		return timeOrderSelector{repo: repo, newestFirst: true}, nil
	case model.SpecificLot:
		if len(explicit) == 0 {
			return nil, fmt.Errorf("%w: no lots supplied", apperrors.ErrInvalidLotSelection)
		}
		return specificLotSelector{repo: repo, requests: explicit}, nil
	default:
		return nil, fmt.Errorf("unsupported lot selection method: %v", method)
	}
}

// ledgerReader is the slice of the transaction repository the selectors need.
type ledgerReader interface {
	GetOpenBuyLots(accountID, symbol string, newestFirst bool) ([]model.Transaction, error)
	GetTransaction(transactionID string) (model.Transaction, error)
}

// timeOrderSelector orders the open lots by fill time: oldest first (FIFO) or
// newest first (LIFO). Each candidate may be consumed in full.
type timeOrderSelector struct {
	repo        ledgerReader
	newestFirst bool
}

func (s timeOrderSelector) candidates(sell model.Transaction) ([]lotCandidate, error) {
	lots, err := s.repo.GetOpenBuyLots(sell.AccountID, sell.Symbol, s.newestFirst)
	if err != nil {
		return nil, err
	}

	candidates := make([]lotCandidate, 0, len(lots))
	for _, lot := range lots {
		candidates = append(candidates, lotCandidate{lot: lot, cap: lot.RemainingQty})
	}
	return candidates, nil
}

// specificLotSelector replays an explicit ordered (lot, quantity) list. Every
// referenced lot must be an open BUY for the sell's account and symbol, and
// the requested quantity must not exceed what the lot holds.
type specificLotSelector struct {
	repo     ledgerReader
	requests []model.SpecificLotRequest
}

func (s specificLotSelector) candidates(sell model.Transaction) ([]lotCandidate, error) {
	seen := make(map[string]bool, len(s.requests))
	candidates := make([]lotCandidate, 0, len(s.requests))

	for _, req := range s.requests {
		if seen[req.LotID] {
			return nil, fmt.Errorf("%w: lot %s listed twice", apperrors.ErrInvalidLotSelection, req.LotID)
		}
		seen[req.LotID] = true

		if !req.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: non-positive quantity for lot %s", apperrors.ErrInvalidLotSelection, req.LotID)
		}

		lot, err := s.repo.GetTransaction(req.LotID)
		if err != nil {
			return nil, fmt.Errorf("%w: lot %s", apperrors.ErrInvalidLotSelection, req.LotID)
		}
		if lot.AccountID != sell.AccountID || lot.Symbol != sell.Symbol {
			return nil, fmt.Errorf("%w: lot %s does not belong to account/symbol", apperrors.ErrInvalidLotSelection, req.LotID)
		}
		if !lot.IsOpenLot() {
			return nil, fmt.Errorf("%w: lot %s is not open", apperrors.ErrInvalidLotSelection, req.LotID)
		}
		if req.Quantity.GreaterThan(lot.RemainingQty) {
			return nil, fmt.Errorf("%w: lot %s holds %s, %s requested",
				apperrors.ErrInvalidLotSelection, req.LotID, lot.RemainingQty, req.Quantity)
		}

		candidates = append(candidates, lotCandidate{lot: lot, cap: req.Quantity})
	}

	return candidates, nil
}
