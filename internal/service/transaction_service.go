package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
)

// TransactionService ingests orders into the append-only ledger. A FILLED BUY
// becomes an open lot (remaining quantity = filled quantity) and rolls into
// the account's position; anything non-FILLED is stored for the record but
// never participates in matching.
type TransactionService struct {
	transactionRepo *repository.TransactionRepository
	positionService *PositionService
}

// NewTransactionService creates a new TransactionService with the provided dependencies.
func NewTransactionService(transactionRepo *repository.TransactionRepository, positionService *PositionService) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		positionService: positionService,
	}
}

// Ingest validates and stores one order. The caller supplies everything but
// the ID and remaining quantity, which the service derives.
func (s *TransactionService) Ingest(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	if t.FilledQty.IsNegative() || t.FilledAvgPrice.IsNegative() || t.Fees.IsNegative() {
		return model.Transaction{}, fmt.Errorf("%w: quantity, price and fees must be non-negative", apperrors.ErrNegativeAmount)
	}

	t.ID = uuid.New().String()
	// For a FILLED BUY the remaining quantity is the open lot size; for a
	// FILLED SELL it is the quantity not yet matched. Non-FILLED orders never
	// participate in matching.
	if t.Status == model.StatusFilled {
		t.RemainingQty = t.FilledQty
	} else {
		t.RemainingQty = decimal.Zero
	}

	if err := s.transactionRepo.InsertTransaction(ctx, &t); err != nil {
		return model.Transaction{}, err
	}

	if t.IsOpenLot() {
		if _, err := s.positionService.ApplyBuy(ctx, t); err != nil {
			return model.Transaction{}, err
		}
	}

	return t, nil
}

// GetTransaction returns one transaction by ID.
func (s *TransactionService) GetTransaction(id string) (model.Transaction, error) {
	return s.transactionRepo.GetTransaction(id)
}

// GetTransactionsByAccount returns the account's transactions, optionally
// filtered by symbol.
func (s *TransactionService) GetTransactionsByAccount(accountID, symbol string) ([]model.Transaction, error) {
	return s.transactionRepo.GetTransactionsByAccount(accountID, symbol)
}
