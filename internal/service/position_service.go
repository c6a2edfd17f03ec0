package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
)

// PositionService maintains the derived per-(account, symbol) aggregates.
// Buys update the weighted-average cost basis; committed lot matches reduce
// shares and accumulate realized P&L; price marks refresh valuation only.
//
// Cost basis policy: the weighted average is a property of the remaining
// lots, so FIFO/LIFO sells leave it untouched. A SPECIFIC_LOT sell breaks
// that assumption (the caller chose which lots to consume), so the average
// is recomputed from the remaining open lots instead.
type PositionService struct {
	positionRepo    *repository.PositionRepository
	transactionRepo *repository.TransactionRepository
	priceRepo       *repository.PriceRepository
	engineCfg       config.EngineConfig
}

// NewPositionService creates a new PositionService with the provided repository dependencies.
func NewPositionService(
	positionRepo *repository.PositionRepository,
	transactionRepo *repository.TransactionRepository,
	priceRepo *repository.PriceRepository,
	engineCfg config.EngineConfig,
) *PositionService {
	return &PositionService{
		positionRepo:    positionRepo,
		transactionRepo: transactionRepo,
		priceRepo:       priceRepo,
		engineCfg:       engineCfg,
	}
}

// ApplyBuy folds a filled BUY into the position, opening it if it was closed.
// New average cost basis = (old shares x old avg + new shares x price) /
// (old shares + new shares).
func (s *PositionService) ApplyBuy(ctx context.Context, buy model.Transaction) (model.Position, error) {
	p, err := s.positionRepo.GetPosition(buy.AccountID, buy.Symbol)
	if errors.Is(err, apperrors.ErrPositionNotFound) {
		p = model.Position{
			ID:        uuid.New().String(),
			AccountID: buy.AccountID,
			Symbol:    buy.Symbol,
			OpenedAt:  buy.FilledAt,
		}
	} else if err != nil {
		return model.Position{}, err
	}

	newShares := p.TotalShares.Add(buy.FilledQty)
	weighted := p.TotalShares.Mul(p.AvgCostBasis).Add(buy.FilledQty.Mul(buy.FilledAvgPrice))
	p.AvgCostBasis = weighted.Div(newShares)
	p.TotalShares = newShares
	p.TotalCost = p.AvgCostBasis.Mul(p.TotalShares)

	if !p.IsOpen {
		p.IsOpen = true
		p.ClosedAt = nil
		if p.OpenedAt.IsZero() {
			p.OpenedAt = buy.FilledAt
		}
	}

	s.refreshValuation(&p)
	p.LastUpdatedAt = time.Now().UTC()

	if err := s.positionRepo.UpsertPosition(ctx, &p); err != nil {
		return model.Position{}, err
	}

	return p, nil
}

// ApplyLotMatches folds a committed set of lot matches into the position:
// shares drop by the matched quantities and realized P&L for the disposal's
// tax year accumulates. The position closes when shares reach zero.
func (s *PositionService) ApplyLotMatches(ctx context.Context, accountID, symbol string, matches []model.LotMatch, method model.LotSelectionMethod) error {
	if len(matches) == 0 {
		return nil
	}

	p, err := s.positionRepo.GetPosition(accountID, symbol)
	if err != nil {
		return err
	}

	for _, m := range matches {
		p.TotalShares = p.TotalShares.Sub(m.QuantityMatched)

		// The year only rolls forward. A match disposed in an earlier tax
		// year (historical backfill) must not wipe the current year's figure.
		year := m.DisposalDate.Year()
		switch {
		case year > p.RealizedYear:
			p.RealizedYear = year
			p.RealizedPLYTD = m.RealizedGain
		case year == p.RealizedYear:
			p.RealizedPLYTD = p.RealizedPLYTD.Add(m.RealizedGain)
		}
	}

	if method == model.SpecificLot {
		// The caller cherry-picked lots, so the running average no longer
		// describes what remains. Rebuild it from the open lots.
		if err := s.recomputeAverage(&p); err != nil {
			return err
		}
	} else {
		p.TotalCost = p.AvgCostBasis.Mul(p.TotalShares)
	}

	if p.TotalShares.IsZero() {
		p.IsOpen = false
		now := time.Now().UTC()
		p.ClosedAt = &now
		p.TotalCost = decimal.Zero
	}

	s.refreshValuation(&p)
	p.LastUpdatedAt = time.Now().UTC()

	return s.positionRepo.UpsertPosition(ctx, &p)
}

// MarkPrice records the current price for a symbol and refreshes the
// valuation of every position holding it. Realized figures are untouched.
func (s *PositionService) MarkPrice(ctx context.Context, symbol string, price decimal.Decimal, asOf time.Time) ([]model.Position, error) {
	if err := s.priceRepo.UpsertPrice(ctx, symbol, price, asOf); err != nil {
		return nil, err
	}

	positions, err := s.positionRepo.GetPositionsBySymbol(symbol)
	if err != nil {
		return nil, err
	}

	updated := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		p.LastPrice = price
		p.LastPricedAt = asOf
		s.refreshValuation(&p)
		p.LastUpdatedAt = time.Now().UTC()

		if err := s.positionRepo.UpsertPosition(ctx, &p); err != nil {
			return nil, err
		}
		updated = append(updated, p)
	}

	return updated, nil
}

// GetPosition returns the position for an account and symbol.
func (s *PositionService) GetPosition(accountID, symbol string) (model.Position, error) {
	return s.positionRepo.GetPosition(accountID, symbol)
}

// GetPositionsByAccount returns all positions for an account.
func (s *PositionService) GetPositionsByAccount(accountID string) ([]model.Position, error) {
	return s.positionRepo.GetPositionsByAccount(accountID)
}

// recomputeAverage rebuilds the weighted-average cost basis from the
// remaining open lots.
func (s *PositionService) recomputeAverage(p *model.Position) error {
	lots, err := s.transactionRepo.GetOpenBuyLots(p.AccountID, p.Symbol, false)
	if err != nil {
		return err
	}

	shares := decimal.Zero
	cost := decimal.Zero
	for _, lot := range lots {
		shares = shares.Add(lot.RemainingQty)
		cost = cost.Add(lot.RemainingQty.Mul(lot.FilledAvgPrice))
	}

	if shares.IsZero() {
		p.AvgCostBasis = decimal.Zero
		p.TotalCost = decimal.Zero
		return nil
	}

	p.AvgCostBasis = cost.Div(shares)
	p.TotalCost = cost
	return nil
}

// refreshValuation recomputes market value and unrealized P&L from the last
// known price. Positions that have never been priced stay at zero valuation.
func (s *PositionService) refreshValuation(p *model.Position) {
	if p.LastPrice.IsZero() {
		return
	}
	p.MarketValue = p.TotalShares.Mul(p.LastPrice).RoundBank(s.engineCfg.CurrencyPlaces)
	p.UnrealizedPL = p.MarketValue.Sub(p.TotalCost.RoundBank(s.engineCfg.CurrencyPlaces))
}
