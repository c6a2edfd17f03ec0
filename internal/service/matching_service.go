package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
)

// MatchingService runs the lot matcher: it pairs a filled SELL against open
// BUY lots per the chosen selection method and commits the resulting lot
// matches and quantity decrements atomically.
//
// Matching is all-or-nothing per sell. Candidates are consumed greedily in
// memory first; nothing is written unless the sell is fully covered. The
// commit runs inside one SQL transaction under a per-(account, symbol) lock,
// with a remaining-quantity check-and-set backstopping against writers that
// slipped past the lock.
type MatchingService struct {
	db              *sql.DB
	transactionRepo *repository.TransactionRepository
	lotMatchRepo    *repository.LotMatchRepository
	harvestRepo     *repository.HarvestRepository
	positionService *PositionService
	locks           *lotLocks
	engineCfg       config.EngineConfig
}

// NewMatchingService creates a new MatchingService with the provided dependencies.
func NewMatchingService(
	db *sql.DB,
	transactionRepo *repository.TransactionRepository,
	lotMatchRepo *repository.LotMatchRepository,
	harvestRepo *repository.HarvestRepository,
	positionService *PositionService,
	engineCfg config.EngineConfig,
) *MatchingService {
	return &MatchingService{
		db:              db,
		transactionRepo: transactionRepo,
		lotMatchRepo:    lotMatchRepo,
		harvestRepo:     harvestRepo,
		positionService: positionService,
		locks:           newLotLocks(),
		engineCfg:       engineCfg,
	}
}

// Match pairs the sell transaction against open buy lots and returns the
// committed lot matches. explicitLots is consulted only for SPECIFIC_LOT.
//
// On ErrInsufficientLots, ErrInvalidLotSelection, or
// ErrStaleConcurrentModification no state has changed; the last one is safe
// to retry as a whole.
func (s *MatchingService) Match(ctx context.Context, sellID string, method model.LotSelectionMethod, explicitLots []model.SpecificLotRequest) ([]model.LotMatch, error) {
	sell, err := s.transactionRepo.GetTransaction(sellID)
	if err != nil {
		return nil, err
	}
	if sell.Side != model.SideSell || sell.Status != model.StatusFilled {
		return nil, apperrors.ErrNotASell
	}
	if !sell.RemainingQty.IsPositive() {
		return nil, fmt.Errorf("%w: sell %s already fully matched", apperrors.ErrDuplicateEntry, sellID)
	}

	// Serialize the read-match-commit sequence per (account, symbol).
	lock := s.locks.acquire(sell.AccountID, sell.Symbol)
	defer lock.Unlock()

	selector, err := newLotSelector(s.transactionRepo, method, explicitLots)
	if err != nil {
		return nil, err
	}

	candidates, err := selector.candidates(sell)
	if err != nil {
		return nil, err
	}

	matches, consumed, err := s.buildMatches(sell, candidates)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, sell, matches, consumed); err != nil {
		return nil, err
	}

	// Downstream updates run after the matching transaction commits and may
	// lag it, but always reflect a committed prefix.
	if err := s.positionService.ApplyLotMatches(ctx, sell.AccountID, sell.Symbol, matches, method); err != nil {
		log.Printf("position update after match of sell %s failed: %v", sellID, err)
	}

	buyIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		buyIDs = append(buyIDs, m.BuyID)
	}
	if err := s.harvestRepo.MarkExecutedForLots(ctx, buyIDs); err != nil {
		log.Printf("marking harvest recommendations executed after sell %s failed: %v", sellID, err)
	}

	return matches, nil
}

// consumedLot records how much was taken from one buy lot and the remaining
// quantity observed at match time, for the check-and-set on commit.
type consumedLot struct {
	buyID    string
	observed decimal.Decimal
	taken    decimal.Decimal
}

// buildMatches greedily consumes the candidate list until the sell is fully
// covered. Exhausting the candidates first fails the whole match.
func (s *MatchingService) buildMatches(sell model.Transaction, candidates []lotCandidate) ([]model.LotMatch, []consumedLot, error) {
	unmatched := sell.RemainingQty
	now := time.Now().UTC()

	matches := []model.LotMatch{}
	consumed := []consumedLot{}

	for _, c := range candidates {
		if !unmatched.IsPositive() {
			break
		}

		qty := decimal.Min(c.cap, unmatched)
		matches = append(matches, s.newLotMatch(sell, c.lot, qty, now))
		consumed = append(consumed, consumedLot{
			buyID:    c.lot.ID,
			observed: c.lot.RemainingQty,
			taken:    qty,
		})
		unmatched = unmatched.Sub(qty)
	}

	if unmatched.IsPositive() {
		return nil, nil, fmt.Errorf("%w: %s of %s unmatched for sell %s",
			apperrors.ErrInsufficientLots, unmatched, sell.FilledQty, sell.ID)
	}

	return matches, consumed, nil
}

// newLotMatch computes one pairing of qty shares of the buy lot against the
// sell. Fees are prorated linearly by quantity fraction; money is kept at full
// precision mid-calculation and rounded half-even only here, at the point the
// row will be persisted.
func (s *MatchingService) newLotMatch(sell, buy model.Transaction, qty decimal.Decimal, now time.Time) model.LotMatch {
	buyFee := prorate(buy.Fees, qty, buy.FilledQty)
	sellFee := prorate(sell.Fees, qty, sell.FilledQty)

	costBasis := buy.FilledAvgPrice.Mul(qty).Add(buyFee).RoundBank(s.engineCfg.CurrencyPlaces)
	proceeds := sell.FilledAvgPrice.Mul(qty).Sub(sellFee).RoundBank(s.engineCfg.CurrencyPlaces)

	holdingDays := wholeDays(buy.FilledAt, sell.FilledAt)

	return model.LotMatch{
		ID:              uuid.New().String(),
		AccountID:       sell.AccountID,
		Symbol:          sell.Symbol,
		SellID:          sell.ID,
		BuyID:           buy.ID,
		QuantityMatched: qty.RoundBank(s.engineCfg.QuantityPlaces),
		CostBasis:       costBasis,
		Proceeds:        proceeds,
		RealizedGain:    proceeds.Sub(costBasis),
		AcquisitionDate: buy.FilledAt,
		DisposalDate:    sell.FilledAt,
		HoldingDays:     holdingDays,
		IsLongTerm:      holdingDays >= s.engineCfg.LongTermDays,
		CreatedAt:       now,
	}
}

// commit writes all lot matches and quantity decrements in one database
// transaction. Any failure rolls everything back, leaving the involved lots
// untouched.
func (s *MatchingService) commit(ctx context.Context, sell model.Transaction, matches []model.LotMatch, consumed []consumedLot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin match transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for i, m := range matches {
		if err := s.lotMatchRepo.InsertLotMatch(ctx, tx, &m); err != nil {
			return err
		}
		c := consumed[i]
		if err := s.transactionRepo.DecrementRemainingQty(ctx, tx, c.buyID, c.observed, c.taken); err != nil {
			return err
		}
	}

	if err := s.transactionRepo.DecrementRemainingQty(ctx, tx, sell.ID, sell.RemainingQty, sell.RemainingQty); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match transaction: %w", err)
	}

	return nil
}

// GetMatchesBySell returns the committed lot matches for one sell transaction.
func (s *MatchingService) GetMatchesBySell(sellID string) ([]model.LotMatch, error) {
	return s.lotMatchRepo.GetMatchesBySell(sellID)
}

// GetMatchesByAccount returns all committed lot matches for an account.
func (s *MatchingService) GetMatchesByAccount(accountID string) ([]model.LotMatch, error) {
	return s.lotMatchRepo.GetMatchesByAccount(accountID)
}

// prorate scales total by part/whole, guarding a zero denominator.
func prorate(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() || total.IsZero() {
		return decimal.Zero
	}
	return total.Mul(part).Div(whole)
}

// wholeDays returns the holding period between acquisition and disposal in
// whole calendar days. Both instants are truncated to their UTC date first so
// intraday fill times cannot shave a day off the count.
func wholeDays(from, to time.Time) int {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	return int(to.Sub(from).Hours() / 24)
}
