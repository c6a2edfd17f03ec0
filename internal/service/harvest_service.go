package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
)

// priceMaxAge bounds how old a cached price may be before a symbol is skipped
// as stale during a scan.
const priceMaxAge = 7 * 24 * time.Hour

// HarvestService scans open buy lots for unrealized losses and emits
// time-boxed, substitute-aware harvest recommendations.
//
// Scans are read-only over the ledger and safe to repeat: an OPEN, unexpired
// recommendation for a lot suppresses a duplicate. Per-lot problems (missing
// price, missing tax rate, unavailable correlation data) are isolated and
// logged; they never abort the rest of the scan.
type HarvestService struct {
	transactionRepo    *repository.TransactionRepository
	harvestRepo        *repository.HarvestRepository
	priceRepo          *repository.PriceRepository
	userRepo           *repository.UserRepository
	correlationService *CorrelationService
	harvestCfg         config.HarvestConfig
	engineCfg          config.EngineConfig
}

// NewHarvestService creates a new HarvestService with the provided dependencies.
func NewHarvestService(
	transactionRepo *repository.TransactionRepository,
	harvestRepo *repository.HarvestRepository,
	priceRepo *repository.PriceRepository,
	userRepo *repository.UserRepository,
	correlationService *CorrelationService,
	harvestCfg config.HarvestConfig,
	engineCfg config.EngineConfig,
) *HarvestService {
	return &HarvestService{
		transactionRepo:    transactionRepo,
		harvestRepo:        harvestRepo,
		priceRepo:          priceRepo,
		userRepo:           userRepo,
		correlationService: correlationService,
		harvestCfg:         harvestCfg,
		engineCfg:          engineCfg,
	}
}

// Scan examines every open buy lot of the account as of the given time and
// returns the newly created recommendations. Symbols are scanned in parallel,
// bounded by the configured parallelism.
func (s *HarvestService) Scan(ctx context.Context, accountID string, asOf time.Time) ([]model.HarvestRecommendation, error) {
	profile, err := s.userRepo.GetProfileByAccount(accountID)
	if errors.Is(err, apperrors.ErrUserProfileNotFound) || (err == nil && profile.TaxRate == nil) {
		// Without a tax rate the potential savings cannot be computed.
		log.Printf("harvest scan: skipping account %s: %v", accountID, apperrors.ErrMissingTaxRate)
		return []model.HarvestRecommendation{}, nil
	}
	if err != nil {
		return nil, err
	}

	washDays := s.harvestCfg.WashSaleWindowDays
	if profile.WashSaleWindowDays != nil {
		washDays = *profile.WashSaleWindowDays
	}

	exclude, err := s.transactionRepo.GetSymbolsBoughtSince(accountID, asOf.AddDate(0, 0, -washDays))
	if err != nil {
		return nil, err
	}

	lots, err := s.transactionRepo.GetOpenBuyLotsByAccount(accountID)
	if err != nil {
		return nil, err
	}

	lotsBySymbol := make(map[string][]model.Transaction)
	for _, lot := range lots {
		lotsBySymbol[lot.Symbol] = append(lotsBySymbol[lot.Symbol], lot)
	}

	var mu sync.Mutex
	created := []model.HarvestRecommendation{}

	g, gctx := errgroup.WithContext(ctx)
	// SetLimit(0) would block every Go call, so a misconfigured parallelism
	// degrades to serial scanning instead.
	parallelism := s.harvestCfg.ScanParallelism
	if parallelism < 1 {
		parallelism = 1
	}
	g.SetLimit(parallelism)

	for symbol, symbolLots := range lotsBySymbol {
		g.Go(func() error {
			recs := s.scanSymbol(gctx, symbol, symbolLots, *profile.TaxRate, exclude, asOf)
			if len(recs) > 0 {
				mu.Lock()
				created = append(created, recs...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return created, nil
}

// ScanAll runs a scan for every account holding open lots. Used by the
// scheduler.
func (s *HarvestService) ScanAll(ctx context.Context, asOf time.Time) (int, error) {
	accounts, err := s.transactionRepo.GetAccountsWithOpenLots()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, accountID := range accounts {
		recs, err := s.Scan(ctx, accountID, asOf)
		if err != nil {
			log.Printf("harvest scan for account %s failed: %v", accountID, err)
			continue
		}
		total += len(recs)
	}

	return total, nil
}

// scanSymbol evaluates the open lots of one symbol. Problems skip the symbol
// or lot with a log line; this method never fails the scan.
func (s *HarvestService) scanSymbol(ctx context.Context, symbol string, lots []model.Transaction, taxRate decimal.Decimal, exclude map[string]bool, asOf time.Time) []model.HarvestRecommendation {
	price, pricedAt, err := s.priceRepo.GetPrice(symbol)
	if err != nil {
		log.Printf("harvest scan: skipping %s: %v", symbol, err)
		return nil
	}
	if asOf.Sub(pricedAt) > priceMaxAge {
		log.Printf("harvest scan: skipping %s: price stale since %s", symbol, pricedAt.Format(time.RFC3339))
		return nil
	}

	created := []model.HarvestRecommendation{}
	for _, lot := range lots {
		rec, err := s.evaluateLot(ctx, lot, price, taxRate, exclude, asOf)
		if err != nil {
			log.Printf("harvest scan: lot %s: %v", lot.ID, err)
			continue
		}
		if rec != nil {
			created = append(created, *rec)
		}
	}

	return created
}

// evaluateLot generates one recommendation when the lot's unrealized loss
// breaches a threshold and no OPEN recommendation for it exists yet. A nil,
// nil return means the lot does not qualify.
func (s *HarvestService) evaluateLot(ctx context.Context, lot model.Transaction, price, taxRate decimal.Decimal, exclude map[string]bool, asOf time.Time) (*model.HarvestRecommendation, error) {
	unrealized := price.Sub(lot.FilledAvgPrice).Mul(lot.RemainingQty)
	if !s.breachesThreshold(unrealized, lot) {
		return nil, nil
	}

	exists, err := s.harvestRepo.HasOpenForLot(lot.ID, asOf)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	alternatives, err := s.correlationService.SubstitutesFor(lot.Symbol, exclude)
	if err != nil {
		// Still worth surfacing the loss; the user just gets no substitutes.
		log.Printf("harvest scan: %s: %v", lot.Symbol, err)
		alternatives = []string{}
	}

	rec := &model.HarvestRecommendation{
		ID:                  uuid.New().String(),
		AccountID:           lot.AccountID,
		BuyTransactionID:    lot.ID,
		Ticker:              lot.Symbol,
		Quantity:            lot.RemainingQty,
		OriginalPrice:       lot.FilledAvgPrice,
		CurrentPrice:        price,
		UnrealizedLoss:      unrealized.RoundBank(s.engineCfg.CurrencyPlaces),
		PotentialTaxSavings: unrealized.Abs().Mul(taxRate).RoundBank(s.engineCfg.CurrencyPlaces),
		PurchaseDate:        lot.FilledAt,
		AlternativeStocks:   alternatives,
		Status:              model.HarvestOpen,
		GeneratedAt:         asOf,
		ExpiresAt:           asOf.Add(s.harvestCfg.Validity),
	}

	if err := s.harvestRepo.InsertRecommendation(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// breachesThreshold reports whether the unrealized loss is deep enough to
// harvest: at or past the absolute threshold, or past the percentage
// threshold relative to the lot's remaining cost.
func (s *HarvestService) breachesThreshold(unrealized decimal.Decimal, lot model.Transaction) bool {
	if !unrealized.IsNegative() {
		return false
	}

	loss := unrealized.Abs()
	if loss.GreaterThanOrEqual(s.harvestCfg.LossThreshold) {
		return true
	}

	cost := lot.FilledAvgPrice.Mul(lot.RemainingQty)
	if cost.IsZero() {
		return false
	}
	return loss.Div(cost).GreaterThanOrEqual(s.harvestCfg.LossThresholdPct)
}

// Reject moves an OPEN recommendation to REJECTED by explicit user action.
func (s *HarvestService) Reject(ctx context.Context, id string) (model.HarvestRecommendation, error) {
	rec, err := s.harvestRepo.GetRecommendation(id)
	if err != nil {
		return model.HarvestRecommendation{}, err
	}

	if !rec.Status.CanTransition(model.HarvestRejected) {
		return model.HarvestRecommendation{}, fmt.Errorf("%w: %s -> %s",
			apperrors.ErrInvalidStatusTransition, rec.Status, model.HarvestRejected)
	}

	moved, err := s.harvestRepo.UpdateStatus(ctx, id, model.HarvestRejected)
	if err != nil {
		return model.HarvestRecommendation{}, err
	}
	if !moved {
		return model.HarvestRecommendation{}, fmt.Errorf("%w: recommendation already settled",
			apperrors.ErrInvalidStatusTransition)
	}

	rec.Status = model.HarvestRejected
	return rec, nil
}

// ExpireDue transitions every OPEN recommendation past its expiry to EXPIRED
// and returns how many moved. The scheduler calls this periodically.
func (s *HarvestService) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return s.harvestRepo.ExpireDue(ctx, now)
}

// GetRecommendation returns one recommendation by ID.
func (s *HarvestService) GetRecommendation(id string) (model.HarvestRecommendation, error) {
	return s.harvestRepo.GetRecommendation(id)
}

// GetRecommendationsByAccount returns the account's recommendations,
// optionally filtered by status.
func (s *HarvestService) GetRecommendationsByAccount(accountID string, status model.HarvestStatus) ([]model.HarvestRecommendation, error) {
	return s.harvestRepo.GetRecommendationsByAccount(accountID, status)
}
