package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/pricefeed"
	"github.com/taxharvest/engine/internal/repository"
	"github.com/taxharvest/engine/internal/service"
)

// Scheduler owns the background cron jobs: the nightly harvest scan, the
// hourly recommendation expiry sweep, and price refreshes for symbols with
// open lots. Jobs run sequentially within cron's default goroutine-per-entry
// model; each logs its outcome and never panics the process.
type Scheduler struct {
	cron            *cron.Cron
	harvestService  *service.HarvestService
	positionService *service.PositionService
	transactionRepo *repository.TransactionRepository
	priceFeed       *pricefeed.Client
	cfg             config.SchedulerConfig
}

// New creates a Scheduler with the given jobs wired but not yet started.
func New(
	harvestService *service.HarvestService,
	positionService *service.PositionService,
	transactionRepo *repository.TransactionRepository,
	priceFeed *pricefeed.Client,
	cfg config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		cron:            cron.New(),
		harvestService:  harvestService,
		positionService: positionService,
		transactionRepo: transactionRepo,
		priceFeed:       priceFeed,
		cfg:             cfg,
	}
}

// Start registers the cron entries and starts the scheduler. Returns without
// starting when the scheduler is disabled by configuration.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		log.Println("scheduler disabled; background jobs will not run")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.ScanSpec, s.runScan); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ExpirySpec, s.runExpiry); err != nil {
		return err
	}
	// Prices refresh on the same cadence as the scan, just ahead of it.
	if _, err := s.cron.AddFunc(s.cfg.ScanSpec, s.refreshPrices); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("scheduler started: scan %q, expiry %q", s.cfg.ScanSpec, s.cfg.ExpirySpec)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	count, err := s.harvestService.ScanAll(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("scheduled harvest scan failed: %v", err)
		return
	}
	log.Printf("scheduled harvest scan complete: %d recommendation(s) created", count)
}

func (s *Scheduler) runExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	moved, err := s.harvestService.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("recommendation expiry sweep failed: %v", err)
		return
	}
	if moved > 0 {
		log.Printf("recommendation expiry sweep: %d expired", moved)
	}
}

// refreshPrices pulls a fresh quote for every symbol with open lots and marks
// it on the positions. Per-symbol failures are logged and skipped.
func (s *Scheduler) refreshPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	symbols, err := s.transactionRepo.GetSymbolsWithOpenLots()
	if err != nil {
		log.Printf("price refresh: %v", err)
		return
	}

	for _, symbol := range symbols {
		quote, err := s.priceFeed.CurrentPrice(ctx, symbol)
		if err != nil {
			log.Printf("price refresh: %s: %v", symbol, err)
			continue
		}
		if _, err := s.positionService.MarkPrice(ctx, symbol, quote.Price, quote.AsOf); err != nil {
			log.Printf("price refresh: %s: %v", symbol, err)
		}
	}
}
