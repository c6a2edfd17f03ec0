package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/repository"
	"github.com/taxharvest/engine/internal/service"
)

// MakeID returns a fresh UUID string.
func MakeID() string {
	return uuid.New().String()
}

// TestEngineConfig returns the default numeric and tax-rule knobs.
func TestEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		LongTermDays:   366,
		CurrencyPlaces: 4,
		QuantityPlaces: 8,
	}
}

// TestHarvestConfig returns harvest thresholds sized for test scenarios.
func TestHarvestConfig() config.HarvestConfig {
	return config.HarvestConfig{
		LossThreshold:         decimal.NewFromInt(100),
		LossThresholdPct:      decimal.RequireFromString("0.05"),
		WashSaleWindowDays:    30,
		NearIdentityThreshold: decimal.RequireFromString("0.98"),
		MaxSubstitutes:        3,
		Validity:              72 * time.Hour,
		ScanParallelism:       2,
	}
}

func NewTestPositionService(t *testing.T, db *sql.DB) *service.PositionService {
	t.Helper()

	return service.NewPositionService(
		repository.NewPositionRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewPriceRepository(db),
		TestEngineConfig(),
	)
}

func NewTestTransactionService(t *testing.T, db *sql.DB) *service.TransactionService {
	t.Helper()

	return service.NewTransactionService(
		repository.NewTransactionRepository(db),
		NewTestPositionService(t, db),
	)
}

func NewTestMatchingService(t *testing.T, db *sql.DB) *service.MatchingService {
	t.Helper()

	return service.NewMatchingService(
		db,
		repository.NewTransactionRepository(db),
		repository.NewLotMatchRepository(db),
		repository.NewHarvestRepository(db),
		NewTestPositionService(t, db),
		TestEngineConfig(),
	)
}

func NewTestCorrelationService(t *testing.T, db *sql.DB) *service.CorrelationService {
	t.Helper()

	return service.NewCorrelationService(
		repository.NewCorrelationRepository(db),
		TestHarvestConfig(),
	)
}

func NewTestHarvestService(t *testing.T, db *sql.DB) *service.HarvestService {
	t.Helper()

	return service.NewHarvestService(
		repository.NewTransactionRepository(db),
		repository.NewHarvestRepository(db),
		repository.NewPriceRepository(db),
		repository.NewUserRepository(db),
		NewTestCorrelationService(t, db),
		TestHarvestConfig(),
		TestEngineConfig(),
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

func NewTestUserService(t *testing.T, db *sql.DB) *service.UserService {
	t.Helper()

	us, err := service.NewUserService(repository.NewUserRepository(db), "")
	if err != nil {
		t.Fatalf("Failed to create user service: %v", err)
	}
	return us
}
