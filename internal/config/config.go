package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Harvest   HarvestConfig
	Scheduler SchedulerConfig
	CORS      CORSConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// EngineConfig holds the numeric and tax-rule knobs of the lot matcher.
type EngineConfig struct {
	// LongTermDays is the minimum whole-day holding period for a lot match
	// to classify as long-term. 366 covers "more than one year" across
	// leap years.
	LongTermDays int

	// CurrencyPlaces and QuantityPlaces are the fractional digits money and
	// share quantities are rounded to (half-even) at persist time only.
	CurrencyPlaces int32
	QuantityPlaces int32
}

// HarvestConfig holds the thresholds and windows of the recommendation generator.
type HarvestConfig struct {
	// LossThreshold is the minimum absolute unrealized loss (a positive
	// amount) a lot must carry before a recommendation is generated.
	LossThreshold decimal.Decimal

	// LossThresholdPct is the minimum loss as a fraction of the lot's cost
	// (e.g. 0.05 for 5%). A lot qualifies when either threshold is met.
	LossThresholdPct decimal.Decimal

	// WashSaleWindowDays is the default lookback for excluding recently
	// bought tickers from substitutes; user profiles may override it.
	WashSaleWindowDays int

	// NearIdentityThreshold marks a substitute as wash-sale-unsafe when its
	// correlation is at or above it and sector/industry match exactly.
	NearIdentityThreshold decimal.Decimal

	// MaxSubstitutes bounds the alternative ticker list.
	MaxSubstitutes int

	// Validity is how long a recommendation stays actionable before the
	// expiry sweep marks it EXPIRED.
	Validity time.Duration

	// ScanParallelism bounds the number of symbols scanned concurrently.
	ScanParallelism int
}

// SchedulerConfig holds the cron schedules for background work.
type SchedulerConfig struct {
	Enabled      bool
	ScanSpec     string // cron spec for the harvest scan
	ExpirySpec   string // cron spec for the recommendation expiry sweep
	FernetSecret string // key for broker token encryption at rest
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	lossThreshold, err := decimal.NewFromString(getEnv("HARVEST_LOSS_THRESHOLD", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid HARVEST_LOSS_THRESHOLD: %w", err)
	}
	lossThresholdPct, err := decimal.NewFromString(getEnv("HARVEST_LOSS_THRESHOLD_PCT", "0.05"))
	if err != nil {
		return nil, fmt.Errorf("invalid HARVEST_LOSS_THRESHOLD_PCT: %w", err)
	}
	nearIdentity, err := decimal.NewFromString(getEnv("HARVEST_NEAR_IDENTITY_THRESHOLD", "0.98"))
	if err != nil {
		return nil, fmt.Errorf("invalid HARVEST_NEAR_IDENTITY_THRESHOLD: %w", err)
	}
	validity, err := time.ParseDuration(getEnv("HARVEST_VALIDITY", "72h"))
	if err != nil {
		return nil, fmt.Errorf("invalid HARVEST_VALIDITY: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/taxharvest.db"),
		},
		Engine: EngineConfig{
			LongTermDays:   getEnvInt("ENGINE_LONG_TERM_DAYS", 366),
			CurrencyPlaces: int32(getEnvInt("ENGINE_CURRENCY_PLACES", 4)),
			QuantityPlaces: int32(getEnvInt("ENGINE_QUANTITY_PLACES", 8)),
		},
		Harvest: HarvestConfig{
			LossThreshold:         lossThreshold,
			LossThresholdPct:      lossThresholdPct,
			WashSaleWindowDays:    getEnvInt("HARVEST_WASH_SALE_WINDOW_DAYS", 30),
			NearIdentityThreshold: nearIdentity,
			MaxSubstitutes:        getEnvInt("HARVEST_MAX_SUBSTITUTES", 3),
			Validity:              validity,
			ScanParallelism:       getEnvInt("HARVEST_SCAN_PARALLELISM", 4),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnv("SCHEDULER_ENABLED", "true") == "true",
			ScanSpec:     getEnv("SCHEDULER_SCAN_SPEC", "0 18 * * MON-FRI"),
			ExpirySpec:   getEnv("SCHEDULER_EXPIRY_SPEC", "15 * * * *"),
			FernetSecret: getEnv("FERNET_SECRET", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
