package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taxharvest/engine/internal/api"
	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/database"
	"github.com/taxharvest/engine/internal/pricefeed"
	"github.com/taxharvest/engine/internal/repository"
	"github.com/taxharvest/engine/internal/scheduler"
	"github.com/taxharvest/engine/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Create repositories
	transactionRepo := repository.NewTransactionRepository(db)
	lotMatchRepo := repository.NewLotMatchRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	correlationRepo := repository.NewCorrelationRepository(db)
	harvestRepo := repository.NewHarvestRepository(db)
	userRepo := repository.NewUserRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	// Create services
	systemService := service.NewSystemService(db)
	positionService := service.NewPositionService(
		positionRepo,
		transactionRepo,
		priceRepo,
		cfg.Engine,
	)
	transactionService := service.NewTransactionService(
		transactionRepo,
		positionService,
	)
	matchingService := service.NewMatchingService(
		db,
		transactionRepo,
		lotMatchRepo,
		harvestRepo,
		positionService,
		cfg.Engine,
	)
	correlationService := service.NewCorrelationService(
		correlationRepo,
		cfg.Harvest,
	)
	harvestService := service.NewHarvestService(
		transactionRepo,
		harvestRepo,
		priceRepo,
		userRepo,
		correlationService,
		cfg.Harvest,
		cfg.Engine,
	)
	userService, err := service.NewUserService(userRepo, cfg.Scheduler.FernetSecret)
	if err != nil {
		log.Fatalf("Failed to create user service: %v", err)
	}

	// Background jobs
	sched := scheduler.New(
		harvestService,
		positionService,
		transactionRepo,
		pricefeed.NewClient(),
		cfg.Scheduler,
	)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Create router
	router := api.NewRouter(api.Services{
		System:      systemService,
		Transaction: transactionService,
		Matching:    matchingService,
		Position:    positionService,
		Harvest:     harvestService,
		Correlation: correlationService,
		User:        userService,
	}, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
