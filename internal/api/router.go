package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taxharvest/engine/internal/api/handlers"
	custommiddleware "github.com/taxharvest/engine/internal/api/middleware"
	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/service"
)

// Services collects the service dependencies of the router.
type Services struct {
	System      *service.SystemService
	Transaction *service.TransactionService
	Matching    *service.MatchingService
	Position    *service.PositionService
	Harvest     *service.HarvestService
	Correlation *service.CorrelationService
	User        *service.UserService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/transaction", func(r chi.Router) {
			transactionHandler := handlers.NewTransactionHandler(svc.Transaction, svc.Matching)
			r.Get("/", transactionHandler.AllTransactions)
			r.Post("/", transactionHandler.Ingest)
			r.Route("/account/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", transactionHandler.TransactionsPerAccount)
				r.Get("/matches", transactionHandler.MatchesPerAccount)
			})
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", transactionHandler.GetTransaction)
				r.Post("/match", transactionHandler.Match)
				r.Get("/matches", transactionHandler.MatchesPerSell)
			})
		})

		r.Route("/position", func(r chi.Router) {
			positionHandler := handlers.NewPositionHandler(svc.Position)
			r.Post("/price", positionHandler.MarkPrice)
			r.Route("/account/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", positionHandler.PositionsPerAccount)
			})
		})

		r.Route("/harvest", func(r chi.Router) {
			harvestHandler := handlers.NewHarvestHandler(svc.Harvest)
			r.Post("/scan", harvestHandler.Scan)
			r.Route("/account/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", harvestHandler.RecommendationsPerAccount)
			})
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Post("/reject", harvestHandler.Reject)
			})
		})

		r.Route("/correlation", func(r chi.Router) {
			correlationHandler := handlers.NewCorrelationHandler(svc.Correlation)
			r.Post("/", correlationHandler.Import)
			r.Get("/{ticker}/substitutes", correlationHandler.Substitutes)
		})

		r.Route("/user/{uuid}/profile", func(r chi.Router) {
			userHandler := handlers.NewUserHandler(svc.User)
			r.Use(custommiddleware.ValidateUUIDMiddleware)
			r.Get("/", userHandler.GetProfile)
			r.Put("/", userHandler.SetProfile)
		})
	})

	return r
}
