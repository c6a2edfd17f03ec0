package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
	"github.com/taxharvest/engine/internal/api/response"
	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/service"
	"github.com/taxharvest/engine/internal/validation"
)

// CorrelationHandler handles HTTP requests for the correlation index.
type CorrelationHandler struct {
	correlationService *service.CorrelationService
}

// NewCorrelationHandler creates a new CorrelationHandler with the provided service dependency.
func NewCorrelationHandler(correlationService *service.CorrelationService) *CorrelationHandler {
	return &CorrelationHandler{
		correlationService: correlationService,
	}
}

// SubstitutesResponse lists wash-sale-safe substitute tickers for a symbol.
type SubstitutesResponse struct {
	Ticker      string   `json:"ticker"`
	Substitutes []string `json:"substitutes"`
}

// Substitutes handles GET requests to retrieve ranked substitute tickers.
//
// Endpoint: GET /api/correlation/{ticker}/substitutes
// Response: 200 OK with SubstitutesResponse
// Error: 503 Service Unavailable if the correlation store cannot be read
func (h *CorrelationHandler) Substitutes(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		response.RespondError(w, http.StatusBadRequest, "ticker is required", "")
		return
	}

	substitutes, err := h.correlationService.SubstitutesFor(ticker, nil)
	if err != nil {
		response.RespondError(w, http.StatusServiceUnavailable, apperrors.ErrFailedToRetrieveSubstitutes.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, SubstitutesResponse{
		Ticker:      ticker,
		Substitutes: substitutes,
	})
}

// Import handles POST requests to upsert one correlation entry. Intended for
// offline correlation jobs pushing their results in.
//
// Endpoint: POST /api/correlation
// Request Body: ImportCorrelationRequest
// Response: 201 Created with CorrelationEntry
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if the upsert fails
func (h *CorrelationHandler) Import(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ImportCorrelationRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateImportCorrelation(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	correlation, _ := decimal.NewFromString(req.Correlation)
	beta := decimal.Zero
	if req.BetaSimilarity != "" {
		beta, _ = decimal.NewFromString(req.BetaSimilarity)
	}

	entry := model.CorrelationEntry{
		ID:             uuid.New().String(),
		TickerA:        req.TickerA,
		TickerB:        req.TickerB,
		Correlation:    correlation,
		Sector:         req.Sector,
		Industry:       req.Industry,
		BetaSimilarity: beta,
		CalculatedAt:   time.Now().UTC(),
	}

	if err := h.correlationService.ImportEntry(r.Context(), &entry); err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to import correlation entry", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, entry)
}
