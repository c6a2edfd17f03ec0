package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
	"github.com/taxharvest/engine/internal/api/response"
	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/service"
	"github.com/taxharvest/engine/internal/validation"
)

// PositionHandler handles HTTP requests for position endpoints.
type PositionHandler struct {
	positionService *service.PositionService
}

// NewPositionHandler creates a new PositionHandler with the provided service dependency.
func NewPositionHandler(positionService *service.PositionService) *PositionHandler {
	return &PositionHandler{
		positionService: positionService,
	}
}

// PositionsPerAccount handles GET requests to retrieve all positions for an account.
//
// Endpoint: GET /api/position/account/{uuid}
// Response: 200 OK with array of Position
// Error: 400 Bad Request if account ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *PositionHandler) PositionsPerAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "uuid")

	positions, err := h.positionService.GetPositionsByAccount(accountID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePositions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, positions)
}

// MarkPrice handles POST requests to record a market price for a symbol and
// refresh the valuation of every position holding it.
//
// Endpoint: POST /api/position/price
// Request Body: MarkPriceRequest (symbol, price, optional asOf)
// Response: 200 OK with the refreshed positions
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if the mark fails
func (h *PositionHandler) MarkPrice(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.MarkPriceRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateMarkPrice(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	price, _ := decimal.NewFromString(req.Price)
	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, _ := validation.ParseTimestamp(req.AsOf)
		asOf = parsed.UTC()
	}

	positions, err := h.positionService.MarkPrice(r.Context(), req.Symbol, price, asOf)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to mark price", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, positions)
}
