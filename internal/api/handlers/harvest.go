package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taxharvest/engine/internal/api/request"
	"github.com/taxharvest/engine/internal/api/response"
	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/service"
	"github.com/taxharvest/engine/internal/validation"
)

// HarvestHandler handles HTTP requests for harvest recommendation endpoints.
type HarvestHandler struct {
	harvestService *service.HarvestService
}

// NewHarvestHandler creates a new HarvestHandler with the provided service dependency.
func NewHarvestHandler(harvestService *service.HarvestService) *HarvestHandler {
	return &HarvestHandler{
		harvestService: harvestService,
	}
}

// RecommendationsPerAccount handles GET requests to retrieve an account's
// harvest recommendations, optionally filtered by status.
//
// Endpoint: GET /api/harvest/account/{uuid}?status=
// Response: 200 OK with array of HarvestRecommendation
// Error: 400 Bad Request on an invalid account ID or status value
// Error: 500 Internal Server Error if retrieval fails
func (h *HarvestHandler) RecommendationsPerAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "uuid")

	var status model.HarvestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := model.ParseHarvestStatus(raw)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid status filter", err.Error())
			return
		}
		status = parsed
	}

	recommendations, err := h.harvestService.GetRecommendationsByAccount(accountID, status)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveRecommendations.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, recommendations)
}

// Scan handles POST requests to run a harvest scan for one account.
//
// Endpoint: POST /api/harvest/scan
// Request Body: ScanRequest (accountId)
// Response: 200 OK with the newly created recommendations
// Error: 400 Bad Request if the account ID is missing or invalid
// Error: 500 Internal Server Error if the scan fails
func (h *HarvestHandler) Scan(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ScanRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUUID(req.AccountID); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid account ID", err.Error())
		return
	}

	recommendations, err := h.harvestService.Scan(r.Context(), req.AccountID, time.Now().UTC())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "harvest scan failed", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, recommendations)
}

// Reject handles POST requests to reject an open recommendation.
//
// Endpoint: POST /api/harvest/{uuid}/reject
// Response: 200 OK with the rejected HarvestRecommendation
// Error: 400 Bad Request if recommendation ID is invalid (validated by middleware)
// Error: 404 Not Found if the recommendation does not exist
// Error: 409 Conflict if the recommendation is no longer OPEN
// Error: 500 Internal Server Error otherwise
func (h *HarvestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	recommendationID := chi.URLParam(r, "uuid")

	recommendation, err := h.harvestService.Reject(r.Context(), recommendationID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRecommendationNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrRecommendationNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrInvalidStatusTransition):
			response.RespondError(w, http.StatusConflict, apperrors.ErrInvalidStatusTransition.Error(), err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to reject recommendation", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, recommendation)
}
