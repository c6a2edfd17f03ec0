package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/api/request"
	"github.com/taxharvest/engine/internal/api/response"
	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/service"
	"github.com/taxharvest/engine/internal/validation"
)

// UserHandler handles HTTP requests for user profile endpoints.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler with the provided service dependency.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile handles GET requests to retrieve an account's profile. The broker
// token is never returned.
//
// Endpoint: GET /api/user/{uuid}/profile
// Response: 200 OK with UserProfile
// Error: 400 Bad Request if account ID is invalid (validated by middleware)
// Error: 404 Not Found if no profile exists
// Error: 500 Internal Server Error if retrieval fails
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "uuid")

	profile, err := h.userService.GetProfile(accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserProfileNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrUserProfileNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveProfile.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, profile)
}

// SetProfile handles PUT requests to create or replace an account's profile.
//
// Endpoint: PUT /api/user/{uuid}/profile
// Request Body: SetProfileRequest (taxRate, washSaleWindowDays, brokerToken)
// Response: 200 OK with UserProfile
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if the update fails
func (h *UserHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "uuid")

	req, err := parseJSON[request.SetProfileRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSetProfile(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	profile := model.UserProfile{
		AccountID:          accountID,
		WashSaleWindowDays: req.WashSaleWindowDays,
		BrokerToken:        req.BrokerToken,
	}
	if req.TaxRate != nil {
		rate, _ := decimal.NewFromString(*req.TaxRate)
		profile.TaxRate = &rate
	}

	updated, err := h.userService.SetProfile(r.Context(), profile)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to update user profile", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, updated)
}
