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

// TransactionHandler handles HTTP requests for the transaction ledger and the
// lot matcher. It parses requests and delegates to the services.
type TransactionHandler struct {
	transactionService *service.TransactionService
	matchingService    *service.MatchingService
}

// NewTransactionHandler creates a new TransactionHandler with the provided service dependencies.
func NewTransactionHandler(transactionService *service.TransactionService, matchingService *service.MatchingService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		matchingService:    matchingService,
	}
}

// Ingest handles POST requests to record a new order in the ledger.
//
// Endpoint: POST /api/transaction
// Request Body: IngestTransactionRequest
// Response: 201 Created with Transaction
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if ingestion fails
func (h *TransactionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.IngestTransactionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateIngestTransaction(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	transaction, err := buildTransaction(req)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	created, err := h.transactionService.Ingest(r.Context(), transaction)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to ingest transaction", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, created)
}

// AllTransactions handles GET requests to retrieve the whole ledger.
//
// Endpoint: GET /api/transaction
// Response: 200 OK with array of Transaction
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) AllTransactions(w http.ResponseWriter, _ *http.Request) {
	transactions, err := h.transactionService.GetTransactionsByAccount("", "")
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransactions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles GET requests to retrieve a single transaction by ID.
//
// Endpoint: GET /api/transaction/{uuid}
// Response: 200 OK with Transaction
// Error: 400 Bad Request if transaction ID is invalid (validated by middleware)
// Error: 404 Not Found if transaction not found
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "uuid")

	transaction, err := h.transactionService.GetTransaction(transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTransactionNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransaction.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, transaction)
}

// TransactionsPerAccount handles GET requests to retrieve an account's
// transactions, optionally narrowed by the symbol query parameter.
//
// Endpoint: GET /api/transaction/account/{uuid}?symbol=
// Response: 200 OK with array of Transaction
// Error: 400 Bad Request if account ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) TransactionsPerAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "uuid")
	symbol := r.URL.Query().Get("symbol")

	transactions, err := h.transactionService.GetTransactionsByAccount(accountID, symbol)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransactions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, transactions)
}

// Match handles POST requests to run the lot matcher for a filled sell.
//
// Endpoint: POST /api/transaction/{uuid}/match
// Request Body: MatchRequest (method, optional explicit lots)
// Response: 200 OK with array of LotMatch
// Error: 400 Bad Request on validation failure or a rejected lot selection
// Error: 404 Not Found if the sell transaction does not exist
// Error: 409 Conflict if the sell is already matched or a lot changed concurrently
// Error: 422 Unprocessable Entity if open lots cannot cover the sale
// Error: 500 Internal Server Error otherwise
func (h *TransactionHandler) Match(w http.ResponseWriter, r *http.Request) {
	sellID := chi.URLParam(r, "uuid")

	req, err := parseJSON[request.MatchRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateMatch(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	method, _ := model.ParseLotSelectionMethod(req.Method)
	explicit := make([]model.SpecificLotRequest, 0, len(req.Lots))
	for _, lot := range req.Lots {
		qty, _ := decimal.NewFromString(lot.Quantity)
		explicit = append(explicit, model.SpecificLotRequest{LotID: lot.LotID, Quantity: qty})
	}

	matches, err := h.matchingService.Match(r.Context(), sellID, method, explicit)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTransactionNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrNotASell), errors.Is(err, apperrors.ErrInvalidLotSelection):
			response.RespondError(w, http.StatusBadRequest, "lot matching rejected", err.Error())
		case errors.Is(err, apperrors.ErrDuplicateEntry), errors.Is(err, apperrors.ErrStaleConcurrentModification):
			response.RespondError(w, http.StatusConflict, "lot matching conflict", err.Error())
		case errors.Is(err, apperrors.ErrInsufficientLots):
			response.RespondError(w, http.StatusUnprocessableEntity, apperrors.ErrInsufficientLots.Error(), err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, "lot matching failed", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, matches)
}

// MatchesPerSell handles GET requests to retrieve the committed lot matches
// of one sell transaction.
//
// Endpoint: GET /api/transaction/{uuid}/matches
// Response: 200 OK with array of LotMatch
// Error: 400 Bad Request if transaction ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) MatchesPerSell(w http.ResponseWriter, r *http.Request) {
	sellID := chi.URLParam(r, "uuid")

	matches, err := h.matchingService.GetMatchesBySell(sellID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveMatches.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, matches)
}

// MatchesPerAccount handles GET requests to retrieve all committed lot
// matches of an account, the raw rows behind its realized P&L.
//
// Endpoint: GET /api/transaction/account/{uuid}/matches
// Response: 200 OK with array of LotMatch
// Error: 400 Bad Request if account ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) MatchesPerAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "uuid")

	matches, err := h.matchingService.GetMatchesByAccount(accountID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveMatches.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, matches)
}

// buildTransaction converts a validated ingest request into the ledger model.
func buildTransaction(req request.IngestTransactionRequest) (model.Transaction, error) {
	qty, err := decimal.NewFromString(req.FilledQty)
	if err != nil {
		return model.Transaction{}, err
	}
	price, err := decimal.NewFromString(req.FilledAvgPrice)
	if err != nil {
		return model.Transaction{}, err
	}
	fees := decimal.Zero
	if req.Fees != "" {
		if fees, err = decimal.NewFromString(req.Fees); err != nil {
			return model.Transaction{}, err
		}
	}
	filledAt, err := validation.ParseTimestamp(req.FilledAt)
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		AccountID:      req.AccountID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		FilledQty:      qty,
		FilledAvgPrice: price,
		Fees:           fees,
		FilledAt:       filledAt.UTC(),
		Status:         req.Status,
	}, nil
}
