package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taxharvest/engine/internal/api/request"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/testutil"
)

func setupCorrelationHandler(t *testing.T) (*CorrelationHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cs := testutil.NewTestCorrelationService(t, db)
	return NewCorrelationHandler(cs), db
}

func TestCorrelationHandler_Substitutes(t *testing.T) {
	t.Run("returns ranked substitutes for a ticker", func(t *testing.T) {
		handler, db := setupCorrelationHandler(t)

		testutil.NewCorrelation("AAPL", "MSFT").WithCorrelation("0.9").Build(t, db)
		testutil.NewCorrelation("AAPL", "GOOG").WithCorrelation("0.8").Build(t, db)

		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/correlation/AAPL/substitutes",
			map[string]string{"ticker": "AAPL"},
		)
		w := httptest.NewRecorder()

		handler.Substitutes(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response SubstitutesResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.Ticker != "AAPL" {
			t.Errorf("Expected ticker AAPL, got %s", response.Ticker)
		}

		if len(response.Substitutes) != 2 {
			t.Fatalf("Expected 2 substitutes, got %d", len(response.Substitutes))
		}

		if response.Substitutes[0] != "MSFT" {
			t.Errorf("Expected MSFT ranked first, got %s", response.Substitutes[0])
		}
	})

	t.Run("returns empty list for an unknown ticker", func(t *testing.T) {
		handler, _ := setupCorrelationHandler(t)

		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/correlation/ZZZZ/substitutes",
			map[string]string{"ticker": "ZZZZ"},
		)
		w := httptest.NewRecorder()

		handler.Substitutes(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response SubstitutesResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.Substitutes == nil {
			t.Error("Expected non-nil substitutes array, got nil")
		}

		if len(response.Substitutes) != 0 {
			t.Errorf("Expected empty array, got %d substitutes", len(response.Substitutes))
		}
	})

	t.Run("returns 503 when the correlation store is unavailable", func(t *testing.T) {
		handler, db := setupCorrelationHandler(t)
		db.Close()

		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/correlation/AAPL/substitutes",
			map[string]string{"ticker": "AAPL"},
		)
		w := httptest.NewRecorder()

		handler.Substitutes(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestCorrelationHandler_Import(t *testing.T) {
	t.Run("upserts a correlation entry and returns 201", func(t *testing.T) {
		handler, db := setupCorrelationHandler(t)

		body := request.ImportCorrelationRequest{
			TickerA:     "MSFT",
			TickerB:     "AAPL",
			Correlation: "0.87",
			Sector:      "Technology",
		}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/correlation", body, nil)
		w := httptest.NewRecorder()

		handler.Import(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var response model.CorrelationEntry
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		// Pairs are stored in canonical alphabetical order regardless of input.
		if response.TickerA != "AAPL" || response.TickerB != "MSFT" {
			t.Errorf("Expected canonical pair AAPL/MSFT, got %s/%s", response.TickerA, response.TickerB)
		}

		// The entry should now feed substitute lookups.
		cs := testutil.NewTestCorrelationService(t, db)
		substitutes, err := cs.SubstitutesFor("AAPL", nil)
		if err != nil {
			t.Fatalf("SubstitutesFor failed: %v", err)
		}
		if len(substitutes) != 1 || substitutes[0] != "MSFT" {
			t.Errorf("Expected [MSFT], got %v", substitutes)
		}
	})

	t.Run("returns 400 when correlation is out of range", func(t *testing.T) {
		handler, _ := setupCorrelationHandler(t)

		body := request.ImportCorrelationRequest{
			TickerA:     "AAPL",
			TickerB:     "MSFT",
			Correlation: "1.2",
		}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/correlation", body, nil)
		w := httptest.NewRecorder()

		handler.Import(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 400 when both tickers are the same", func(t *testing.T) {
		handler, _ := setupCorrelationHandler(t)

		body := request.ImportCorrelationRequest{
			TickerA:     "AAPL",
			TickerB:     "AAPL",
			Correlation: "1",
		}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/correlation", body, nil)
		w := httptest.NewRecorder()

		handler.Import(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}
