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

func setupUserHandler(t *testing.T) (*UserHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	us := testutil.NewTestUserService(t, db)
	return NewUserHandler(us), db
}

func TestUserHandler_GetProfile(t *testing.T) {
	t.Run("returns the account profile", func(t *testing.T) {
		handler, db := setupUserHandler(t)

		accountID := testutil.MakeID()
		testutil.NewProfile(accountID).WithWashWindow(61).Build(t, db)

		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/user/"+accountID+"/profile",
			map[string]string{"uuid": accountID},
		)
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response model.UserProfile
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.AccountID != accountID {
			t.Errorf("Expected account %s, got %s", accountID, response.AccountID)
		}

		if response.WashSaleWindowDays == nil || *response.WashSaleWindowDays != 61 {
			t.Errorf("Expected wash sale window of 61 days, got %v", response.WashSaleWindowDays)
		}
	})

	t.Run("returns 404 when no profile exists", func(t *testing.T) {
		handler, _ := setupUserHandler(t)

		missing := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/user/"+missing+"/profile",
			map[string]string{"uuid": missing},
		)
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestUserHandler_SetProfile(t *testing.T) {
	t.Run("creates a profile and returns it", func(t *testing.T) {
		handler, _ := setupUserHandler(t)

		accountID := testutil.MakeID()
		taxRate := "0.3"
		washWindow := 30
		body := request.SetProfileRequest{
			TaxRate:            &taxRate,
			WashSaleWindowDays: &washWindow,
		}
		req := testutil.NewJSONRequest(t, http.MethodPut, "/api/user/"+accountID+"/profile", body,
			map[string]string{"uuid": accountID})
		w := httptest.NewRecorder()

		handler.SetProfile(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response model.UserProfile
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.TaxRate == nil || response.TaxRate.String() != "0.3" {
			t.Errorf("Expected tax rate 0.3, got %v", response.TaxRate)
		}
	})

	t.Run("returns 400 when the tax rate is out of range", func(t *testing.T) {
		handler, _ := setupUserHandler(t)

		accountID := testutil.MakeID()
		taxRate := "1.5"
		body := request.SetProfileRequest{TaxRate: &taxRate}
		req := testutil.NewJSONRequest(t, http.MethodPut, "/api/user/"+accountID+"/profile", body,
			map[string]string{"uuid": accountID})
		w := httptest.NewRecorder()

		handler.SetProfile(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}
