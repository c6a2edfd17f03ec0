package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taxharvest/engine/internal/api/request"
)

func validIngestRequest() request.IngestTransactionRequest {
	return request.IngestTransactionRequest{
		AccountID:      uuid.New().String(),
		Symbol:         "AAPL",
		Side:           "BUY",
		FilledQty:      "100",
		FilledAvgPrice: "10",
		FilledAt:       "2024-01-02",
		Status:         "FILLED",
	}
}

func TestValidateIngestTransaction(t *testing.T) {
	t.Run("accepts a valid request", func(t *testing.T) {
		if err := ValidateIngestTransaction(validIngestRequest()); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("accepts empty fees as zero", func(t *testing.T) {
		req := validIngestRequest()
		req.Fees = ""

		if err := ValidateIngestTransaction(req); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*request.IngestTransactionRequest)
		field  string
	}{
		{"rejects blank symbol", func(r *request.IngestTransactionRequest) { r.Symbol = "  " }, "symbol"},
		{"rejects unknown side", func(r *request.IngestTransactionRequest) { r.Side = "SHORT" }, "side"},
		{"rejects unknown status", func(r *request.IngestTransactionRequest) { r.Status = "PENDING" }, "status"},
		{"rejects zero quantity", func(r *request.IngestTransactionRequest) { r.FilledQty = "0" }, "filledQty"},
		{"rejects non-numeric price", func(r *request.IngestTransactionRequest) { r.FilledAvgPrice = "ten" }, "filledAvgPrice"},
		{"rejects negative fees", func(r *request.IngestTransactionRequest) { r.Fees = "-1" }, "fees"},
		{"rejects unparseable timestamp", func(r *request.IngestTransactionRequest) { r.FilledAt = "02/01/2024" }, "filledAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validIngestRequest()
			tt.mutate(&req)

			err := ValidateIngestTransaction(req)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}

			verr, ok := err.(*Error)
			if !ok {
				t.Fatalf("Expected *Error, got %T", err)
			}
			if _, present := verr.Fields[tt.field]; !present {
				t.Errorf("Expected error on field %s, got %v", tt.field, verr.Fields)
			}
		})
	}
}

func TestValidateMatch(t *testing.T) {
	lotID := uuid.New().String()

	t.Run("accepts FIFO without lots", func(t *testing.T) {
		if err := ValidateMatch(request.MatchRequest{Method: "FIFO"}); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("accepts SPECIFIC_LOT with lots", func(t *testing.T) {
		req := request.MatchRequest{
			Method: "SPECIFIC_LOT",
			Lots:   []request.SpecificLot{{LotID: lotID, Quantity: "10"}},
		}
		if err := ValidateMatch(req); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("rejects SPECIFIC_LOT without lots", func(t *testing.T) {
		if err := ValidateMatch(request.MatchRequest{Method: "SPECIFIC_LOT"}); err == nil {
			t.Error("Expected validation error, got nil")
		}
	})

	t.Run("rejects LIFO with explicit lots", func(t *testing.T) {
		req := request.MatchRequest{
			Method: "LIFO",
			Lots:   []request.SpecificLot{{LotID: lotID, Quantity: "10"}},
		}
		if err := ValidateMatch(req); err == nil {
			t.Error("Expected validation error, got nil")
		}
	})

	t.Run("rejects non-positive lot quantity", func(t *testing.T) {
		req := request.MatchRequest{
			Method: "SPECIFIC_LOT",
			Lots:   []request.SpecificLot{{LotID: lotID, Quantity: "0"}},
		}
		if err := ValidateMatch(req); err == nil {
			t.Error("Expected validation error, got nil")
		}
	})

	t.Run("rejects malformed lot ID", func(t *testing.T) {
		req := request.MatchRequest{
			Method: "SPECIFIC_LOT",
			Lots:   []request.SpecificLot{{LotID: "not-a-uuid", Quantity: "10"}},
		}
		if err := ValidateMatch(req); err == nil {
			t.Error("Expected validation error, got nil")
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Run("parses date-only format", func(t *testing.T) {
		got, err := ParseTimestamp("2024-01-02")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("parses RFC3339 format", func(t *testing.T) {
		got, err := ParseTimestamp("2024-01-02T15:04:05Z")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got.Hour() != 15 {
			t.Errorf("Expected hour 15, got %d", got.Hour())
		}
	})

	t.Run("rejects other formats", func(t *testing.T) {
		if _, err := ParseTimestamp("02 Jan 2024"); err == nil {
			t.Error("Expected parse error, got nil")
		}
	})
}
