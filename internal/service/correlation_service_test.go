package service_test

import (
	"testing"

	"github.com/taxharvest/engine/internal/testutil"
)

// TestCorrelationService_SubstitutesFor tests substitute ranking and filtering.
//
// WHY: Substitutes keep a harvested position's market exposure without
// tripping the wash-sale rule; recommending a near-identical security would
// defeat the harvest entirely.
func TestCorrelationService_SubstitutesFor(t *testing.T) {
	t.Run("ranks by correlation then beta similarity", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestCorrelationService(t, db)

		testutil.NewCorrelation("AAPL", "MSFT").WithCorrelation("0.85").WithBeta("0.9").Build(t, db)
		testutil.NewCorrelation("AAPL", "GOOG").WithCorrelation("0.9").WithBeta("0.2").Build(t, db)
		testutil.NewCorrelation("AAPL", "AMZN").WithCorrelation("0.85").WithBeta("0.3").Build(t, db)

		substitutes, err := svc.SubstitutesFor("AAPL", nil)
		if err != nil {
			t.Fatalf("SubstitutesFor() returned unexpected error: %v", err)
		}

		want := []string{"GOOG", "MSFT", "AMZN"}
		if len(substitutes) != len(want) {
			t.Fatalf("Expected %d substitutes, got %d: %v", len(want), len(substitutes), substitutes)
		}
		for i := range want {
			if substitutes[i] != want[i] {
				t.Errorf("substitutes[%d] = %s, want %s", i, substitutes[i], want[i])
			}
		}
	})

	t.Run("works from either side of the canonical pair", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestCorrelationService(t, db)

		// Stored as (MSFT, ZTS) after canonicalization; query by ZTS.
		testutil.NewCorrelation("ZTS", "MSFT").WithCorrelation("0.8").Build(t, db)

		substitutes, err := svc.SubstitutesFor("ZTS", nil)
		if err != nil {
			t.Fatalf("SubstitutesFor() returned unexpected error: %v", err)
		}
		if len(substitutes) != 1 || substitutes[0] != "MSFT" {
			t.Errorf("substitutes = %v, want [MSFT]", substitutes)
		}
	})

	t.Run("drops near-identical candidates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestCorrelationService(t, db)

		// Same sector and industry at 0.99 correlation: substantially
		// identical, wash-sale-unsafe.
		testutil.NewCorrelation("AAPL", "APLE").WithCorrelation("0.99").
			WithSector("Technology").WithIndustry("Consumer Electronics").Build(t, db)
		// High correlation without the shared classification stays eligible.
		testutil.NewCorrelation("AAPL", "QQQ").WithCorrelation("0.99").Build(t, db)

		substitutes, err := svc.SubstitutesFor("AAPL", nil)
		if err != nil {
			t.Fatalf("SubstitutesFor() returned unexpected error: %v", err)
		}
		if len(substitutes) != 1 || substitutes[0] != "QQQ" {
			t.Errorf("substitutes = %v, want [QQQ]", substitutes)
		}
	})

	t.Run("honors the exclude set and the result cap", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestCorrelationService(t, db)

		testutil.NewCorrelation("AAPL", "MSFT").WithCorrelation("0.95").Build(t, db)
		testutil.NewCorrelation("AAPL", "GOOG").WithCorrelation("0.9").Build(t, db)
		testutil.NewCorrelation("AAPL", "AMZN").WithCorrelation("0.85").Build(t, db)
		testutil.NewCorrelation("AAPL", "META").WithCorrelation("0.8").Build(t, db)
		testutil.NewCorrelation("AAPL", "NFLX").WithCorrelation("0.75").Build(t, db)

		substitutes, err := svc.SubstitutesFor("AAPL", map[string]bool{"MSFT": true})
		if err != nil {
			t.Fatalf("SubstitutesFor() returned unexpected error: %v", err)
		}

		// MSFT excluded, top three of the rest.
		want := []string{"GOOG", "AMZN", "META"}
		if len(substitutes) != len(want) {
			t.Fatalf("Expected %d substitutes, got %d: %v", len(want), len(substitutes), substitutes)
		}
		for i := range want {
			if substitutes[i] != want[i] {
				t.Errorf("substitutes[%d] = %s, want %s", i, substitutes[i], want[i])
			}
		}
	})

	t.Run("returns empty for an unknown ticker", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestCorrelationService(t, db)

		substitutes, err := svc.SubstitutesFor("UNKNOWN", nil)
		if err != nil {
			t.Fatalf("SubstitutesFor() returned unexpected error: %v", err)
		}
		if len(substitutes) != 0 {
			t.Errorf("Expected no substitutes, got %v", substitutes)
		}
	})
}
