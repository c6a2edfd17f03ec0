package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
	"github.com/taxharvest/engine/internal/testutil"
)

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	expected := decimal.RequireFromString(want)
	if !got.Equal(expected) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

// TestMatchingService_Match_FIFO tests FIFO lot consumption.
//
// WHY: FIFO is the default selection method and its cost basis math feeds the
// tax report directly. This pins the full worked example: two lots, a sell
// spanning both, exact basis/proceeds/gain per pairing.
func TestMatchingService_Match_FIFO(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestMatchingService(t, db)
	accountID := testutil.MakeID()

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day5 := day1.AddDate(0, 0, 4)
	day10 := day1.AddDate(0, 0, 9)

	lotA := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("10").FilledOn(day1).Build(t, db)
	lotB := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("12").FilledOn(day5).Build(t, db)
	sell := testutil.NewSell().WithAccount(accountID).WithQty("150").WithPrice("15").FilledOn(day10).Build(t, db)

	matches, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
	if err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}

	// Oldest lot consumed first, in full.
	if matches[0].BuyID != lotA.ID {
		t.Errorf("First match consumed lot %s, want oldest lot %s", matches[0].BuyID, lotA.ID)
	}
	assertDecimal(t, "matches[0].QuantityMatched", matches[0].QuantityMatched, "100")
	assertDecimal(t, "matches[0].CostBasis", matches[0].CostBasis, "1000")
	assertDecimal(t, "matches[0].Proceeds", matches[0].Proceeds, "1500")
	assertDecimal(t, "matches[0].RealizedGain", matches[0].RealizedGain, "500")

	if matches[1].BuyID != lotB.ID {
		t.Errorf("Second match consumed lot %s, want %s", matches[1].BuyID, lotB.ID)
	}
	assertDecimal(t, "matches[1].QuantityMatched", matches[1].QuantityMatched, "50")
	assertDecimal(t, "matches[1].CostBasis", matches[1].CostBasis, "600")
	assertDecimal(t, "matches[1].Proceeds", matches[1].Proceeds, "750")
	assertDecimal(t, "matches[1].RealizedGain", matches[1].RealizedGain, "150")

	// Lot quantities decremented, sell fully matched.
	var raw string
	if err := db.QueryRow(`SELECT remaining_qty FROM transactions WHERE id = ?`, lotA.ID).Scan(&raw); err != nil {
		t.Fatalf("Failed to read lot A: %v", err)
	}
	assertDecimal(t, "lot A remaining", decimal.RequireFromString(raw), "0")

	if err := db.QueryRow(`SELECT remaining_qty FROM transactions WHERE id = ?`, lotB.ID).Scan(&raw); err != nil {
		t.Fatalf("Failed to read lot B: %v", err)
	}
	assertDecimal(t, "lot B remaining", decimal.RequireFromString(raw), "50")

	if err := db.QueryRow(`SELECT remaining_qty FROM transactions WHERE id = ?`, sell.ID).Scan(&raw); err != nil {
		t.Fatalf("Failed to read sell: %v", err)
	}
	assertDecimal(t, "sell remaining", decimal.RequireFromString(raw), "0")
}

// TestMatchingService_Match_LIFO tests LIFO lot consumption.
//
// WHY: LIFO reverses consumption order and produces a different realized gain
// split; the totals must still reconcile with FIFO's.
func TestMatchingService_Match_LIFO(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestMatchingService(t, db)
	accountID := testutil.MakeID()

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day5 := day1.AddDate(0, 0, 4)
	day10 := day1.AddDate(0, 0, 9)

	lotA := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("10").FilledOn(day1).Build(t, db)
	lotB := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("12").FilledOn(day5).Build(t, db)
	sell := testutil.NewSell().WithAccount(accountID).WithQty("150").WithPrice("15").FilledOn(day10).Build(t, db)

	matches, err := svc.Match(context.Background(), sell.ID, model.LIFO, nil)
	if err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}

	// Newest lot consumed first.
	if matches[0].BuyID != lotB.ID {
		t.Errorf("First match consumed lot %s, want newest lot %s", matches[0].BuyID, lotB.ID)
	}
	assertDecimal(t, "matches[0].QuantityMatched", matches[0].QuantityMatched, "100")
	assertDecimal(t, "matches[0].CostBasis", matches[0].CostBasis, "1200")
	assertDecimal(t, "matches[0].RealizedGain", matches[0].RealizedGain, "300")

	if matches[1].BuyID != lotA.ID {
		t.Errorf("Second match consumed lot %s, want %s", matches[1].BuyID, lotA.ID)
	}
	assertDecimal(t, "matches[1].QuantityMatched", matches[1].QuantityMatched, "50")
	assertDecimal(t, "matches[1].CostBasis", matches[1].CostBasis, "500")
	assertDecimal(t, "matches[1].RealizedGain", matches[1].RealizedGain, "250")
}

// TestMatchingService_Match_FeeProration tests linear fee proration.
//
// WHY: Fees shift both cost basis and proceeds; prorating them by quantity
// fraction is what keeps partial matches consistent with a full disposal.
func TestMatchingService_Match_FeeProration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestMatchingService(t, db)
	accountID := testutil.MakeID()

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("10").WithFees("10").FilledOn(day1).Build(t, db)
	testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("12").FilledOn(day1.AddDate(0, 0, 4)).Build(t, db)
	sell := testutil.NewSell().WithAccount(accountID).WithQty("150").WithPrice("15").WithFees("15").FilledOn(day1.AddDate(0, 0, 9)).Build(t, db)

	matches, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
	if err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}

	// First pairing takes the whole first lot: full buy fee, 100/150 of the
	// sell fee.
	assertDecimal(t, "matches[0].CostBasis", matches[0].CostBasis, "1010")
	assertDecimal(t, "matches[0].Proceeds", matches[0].Proceeds, "1490")

	// Second pairing: no buy fee, 50/150 of the sell fee.
	assertDecimal(t, "matches[1].CostBasis", matches[1].CostBasis, "600")
	assertDecimal(t, "matches[1].Proceeds", matches[1].Proceeds, "745")
}

// TestMatchingService_Match_InsufficientLots tests all-or-nothing matching.
//
// WHY: A sell that cannot be fully covered must leave every lot untouched;
// partially consumed lots would corrupt the cost basis of later sells.
func TestMatchingService_Match_InsufficientLots(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestMatchingService(t, db)
	accountID := testutil.MakeID()

	lot := testutil.NewBuy().WithAccount(accountID).WithQty("100").Build(t, db)
	sell := testutil.NewSell().WithAccount(accountID).WithQty("250").Build(t, db)

	_, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
	if !errors.Is(err, apperrors.ErrInsufficientLots) {
		t.Fatalf("Match() error = %v, want ErrInsufficientLots", err)
	}

	// Nothing persisted.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM lot_matches`).Scan(&count); err != nil {
		t.Fatalf("Failed to count lot matches: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no lot matches after failed match, got %d", count)
	}

	var raw string
	if err := db.QueryRow(`SELECT remaining_qty FROM transactions WHERE id = ?`, lot.ID).Scan(&raw); err != nil {
		t.Fatalf("Failed to read lot: %v", err)
	}
	assertDecimal(t, "lot remaining", decimal.RequireFromString(raw), "100")
}

// TestMatchingService_Match_SpecificLot tests explicit lot selection.
//
// WHY: SPECIFIC_LOT is the method a tax-aware user actually reaches for; the
// validation rules decide whether a hand-picked selection is honored at all.
func TestMatchingService_Match_SpecificLot(t *testing.T) {
	t.Run("honors the caller's order and quantities", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)
		accountID := testutil.MakeID()

		day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		lotA := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("10").FilledOn(day1).Build(t, db)
		lotB := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithPrice("12").FilledOn(day1.AddDate(0, 0, 4)).Build(t, db)
		sell := testutil.NewSell().WithAccount(accountID).WithQty("90").WithPrice("15").FilledOn(day1.AddDate(0, 0, 9)).Build(t, db)

		matches, err := svc.Match(context.Background(), sell.ID, model.SpecificLot, []model.SpecificLotRequest{
			{LotID: lotB.ID, Quantity: decimal.RequireFromString("60")},
			{LotID: lotA.ID, Quantity: decimal.RequireFromString("30")},
		})
		if err != nil {
			t.Fatalf("Match() returned unexpected error: %v", err)
		}

		if len(matches) != 2 {
			t.Fatalf("Expected 2 matches, got %d", len(matches))
		}
		if matches[0].BuyID != lotB.ID || matches[1].BuyID != lotA.ID {
			t.Errorf("Matches out of caller order: got %s then %s", matches[0].BuyID, matches[1].BuyID)
		}
		assertDecimal(t, "matches[0].QuantityMatched", matches[0].QuantityMatched, "60")
		assertDecimal(t, "matches[1].QuantityMatched", matches[1].QuantityMatched, "30")
	})

	t.Run("rejects a lot belonging to another account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)
		accountID := testutil.MakeID()

		foreign := testutil.NewBuy().WithQty("100").Build(t, db) // different account
		testutil.NewBuy().WithAccount(accountID).WithQty("100").Build(t, db)
		sell := testutil.NewSell().WithAccount(accountID).WithQty("50").Build(t, db)

		_, err := svc.Match(context.Background(), sell.ID, model.SpecificLot, []model.SpecificLotRequest{
			{LotID: foreign.ID, Quantity: decimal.RequireFromString("50")},
		})
		if !errors.Is(err, apperrors.ErrInvalidLotSelection) {
			t.Fatalf("Match() error = %v, want ErrInvalidLotSelection", err)
		}
	})

	t.Run("rejects over-allocation of a lot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)
		accountID := testutil.MakeID()

		lot := testutil.NewBuy().WithAccount(accountID).WithQty("100").WithRemaining("40").Build(t, db)
		sell := testutil.NewSell().WithAccount(accountID).WithQty("50").Build(t, db)

		_, err := svc.Match(context.Background(), sell.ID, model.SpecificLot, []model.SpecificLotRequest{
			{LotID: lot.ID, Quantity: decimal.RequireFromString("50")},
		})
		if !errors.Is(err, apperrors.ErrInvalidLotSelection) {
			t.Fatalf("Match() error = %v, want ErrInvalidLotSelection", err)
		}
	})
}

// TestMatchingService_Match_HoldingPeriod tests the long-term boundary.
//
// WHY: The 366-day threshold decides which tax rate applies to a gain. One-day
// errors here change real tax outcomes, so both sides of the fence are pinned.
func TestMatchingService_Match_HoldingPeriod(t *testing.T) {
	cases := []struct {
		name     string
		days     int
		longTerm bool
	}{
		{"365 days is short-term", 365, false},
		{"366 days is long-term", 366, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			svc := testutil.NewTestMatchingService(t, db)
			accountID := testutil.MakeID()

			buyDate := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
			testutil.NewBuy().WithAccount(accountID).WithQty("10").FilledOn(buyDate).Build(t, db)
			sell := testutil.NewSell().WithAccount(accountID).WithQty("10").FilledOn(buyDate.AddDate(0, 0, tc.days)).Build(t, db)

			matches, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
			if err != nil {
				t.Fatalf("Match() returned unexpected error: %v", err)
			}

			if matches[0].HoldingDays != tc.days {
				t.Errorf("HoldingDays = %d, want %d", matches[0].HoldingDays, tc.days)
			}
			if matches[0].IsLongTerm != tc.longTerm {
				t.Errorf("IsLongTerm = %v, want %v", matches[0].IsLongTerm, tc.longTerm)
			}
		})
	}

	t.Run("counts calendar days regardless of intraday fill times", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)
		accountID := testutil.MakeID()

		// 366 calendar days apart, but less than 366*24h on the clock.
		buyAt := time.Date(2023, 1, 1, 15, 0, 0, 0, time.UTC)
		sellAt := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
		testutil.NewBuy().WithAccount(accountID).WithQty("10").FilledOn(buyAt).Build(t, db)
		sell := testutil.NewSell().WithAccount(accountID).WithQty("10").FilledOn(sellAt).Build(t, db)

		matches, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
		if err != nil {
			t.Fatalf("Match() returned unexpected error: %v", err)
		}

		if matches[0].HoldingDays != 366 {
			t.Errorf("HoldingDays = %d, want 366", matches[0].HoldingDays)
		}
		if !matches[0].IsLongTerm {
			t.Error("Expected a long-term match")
		}
	})
}

// TestMatchingService_Match_Guards tests the pre-flight rejections.
func TestMatchingService_Match_Guards(t *testing.T) {
	t.Run("rejects a buy transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)

		buy := testutil.NewBuy().Build(t, db)

		_, err := svc.Match(context.Background(), buy.ID, model.FIFO, nil)
		if !errors.Is(err, apperrors.ErrNotASell) {
			t.Fatalf("Match() error = %v, want ErrNotASell", err)
		}
	})

	t.Run("rejects a canceled sell", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)

		sell := testutil.NewSell().Canceled().Build(t, db)

		_, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
		if !errors.Is(err, apperrors.ErrNotASell) {
			t.Fatalf("Match() error = %v, want ErrNotASell", err)
		}
	})

	t.Run("rejects an already matched sell", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)
		accountID := testutil.MakeID()

		testutil.NewBuy().WithAccount(accountID).WithQty("100").Build(t, db)
		sell := testutil.NewSell().WithAccount(accountID).WithQty("50").Build(t, db)

		if _, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil); err != nil {
			t.Fatalf("First Match() returned unexpected error: %v", err)
		}

		_, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
		if !errors.Is(err, apperrors.ErrDuplicateEntry) {
			t.Fatalf("Second Match() error = %v, want ErrDuplicateEntry", err)
		}
	})

	t.Run("ignores canceled and foreign lots as candidates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatchingService(t, db)
		accountID := testutil.MakeID()

		testutil.NewBuy().WithAccount(accountID).WithQty("100").Canceled().Build(t, db)
		testutil.NewBuy().WithQty("100").Build(t, db) // other account
		sell := testutil.NewSell().WithAccount(accountID).WithQty("50").Build(t, db)

		_, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil)
		if !errors.Is(err, apperrors.ErrInsufficientLots) {
			t.Fatalf("Match() error = %v, want ErrInsufficientLots", err)
		}
	})
}

// TestMatchingService_Match_MarksRecommendationsExecuted tests the harvest FSM
// hook on the matching side.
//
// WHY: Selling a lot that carried an OPEN recommendation is precisely the
// harvest being executed; the recommendation must follow.
func TestMatchingService_Match_MarksRecommendationsExecuted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestMatchingService(t, db)
	accountID := testutil.MakeID()

	lot := testutil.NewBuy().WithAccount(accountID).WithQty("100").Build(t, db)
	rec := testutil.NewRecommendation(lot).Build(t, db)
	sell := testutil.NewSell().WithAccount(accountID).WithQty("100").Build(t, db)

	if _, err := svc.Match(context.Background(), sell.ID, model.FIFO, nil); err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}

	harvestRepo := repository.NewHarvestRepository(db)
	updated, err := harvestRepo.GetRecommendation(rec.ID)
	if err != nil {
		t.Fatalf("Failed to reload recommendation: %v", err)
	}
	if updated.Status != model.HarvestExecuted {
		t.Errorf("Recommendation status = %s, want %s", updated.Status, model.HarvestExecuted)
	}
}
