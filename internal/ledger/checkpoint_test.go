package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

func TestVarianceWithoutActivity(t *testing.T) {
	open := Counts{Cash: dec("100"), Buttons: 50, Fringers: 20}
	close := Counts{Cash: dec("98.50"), Buttons: 50, Fringers: 19}

	v := Variance(open, close, Counts{}, Counts{})
	if !v.Cash.Equal(dec("-1.50")) || v.Buttons != 0 || v.Fringers != -1 {
		t.Fatalf("variance = %+v", v)
	}
}

func TestVarianceBalancesSalesAndRefunds(t *testing.T) {
	open := Counts{Cash: dec("50")}
	close := Counts{Cash: dec("71")}
	sales := Counts{Cash: dec("26")}
	refunds := Counts{Cash: dec("5")}

	if v := Variance(open, close, sales, refunds); !v.Cash.IsZero() {
		t.Fatalf("cash variance = %s", v.Cash)
	}
}

func TestPeriodsPairsConsecutiveCheckpoints(t *testing.T) {
	base := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	cps := []model.Checkpoint{
		{ID: 3, CreatedAt: base.Add(8 * time.Hour)},
		{ID: 1, CreatedAt: base},
		{ID: 2, CreatedAt: base.Add(4 * time.Hour)},
	}
	periods := Periods(cps)
	if len(periods) != 2 {
		t.Fatalf("got %d periods", len(periods))
	}
	if periods[0].Open.ID != 1 || periods[0].Close.ID != 2 || periods[1].Open.ID != 2 || periods[1].Close.ID != 3 {
		t.Fatalf("bad pairing %+v", periods)
	}
	if Periods(cps[:1]) != nil {
		t.Fatal("single checkpoint should not make a period")
	}
}

func TestPerformanceOpenClose(t *testing.T) {
	cp := &model.Checkpoint{}
	if err := CanOpen(nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := CanOpen(cp, nil); !errors.Is(err, ErrPerformanceOpen) {
		t.Fatalf("reopen: %v", err)
	}
	if err := CanClose(nil, nil); !errors.Is(err, ErrPerformanceNotOpen) {
		t.Fatalf("close unopened: %v", err)
	}
	if err := CanClose(cp, nil); err != nil {
		t.Fatal(err)
	}
	if err := CanClose(cp, cp); !errors.Is(err, ErrPerformanceClosed) {
		t.Fatalf("close twice: %v", err)
	}
}

func TestDaySummarySettle(t *testing.T) {
	var d DaySummary
	d.Sales.Total = dec("120")
	d.Refunds.Total = dec("15")
	d.Settle()
	if !d.Balance.Equal(dec("105")) {
		t.Fatalf("balance = %s", d.Balance)
	}
}

func TestVenueSaleRulesAreInvariants(t *testing.T) {
	for _, err := range []error{ErrPerformanceMismatch, ErrOtherPerformance, ErrPerformanceClosed, ErrPerformanceNotOpen} {
		if !IsInvariant(fmt.Errorf("add tickets: %w", err)) {
			t.Errorf("%v should be a domain error", err)
		}
	}
	if IsInvariant(errors.New("connection refused")) {
		t.Error("infrastructure error reported as domain error")
	}
}
