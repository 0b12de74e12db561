package ledger

import (
	"errors"
	"testing"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

func paidFringer(shows, used int) model.Fringer {
	sale := uint64(4)
	return model.Fringer{Shows: shows, Used: used, SaleID: &sale, SaleCompleted: true}
}

func TestCheckFringer(t *testing.T) {
	tests := []struct {
		name    string
		fringer model.Fringer
		used    bool
		wantErr bool
	}{
		{"credit left", paidFringer(6, 2), false, false},
		{"exhausted", paidFringer(6, 6), false, true},
		{"already used for performance", paidFringer(6, 1), true, true},
		{"still in basket", model.Fringer{Shows: 6}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFringer(tt.fringer, tt.used)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if err != nil && !errors.Is(err, ErrFringerUnavailable) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestBasketTotalAndName(t *testing.T) {
	b := model.Basket{Buttons: 3}
	c := model.SaleContents{TicketCount: 2, TicketCost: dec("16"), FringerCount: 1, FringerCost: dec("25")}
	if got := BasketTotal(b, c, dec("2")); !got.Equal(dec("47")) {
		t.Fatalf("total = %s", got)
	}
	if BasketEmpty(b, c) || !BasketEmpty(model.Basket{}, model.SaleContents{}) {
		t.Fatal("emptiness wrong")
	}
	if DefaultFringerName(2) != "eFringer3" {
		t.Fatal("bad default name")
	}
}
