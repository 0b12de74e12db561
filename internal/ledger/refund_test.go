package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

func soldTicket(cost string) model.Ticket {
	sale := uint64(1)
	return model.Ticket{SaleID: &sale, SaleCompleted: true, Cost: dec(cost)}
}

func TestCheckRefundable(t *testing.T) {
	refund, user, fringer := uint64(2), uint64(5), uint64(8)

	refunded := soldTicket("5")
	refunded.RefundID = &refund
	efringer := soldTicket("0")
	efringer.FringerID, efringer.FringerUserID = &fringer, &user
	unsold := model.Ticket{BasketUserID: &user}

	tests := []struct {
		name   string
		ticket model.Ticket
		online bool
		want   error
	}{
		{"sold", soldTicket("5"), false, nil},
		{"already refunded", refunded, false, ErrTicketRefunded},
		{"efringer at box office", efringer, false, ErrEFringerRefund},
		{"efringer self service", efringer, true, nil},
		{"still in basket", unsold, false, ErrTicketNotSold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckRefundable(tt.ticket, tt.online); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// A completed sale of one £5 ticket and one £1 button: refunding the ticket
// gives a £5 refund, leaves the sale total alone and frees one seat.
func TestRefundOfSoldTicket(t *testing.T) {
	sale := model.Sale{Buttons: 1}
	contents := model.SaleContents{TicketCount: 1, TicketCost: dec("5")}
	if err := Complete(&sale, model.TransactionCash, SaleTotal(sale, contents, dec("1")), now); err != nil {
		t.Fatal(err)
	}
	before := Available(intp(10), 1, 0)

	ticket := soldTicket("5")
	if err := CheckRefundable(ticket, false); err != nil {
		t.Fatal(err)
	}
	var r model.Refund
	if repeat := CompleteRefund(&r, RefundTotal([]decimal.Decimal{ticket.Cost}), "illness", now); repeat {
		t.Fatal("first completion reported as repeat")
	}

	if !r.Amount.Equal(dec("5")) {
		t.Errorf("refund total = %s", r.Amount)
	}
	if !sale.Amount.Equal(dec("6")) {
		t.Errorf("sale amount changed to %s", sale.Amount)
	}
	if after := Available(intp(10), 1, 1); after != before+1 {
		t.Errorf("availability %d -> %d", before, after)
	}
}

func TestCompleteRefundTwiceIsNoop(t *testing.T) {
	var r model.Refund
	CompleteRefund(&r, dec("5"), "first", now)
	stamp := *r.Completed

	if repeat := CompleteRefund(&r, dec("9"), "second", now.Add(1)); !repeat {
		t.Fatal("second completion not reported")
	}
	if !r.Amount.Equal(dec("5")) || r.Reason != "first" || !r.Completed.Equal(stamp) {
		t.Fatalf("refund changed: %+v", r)
	}
	if err := RequireRefundOpen(r); !errors.Is(err, ErrRefundCompleted) {
		t.Fatalf("completed refund still open: %v", err)
	}
}
