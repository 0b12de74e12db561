package handler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func u64(n uint64) *uint64 { return &n }

var evening = time.Date(2026, 8, 14, 19, 30, 0, 0, time.UTC)

func sampleTickets() []model.Ticket {
	return []model.Ticket{
		{ID: 1, PerformanceID: 10, ShowName: "Hamlet", StartsAt: evening, TicketTypeID: 1, TypeName: "Adult", Cost: dec("12")},
		{ID: 2, PerformanceID: 11, ShowName: "Macbeth", StartsAt: evening.Add(24 * time.Hour), TicketTypeID: 1, TypeName: "Adult", Cost: dec("12")},
		{ID: 3, PerformanceID: 10, ShowName: "Hamlet", StartsAt: evening, TicketTypeID: 1, TypeName: "Adult", Cost: dec("12")},
		{ID: 4, PerformanceID: 10, ShowName: "Hamlet", StartsAt: evening, TicketTypeID: 2, TypeName: "Child", Cost: dec("6")},
	}
}

func TestTicketLines(t *testing.T) {
	lines := ticketLines(sampleTickets())
	if len(lines) != 3 {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].Description != "Hamlet, Fri 14 Aug 19:30, Adult" || lines[0].Quantity != 2 || !lines[0].Amount.Equal(dec("24")) {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[1].Description != "Macbeth, Sat 15 Aug 19:30, Adult" {
		t.Errorf("second line = %+v", lines[1])
	}
	if lines[2].Quantity != 1 || !lines[2].Amount.Equal(dec("6")) {
		t.Errorf("third line = %+v", lines[2])
	}
}

func TestSaleReceipt(t *testing.T) {
	cash := model.TransactionCash
	completed := evening.Add(-time.Hour)
	v := saleView{
		Sale: model.Sale{
			UUID:            "s-1",
			Customer:        "ann@example.com",
			Buttons:         2,
			Donation:        dec("5"),
			Amount:          dec("61"),
			Completed:       &completed,
			TransactionType: &cash,
			CreatedAt:       completed.Add(-10 * time.Minute),
		},
		Tickets: sampleTickets()[:1],
		Fringers: []model.Fringer{
			{FringerTypeID: 1, TypeName: "Six-show Fringer", Cost: dec("30")},
		},
		PAYW:       []model.PayAsYouWill{{ShowName: "Street Magic", Amount: dec("8")}},
		ButtonCost: dec("6"),
		Total:      dec("999"),
	}
	r := saleReceipt(model.Festival{Name: "Fringe"}, v)

	if r.Kind != model.ReceiptSale || r.Festival != "Fringe" || r.Reference != "s-1" || r.Method != "Cash" {
		t.Errorf("header = %+v", r)
	}
	if !r.Date.Equal(completed) || !r.Total.Equal(dec("61")) {
		t.Errorf("completed sale should use its snapshot: %v %v", r.Date, r.Total)
	}
	want := []string{"Hamlet, Fri 14 Aug 19:30, Adult", "Six-show Fringer", "Street Magic (pay as you will)", "Buttons", "Donation"}
	if len(r.Lines) != len(want) {
		t.Fatalf("lines = %+v", r.Lines)
	}
	for i, d := range want {
		if r.Lines[i].Description != d {
			t.Errorf("line %d = %q, want %q", i, r.Lines[i].Description, d)
		}
	}
	if r.Lines[3].Quantity != 2 || !r.Lines[3].Amount.Equal(dec("6")) {
		t.Errorf("buttons line = %+v", r.Lines[3])
	}

	v.Completed, v.TransactionType, v.Donation, v.Buttons = nil, nil, decimal.Zero, 0
	r = saleReceipt(model.Festival{}, v)
	if r.Method != "" || !r.Total.Equal(dec("999")) || len(r.Lines) != 3 {
		t.Errorf("in-progress receipt = %+v", r)
	}
}

func TestRefundReceipt(t *testing.T) {
	done := evening
	v := refundView{
		Refund:  model.Refund{UUID: "r-1", BoxOfficeID: u64(2), Amount: dec("24"), Completed: &done},
		Tickets: sampleTickets()[:1],
		Total:   dec("12"),
	}
	r := refundReceipt(model.Festival{Name: "Fringe"}, v)
	if r.Kind != model.ReceiptRefund || r.Method != "Cash" || !r.Total.Equal(dec("24")) || len(r.Lines) != 1 {
		t.Errorf("box office refund = %+v", r)
	}
	v.BoxOfficeID = nil
	if r := refundReceipt(model.Festival{}, v); r.Method != "Online cancellation" {
		t.Errorf("online method = %q", r.Method)
	}
}

func TestCheckoutItems(t *testing.T) {
	v := basketView{
		Basket:     model.Basket{UserID: 7, Buttons: 3},
		Tickets:    sampleTickets(),
		Fringers:   []model.Fringer{{FringerTypeID: 1, TypeName: "Fringer", Cost: dec("30")}, {FringerTypeID: 1, TypeName: "Fringer", Cost: dec("30")}},
		ButtonCost: dec("7.50"),
	}
	items := checkoutItems(v)
	if len(items) != 5 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Quantity != 2 || !items[0].Amount.Equal(dec("12")) {
		t.Errorf("ticket item = %+v", items[0])
	}
	if items[3].Quantity != 2 || !items[3].Amount.Equal(dec("30")) {
		t.Errorf("fringer item = %+v", items[3])
	}
	if items[4].Name != "Buttons" || items[4].Quantity != 3 || !items[4].Amount.Equal(dec("2.5")) {
		t.Errorf("buttons item = %+v", items[4])
	}
	if got := unitPrice(model.ReceiptLine{}); !got.IsZero() {
		t.Errorf("unitPrice of empty line = %v", got)
	}
}

func TestSplitAdmission(t *testing.T) {
	tickets := []model.Ticket{
		{ID: 1, SaleVenue: u64(3)},
		{ID: 2, SaleBoxOffice: u64(1)},
		{ID: 3, SaleVenue: u64(3), RefundID: u64(9)},
		{ID: 4},
	}
	a := splitAdmission(model.Performance{ID: 10}, tickets)
	if len(a.Venue) != 1 || a.Venue[0].ID != 1 {
		t.Errorf("venue = %+v", a.Venue)
	}
	if len(a.NonVenue) != 2 || a.NonVenue[0].ID != 2 || a.NonVenue[1].ID != 4 {
		t.Errorf("non-venue = %+v", a.NonVenue)
	}
	if len(a.Cancelled) != 1 || a.Cancelled[0].ID != 3 {
		t.Errorf("cancelled = %+v", a.Cancelled)
	}
	if empty := splitAdmission(model.Performance{}, nil); empty.Venue == nil || empty.Cancelled == nil {
		t.Error("empty lists should encode as []")
	}
	if tables := admissionTables(a); len(tables) != 3 || len(tables[1].Rows) != 2 {
		t.Errorf("tables = %+v", tables)
	}
}

func TestCheckSalePerformance(t *testing.T) {
	perf := model.Performance{ID: 10, VenueID: u64(3)}
	if err := checkSalePerformance(model.Sale{BoxOfficeID: u64(1)}, perf); err != nil {
		t.Errorf("box office sale: %v", err)
	}
	if err := checkSalePerformance(model.Sale{VenueID: u64(3), PerformanceID: u64(10)}, perf); err != nil {
		t.Errorf("own performance: %v", err)
	}
	if err := checkSalePerformance(model.Sale{VenueID: u64(3), PerformanceID: u64(11)}, perf); err != ledger.ErrOtherPerformance {
		t.Errorf("other performance at the same venue: %v", err)
	}
	if err := checkSalePerformance(model.Sale{VenueID: u64(3)}, perf); err != ledger.ErrOtherPerformance {
		t.Errorf("venue sale without a performance: %v", err)
	}
	if err := checkSalePerformance(model.Sale{VenueID: u64(4)}, perf); err != ledger.ErrPerformanceMismatch {
		t.Errorf("other venue: %v", err)
	}
	if err := checkSalePerformance(model.Sale{VenueID: u64(4)}, model.Performance{}); err != ledger.ErrPerformanceMismatch {
		t.Errorf("no venue: %v", err)
	}
}

func TestSaleOwner(t *testing.T) {
	o := saleOwner(model.Sale{ID: 5, UserID: 7})
	if o.SaleID == nil || *o.SaleID != 5 || o.UserID == nil || *o.UserID != 7 || o.BasketUserID != nil {
		t.Errorf("online owner = %+v", o)
	}
	o = saleOwner(model.Sale{ID: 5, UserID: 7, BoxOfficeID: u64(1)})
	if o.UserID != nil {
		t.Errorf("box office tickets should have no user: %+v", o)
	}
}
