package handler

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

var saleColumns = []string{"id", "uuid", "festival_id", "boxoffice_id", "venue_id", "performance_id", "user_id",
	"customer", "buttons", "donation", "amount", "completed", "cancelled", "transaction_id", "transaction_type",
	"transaction_fee", "notes", "created_at"}

// saleRow is sale 5 ("s-1") of festival 1, made by user 7.
func saleRow(boxOffice, venue, performance, txType any, buttons int64) *sqlmock.Rows {
	return sqlmock.NewRows(saleColumns).AddRow(int64(5), "s-1", int64(1), boxOffice, venue, performance,
		int64(7), "", buttons, "0", "0", nil, nil, nil, txType, "0", "", evening)
}

func expectLockedSale(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM sales WHERE uuid = ? AND festival_id = ? FOR UPDATE")).
		WithArgs("s-1", uint64(1)).
		WillReturnRows(rows)
}

func expectFestival(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM festivals WHERE id = ?")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "button_price", "open", "close"}).
			AddRow(int64(1), "fringe", "Fringe", "2.00", nil, nil))
}

// expectSaleLoad expects the locked sale and its festival.  A zero venue
// makes a box office sale.
func expectSaleLoad(mock sqlmock.Sqlmock, venue, performance int64) {
	rows := saleRow(int64(2), nil, nil, nil, 0)
	if venue != 0 {
		rows = saleRow(nil, venue, performance, nil, 0)
	}
	expectLockedSale(mock, rows)
	expectFestival(mock)
}

func expectContents(mock sqlmock.Sqlmock, tickets int64, cost string) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE sale_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"n", "cost"}).AddRow(tickets, cost))
	mock.ExpectQuery(regexp.QuoteMeta("FROM fringers WHERE sale_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"n", "cost"}).AddRow(int64(0), "0"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payw WHERE sale_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"n", "amount"}).AddRow(int64(0), "0"))
}

// expectEmptySaleView expects the reads behind a sale view with no items.
func expectEmptySaleView(mock sqlmock.Sqlmock) {
	expectContents(mock, 0, "0")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.sale_id = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.sale_id = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payw w JOIN shows")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
}

var checkpointColumns = []string{"id", "user_id", "boxoffice_id", "venue_id", "open_performance_id",
	"close_performance_id", "cash", "buttons", "fringers", "notes", "created_at"}

// expectCheckpoints expects the performance lock and its checkpoints.
func expectCheckpoints(mock sqlmock.Sqlmock, performance int64, open, closed bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM performances WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(performance)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(performance))
	rows := sqlmock.NewRows(checkpointColumns)
	if open {
		rows.AddRow(int64(1), int64(7), nil, int64(3), performance, nil, "20.00", int64(5), int64(0), "", evening)
	}
	if closed {
		rows.AddRow(int64(2), int64(7), nil, int64(3), nil, performance, "45.00", int64(2), int64(0), "", evening)
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.open_performance_id = ? OR c.close_performance_id = ?")).
		WithArgs(uint64(performance), uint64(performance)).
		WillReturnRows(rows)
}

func TestVenueOpenTx(t *testing.T) {
	tests := []struct {
		name   string
		sale   model.Sale
		open   bool
		closed bool
		query  bool
		want   error
	}{
		{name: "box office sale", sale: model.Sale{BoxOfficeID: u64(2)}},
		{name: "venue sale without performance", sale: model.Sale{VenueID: u64(3)}, want: ledger.ErrOtherPerformance},
		{name: "not yet open", sale: model.Sale{VenueID: u64(3), PerformanceID: u64(10)}, query: true,
			want: ledger.ErrPerformanceNotOpen},
		{name: "open", sale: model.Sale{VenueID: u64(3), PerformanceID: u64(10)}, query: true, open: true},
		{name: "closed", sale: model.Sale{VenueID: u64(3), PerformanceID: u64(10)}, query: true, open: true,
			closed: true, want: ledger.ErrPerformanceClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := mockStore(t)
			mock.ExpectBegin()
			if tt.query {
				expectCheckpoints(mock, 10, tt.open, tt.closed)
			}
			mock.ExpectRollback()

			tx, err := store.DB.Begin()
			if err != nil {
				t.Fatal(err)
			}
			if err := store.venueOpenTx(context.Background(), tx, tt.sale); err != tt.want {
				t.Errorf("venueOpenTx() = %v, want %v", err, tt.want)
			}
			tx.Rollback()
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestCancelSaleReleasesItems(t *testing.T) {
	store, mock := mockStore(t)
	h := &SaleHandler{Store: store, Log: logger.Nop()}
	defer func(prev func() time.Time) { clock = prev }(clock)
	clock = func() time.Time { return evening }

	mock.ExpectBegin()
	expectSaleLoad(mock, 0, 0)
	expectContents(mock, 2, "24.00")
	for _, table := range []string{"tickets", "payw", "fringers"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM "+table+" WHERE sale_id = ?")).
			WithArgs(uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sales SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	expectEmptySaleView(mock)
	mock.ExpectCommit()

	c, rec := newContext(http.MethodDelete, "/", "")
	signIn(c, model.RoleBoxOffice)
	c.SetParamNames("uuid")
	c.SetParamValues("s-1")
	if err := h.CancelSale(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["state"] != "cancelled" {
		t.Errorf("state = %v", body["state"])
	}
	if n := body["contents"].(map[string]any)["ticket_count"]; n != float64(0) {
		t.Errorf("tickets left on the cancelled sale: %v", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestClosedVenueSaleIsFrozen(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contents bool
		call     func(h *SaleHandler, c echo.Context) error
	}{
		{name: "add tickets", body: `{"performance_id":10,"tickets":[{"ticket_type_id":1,"quantity":2}]}`,
			call: func(h *SaleHandler, c echo.Context) error { return h.AddTickets(c) }},
		{name: "cancel", contents: true,
			call: func(h *SaleHandler, c echo.Context) error { return h.CancelSale(c) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := mockStore(t)
			h := &SaleHandler{Store: store, Log: logger.Nop()}
			mock.ExpectBegin()
			expectSaleLoad(mock, 3, 10)
			if tt.contents {
				expectContents(mock, 2, "24.00")
			}
			expectCheckpoints(mock, 10, true, true)
			mock.ExpectRollback()

			c, rec := newContext(http.MethodPost, "/", tt.body)
			signIn(c, model.RoleVenue)
			c.SetParamNames("uuid")
			c.SetParamValues("s-1")
			if err := tt.call(h, c); err != nil {
				t.Fatal(err)
			}
			if rec.Code != http.StatusConflict {
				t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
			}
			if msg := decodeBody(t, rec)["error"]; msg != ledger.ErrPerformanceClosed.Error() {
				t.Errorf("error = %v", msg)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}
