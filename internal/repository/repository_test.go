package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectLockedCounts(mock sqlmock.Sqlmock, performanceID uint64, capacity, sold, refunded int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM performances WHERE id = ? FOR UPDATE")).
		WithArgs(performanceID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(performanceID)))
	mock.ExpectQuery(regexp.QuoteMeta(availabilitySQL)).
		WithArgs(performanceID).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "sold", "refunded"}).AddRow(capacity, sold, refunded))
}

func TestLockAvailabilityTx(t *testing.T) {
	tests := []struct {
		name     string
		sold     int64
		refunded int64
		want     int
	}{
		{"full house", 10, 0, 0},
		{"refund returns its seat", 10, 1, 1},
		{"cancelled sale released its tickets", 6, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewProgramRepo(db)
			mock.ExpectBegin()
			expectLockedCounts(mock, 9, 10, tt.sold, tt.refunded)
			mock.ExpectCommit()

			var got model.Availability
			err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
				var err error
				got, err = repo.LockAvailabilityTx(context.Background(), tx, 9)
				return err
			})
			if err != nil {
				t.Fatalf("LockAvailabilityTx: %v", err)
			}
			if got.Available != tt.want || got.Sold != int(tt.sold) || got.Refunded != int(tt.refunded) {
				t.Errorf("availability = %+v, want %d available", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestLockPerformanceTxNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProgramRepo(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM performances WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return repo.LockPerformanceTx(context.Background(), tx, 404)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func expectRelease(mock sqlmock.Sqlmock, saleID uint64, held ...int64) {
	for i, table := range []string{"tickets", "payw", "fringers"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM "+table+" WHERE sale_id = ?")).
			WithArgs(saleID).
			WillReturnResult(sqlmock.NewResult(0, held[i]))
	}
}

func TestReleaseItemsKeepsTheSale(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSaleRepo(db)
	mock.ExpectBegin()
	expectRelease(mock, 5, 4, 1, 0)
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return repo.ReleaseItemsTx(context.Background(), tx, 5)
	})
	if err != nil {
		t.Fatalf("ReleaseItemsTx: %v", err)
	}
	// Any DELETE FROM sales would be an unexpected call and fail here.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteSaleReleasesFirst(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSaleRepo(db)
	mock.ExpectBegin()
	expectRelease(mock, 5, 0, 0, 0)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sales WHERE id = ?")).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return repo.DeleteTx(context.Background(), tx, 5)
	})
	if err != nil {
		t.Fatalf("DeleteTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSaleRepo(db)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE sale_id = ?")).
		WithArgs(uint64(5)).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return repo.ReleaseItemsTx(context.Background(), tx, 5)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

var (
	windowFrom = time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	windowTo   = windowFrom.Add(24 * time.Hour)
)

// saleTotalsPattern pins the cash filter to the amount column: the WHERE
// clause carries only the place and the window.
func saleTotalsPattern(column string) string {
	return regexp.QuoteMeta("SUM(CASE WHEN s.transaction_type = ? THEN s.amount ELSE 0 END)") + `.*` +
		regexp.QuoteMeta("COALESCE(SUM(s.buttons), 0)") + `.*` +
		regexp.QuoteMeta("FROM sales s WHERE s."+column+" = ? AND s.completed >= ? AND s.completed < ?") + `$`
}

func TestVenueTotalsCountsStockFromEverySale(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReportRepo(db)
	mock.ExpectQuery(saleTotalsPattern("venue_id")).
		WithArgs(model.TransactionCash, uint64(3), windowFrom, windowTo).
		WillReturnRows(sqlmock.NewRows([]string{"cash", "buttons", "fringers"}).AddRow("25.00", int64(4), int64(2)))

	got, err := repo.VenueTotals(context.Background(), 3, windowFrom, windowTo)
	if err != nil {
		t.Fatalf("VenueTotals: %v", err)
	}
	if !got.Cash.Equal(decimal.RequireFromString("25")) || got.Buttons != 4 || got.Fringers != 2 {
		t.Errorf("totals = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBoxOfficeTotals(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReportRepo(db)
	mock.ExpectQuery(saleTotalsPattern("boxoffice_id")).
		WithArgs(model.TransactionCash, uint64(2), windowFrom, windowTo).
		WillReturnRows(sqlmock.NewRows([]string{"cash", "buttons", "fringers"}).AddRow("40.00", int64(3), int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE boxoffice_id = ?")).
		WithArgs(uint64(2), windowFrom, windowTo).
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("12.00"))

	sales, refunds, err := repo.BoxOfficeTotals(context.Background(), 2, windowFrom, windowTo)
	if err != nil {
		t.Fatalf("BoxOfficeTotals: %v", err)
	}
	if !sales.Cash.Equal(decimal.RequireFromString("40")) || sales.Buttons != 3 || sales.Fringers != 1 {
		t.Errorf("sales = %+v", sales)
	}
	if !refunds.Cash.Equal(decimal.RequireFromString("12")) || refunds.Buttons != 0 {
		t.Errorf("refunds = %+v", refunds)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
