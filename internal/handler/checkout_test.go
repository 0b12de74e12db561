package handler

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/payment"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

type stubCheckout struct {
	create func(req payment.CheckoutRequest) (payment.Session, error)
}

func (s stubCheckout) CreateSession(_ context.Context, req payment.CheckoutRequest) (payment.Session, error) {
	return s.create(req)
}

func (s stubCheckout) VerifySession(context.Context, string) (payment.Payment, error) {
	return payment.Payment{}, payment.ErrNotPaid
}

// expectBasketMoved expects a checkout of a basket holding three buttons,
// up to and including the commit that leaves the sale awaiting payment.
func expectBasketMoved(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=? LIMIT 1")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "festival_id", "email", "password_hash", "role", "is_active",
			"created_at", "updated_at"}).
			AddRow(int64(7), int64(1), "ann@example.com", "hash", model.RoleCustomer, true, evening, evening))
	mock.ExpectBegin()
	expectFestival(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT buttons FROM baskets WHERE user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"buttons"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE basket_user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"n", "cost"}).AddRow(int64(0), "0"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM fringers WHERE basket_user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"n", "cost"}).AddRow(int64(0), "0"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.basket_user_id = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.basket_user_id = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sales")).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sales WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(saleRow(nil, nil, nil, nil, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT buttons FROM baskets WHERE user_id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"buttons"}).AddRow(int64(3)))
	for _, q := range []string{
		"UPDATE tickets SET sale_id = ?",
		"UPDATE fringers SET sale_id = ?",
		"UPDATE baskets SET buttons = 0",
		"UPDATE sales SET buttons = ?",
		"UPDATE sales SET customer = ?",
	} {
		mock.ExpectExec(regexp.QuoteMeta(q)).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	expectEmptySaleView(mock)
	mock.ExpectCommit()
}

func checkoutRequest(t *testing.T, h *CheckoutHandler) (int, map[string]any) {
	t.Helper()
	c, rec := newContext(http.MethodPost, "/", "")
	signIn(c, model.RoleCustomer)
	if err := h.Checkout(c); err != nil {
		t.Fatal(err)
	}
	return rec.Code, decodeBody(t, rec)
}

func TestCheckoutCreatesPaymentPageAfterCommit(t *testing.T) {
	store, mock := mockStore(t)
	expectBasketMoved(mock)

	var sent payment.CheckoutRequest
	h := &CheckoutHandler{Store: store, Users: repository.NewUserRepo(store.DB), SiteURL: "https://shop.test", Log: logger.Nop()}
	h.Payments = stubCheckout{create: func(req payment.CheckoutRequest) (payment.Session, error) {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("payment page requested before the sale committed: %v", err)
		}
		sent = req
		mock.ExpectBegin()
		expectLockedSale(mock, saleRow(nil, nil, nil, int64(model.TransactionStripe), 3))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE sales SET customer = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		return payment.Session{ID: "cs_test_1", URL: "https://pay.test/cs_test_1"}, nil
	}}

	code, body := checkoutRequest(t, h)
	if code != http.StatusOK {
		t.Fatalf("code = %d, body %v", code, body)
	}
	if body["checkout_url"] != "https://pay.test/cs_test_1" {
		t.Errorf("checkout_url = %v", body["checkout_url"])
	}
	if sale := body["sale"].(map[string]any); sale["transaction_id"] != "cs_test_1" || sale["state"] != "payment_pending" {
		t.Errorf("sale = %v", sale)
	}
	if sent.Reference != "s-1" || len(sent.Items) != 1 || sent.Items[0].Quantity != 3 {
		t.Errorf("checkout request = %+v", sent)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCheckoutReturnsItemsWhenPaymentPageFails(t *testing.T) {
	store, mock := mockStore(t)
	expectBasketMoved(mock)

	h := &CheckoutHandler{Store: store, Users: repository.NewUserRepo(store.DB), SiteURL: "https://shop.test", Log: logger.Nop()}
	h.Payments = stubCheckout{create: func(payment.CheckoutRequest) (payment.Session, error) {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("payment page requested before the sale committed: %v", err)
		}
		mock.ExpectBegin()
		expectLockedSale(mock, saleRow(nil, nil, nil, int64(model.TransactionStripe), 3))
		for _, q := range []string{
			"UPDATE tickets SET basket_user_id = ?",
			"UPDATE fringers SET basket_user_id = ?",
			"UPDATE baskets SET buttons = buttons + ?",
			"UPDATE sales SET buttons = 0",
			"DELETE FROM tickets WHERE sale_id = ?",
			"DELETE FROM payw WHERE sale_id = ?",
			"DELETE FROM fringers WHERE sale_id = ?",
			"DELETE FROM sales WHERE id = ?",
		} {
			mock.ExpectExec(regexp.QuoteMeta(q)).WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()
		return payment.Session{}, payment.ErrNotConfigured
	}}

	code, body := checkoutRequest(t, h)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, body %v", code, body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
