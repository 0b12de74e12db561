package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/payment"
	"github.com/iliyamo/festival-boxoffice/internal/queue"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// CheckoutHandler turns baskets into paid online sales and takes donations.
type CheckoutHandler struct {
	Store    *Store
	Users    *repository.UserRepo
	Payments payment.Checkout
	Events   EventPublisher
	SiteURL  string
	Log      logger.Logger
}

func NewCheckoutHandler(store *Store, users *repository.UserRepo, checkout payment.Checkout, events EventPublisher,
	siteURL string, log logger.Logger) *CheckoutHandler {
	if store == nil || users == nil || checkout == nil || log == nil {
		panic("nil dependency passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Store: store, Users: users, Payments: checkout, Events: events,
		SiteURL: strings.TrimRight(siteURL, "/"), Log: log}
}

type donationReq struct {
	Festival string          `json:"festival" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Amount   decimal.Decimal `json:"amount"`
}

// donationPrefix marks donation sessions; the festival id follows it.
const donationPrefix = "donation-"

// checkoutItems lists the basket as priced lines for the payment page.
func checkoutItems(v basketView) []payment.LineItem {
	var items []payment.LineItem
	for _, l := range ticketLines(v.Tickets) {
		items = append(items, payment.LineItem{Name: l.Description, Amount: unitPrice(l), Quantity: int64(l.Quantity)})
	}
	for _, l := range fringerLines(v.Fringers) {
		items = append(items, payment.LineItem{Name: l.Description, Amount: unitPrice(l), Quantity: int64(l.Quantity)})
	}
	if v.Buttons > 0 {
		items = append(items, payment.LineItem{Name: "Buttons", Amount: v.ButtonCost.Div(decimal.NewFromInt(int64(v.Buttons))), Quantity: int64(v.Buttons)})
	}
	return items
}

func unitPrice(l model.ReceiptLine) decimal.Decimal {
	if l.Quantity == 0 {
		return decimal.Zero
	}
	return l.Amount.Div(decimal.NewFromInt(int64(l.Quantity)))
}

// Checkout moves the basket into a new online sale awaiting Stripe payment
// and returns the hosted payment page.  A basket that costs nothing is
// completed on the spot.  The payment page is created after the sale has
// committed, so no row locks are held while Stripe is called; if it cannot
// be created the items go back to the basket.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Users.GetByID(ctx, who.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var view saleView
	var festival model.Festival
	var items []payment.LineItem
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		var err error
		if festival, err = h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID); err != nil {
			return err
		}
		if !festival.IsOnlineSalesOpen(clock()) {
			return ledger.ErrOnlineSalesClosed
		}
		basket, err := h.Store.basketView(ctx, tx, who.UserID, festival)
		if err != nil {
			return err
		}
		if ledger.BasketEmpty(basket.Basket, basket.Contents) {
			return ledger.ErrBasketEmpty
		}
		if err := h.Store.reserveBasketTx(ctx, tx, basket.Tickets); err != nil {
			return err
		}
		sale := model.Sale{FestivalID: who.FestivalID, UserID: who.UserID, Customer: user.Email}
		if err := h.Store.Sales.CreateTx(ctx, tx, &sale); err != nil {
			return err
		}
		if sale.Buttons, err = h.Store.Sales.TakeBasketTx(ctx, tx, who.UserID, sale.ID); err != nil {
			return err
		}
		if err := ledger.BeginPayment(&sale, model.TransactionStripe, basket.Total); err != nil {
			return err
		}
		if basket.Total.IsZero() {
			if err := ledger.Complete(&sale, model.TransactionStripe, basket.Total, clock()); err != nil {
				return err
			}
		} else {
			items = checkoutItems(basket)
		}
		if err := h.Store.Sales.UpdateTx(ctx, tx, &sale); err != nil {
			return err
		}
		view, err = h.Store.saleView(ctx, tx, sale, festival)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if view.State == ledger.SaleComplete {
		publishReceipt(ctx, h.Events, h.Log, saleReceipt(festival, view))
		return c.JSON(http.StatusOK, echo.Map{"sale": view})
	}

	sess, err := h.Payments.CreateSession(ctx, payment.CheckoutRequest{
		Reference:  view.UUID,
		Email:      user.Email,
		Items:      items,
		SuccessURL: fmt.Sprintf("%s/checkout/%s/success", h.SiteURL, view.UUID),
		CancelURL:  fmt.Sprintf("%s/checkout/%s/cancel", h.SiteURL, view.UUID),
	})
	if err == nil {
		err = h.attachSession(ctx, who.FestivalID, view.UUID, sess.ID)
	}
	if err != nil {
		if rerr := h.releaseCheckout(context.WithoutCancel(ctx), who.FestivalID, view.UUID); rerr != nil {
			h.Log.Error("release checkout failed", "sale", view.UUID, "error", rerr)
		}
		return writeError(c, h.Log, err)
	}
	view.TransactionID = &sess.ID
	return c.JSON(http.StatusOK, echo.Map{"sale": view, "checkout_url": sess.URL, "session_id": sess.ID})
}

// attachSession records the checkout session on a sale still awaiting it.
func (h *CheckoutHandler) attachSession(ctx context.Context, festivalID uint64, uuid, sessionID string) error {
	return repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, festivalID, uuid)
		if err != nil {
			return err
		}
		if ledger.StateOf(sale) != ledger.SalePaymentPending || sale.TransactionID != nil {
			return ledger.ErrSaleNotPending
		}
		sale.TransactionID = &sessionID
		return h.Store.Sales.UpdateTx(ctx, tx, &sale)
	})
}

// releaseCheckout returns the items of a sale that never got a payment page
// to the basket and deletes the sale.
func (h *CheckoutHandler) releaseCheckout(ctx context.Context, festivalID uint64, uuid string) error {
	return repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, festivalID, uuid)
		if err != nil {
			return err
		}
		if ledger.StateOf(sale) != ledger.SalePaymentPending || sale.TransactionID != nil {
			return nil
		}
		if err := h.Store.Sales.ReturnToBasketTx(ctx, tx, sale); err != nil {
			return err
		}
		return h.Store.Sales.DeleteTx(ctx, tx, sale.ID)
	})
}

// Success completes the sale once Stripe confirms the session was paid.
// Repeating the call after completion returns the completed sale.
func (h *CheckoutHandler) Success(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return writeError(c, h.Log, badRequest("session_id is required"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.ownSale(ctx, who, c.Param("uuid"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if ledger.StateOf(sale) == ledger.SalePaymentPending && (sale.TransactionID == nil || *sale.TransactionID != sessionID) {
		return writeError(c, h.Log, badRequest("session does not belong to this sale"))
	}
	var paid payment.Payment
	if ledger.StateOf(sale) == ledger.SalePaymentPending {
		if paid, err = h.Payments.VerifySession(ctx, sessionID); err != nil {
			return writeError(c, h.Log, err)
		}
		if paid.Reference != sale.UUID {
			return writeError(c, h.Log, badRequest("session does not belong to this sale"))
		}
	}

	var view saleView
	var festival model.Festival
	completedNow := false
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		locked, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, sale.UUID)
		if err != nil {
			return err
		}
		if festival, err = h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID); err != nil {
			return err
		}
		if ledger.StateOf(locked) == ledger.SalePaymentPending && paid.TransactionID != "" {
			contents, err := h.Store.Sales.ContentsTx(ctx, tx, locked.ID)
			if err != nil {
				return err
			}
			total := ledger.SaleTotal(locked, contents, festival.ButtonPrice)
			if err := ledger.Complete(&locked, model.TransactionStripe, total, clock()); err != nil {
				return err
			}
			locked.TransactionID = &paid.TransactionID
			if err := h.Store.Sales.UpdateTx(ctx, tx, &locked); err != nil {
				return err
			}
			completedNow = true
		}
		view, err = h.Store.saleView(ctx, tx, locked, festival)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	switch view.State {
	case ledger.SaleComplete:
	case ledger.SaleCancelled:
		if paid.TransactionID != "" {
			h.Log.Error("paid session for cancelled sale", "sale", view.UUID, "transaction", paid.TransactionID)
		}
		return writeError(c, h.Log, ledger.ErrSaleClosed)
	default:
		return writeError(c, h.Log, ledger.ErrSaleNotPending)
	}
	if completedNow {
		h.Log.Info("sale completed", "sale", view.UUID, "method", model.TransactionStripe.String(), "amount", view.Amount.StringFixed(2))
		publishReceipt(ctx, h.Events, h.Log, saleReceipt(festival, view))
	}
	return c.JSON(http.StatusOK, echo.Map{"sale": view})
}

// Cancel returns an unpaid sale's items to the basket and deletes the sale.
func (h *CheckoutHandler) Cancel(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view basketView
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		if sale.UserID != who.UserID || !sale.IsOnline() {
			return repository.ErrNotFound
		}
		switch ledger.StateOf(sale) {
		case ledger.SaleComplete, ledger.SaleCancelled:
			return ledger.ErrSaleClosed
		}
		if err := h.Store.Sales.ReturnToBasketTx(ctx, tx, sale); err != nil {
			return err
		}
		if err := h.Store.Sales.DeleteTx(ctx, tx, sale.ID); err != nil {
			return err
		}
		festival, err := h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID)
		if err != nil {
			return err
		}
		view, err = h.Store.basketView(ctx, tx, who.UserID, festival)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) ownSale(ctx context.Context, who caller, uuid string) (model.Sale, error) {
	sale, err := h.Store.Sales.GetByUUID(ctx, who.FestivalID, uuid)
	if err != nil {
		return sale, err
	}
	if sale.UserID != who.UserID || !sale.IsOnline() {
		return sale, repository.ErrNotFound
	}
	return sale, nil
}

// Donate opens a Stripe session for a donation to a festival.
func (h *CheckoutHandler) Donate(c echo.Context) error {
	var req donationReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if !req.Amount.IsPositive() {
		return writeError(c, h.Log, &requestError{msg: "validation failed", fields: map[string]string{"amount": "must be positive"}})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	festival, err := h.Store.Festivals.GetBySlug(ctx, req.Festival)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	sess, err := h.Payments.CreateSession(ctx, payment.CheckoutRequest{
		Reference:  donationPrefix + strconv.FormatUint(festival.ID, 10),
		Email:      req.Email,
		Items:      []payment.LineItem{{Name: festival.Name + " donation", Amount: req.Amount, Quantity: 1}},
		SuccessURL: h.SiteURL + "/donations/success",
		CancelURL:  h.SiteURL + "/donations",
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"checkout_url": sess.URL, "session_id": sess.ID})
}

// DonationSuccess records a paid donation and queues the thank-you mail.
// A session already recorded is acknowledged without a second mail.
func (h *CheckoutHandler) DonationSuccess(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return writeError(c, h.Log, badRequest("session_id is required"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	paid, err := h.Payments.VerifySession(ctx, sessionID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	festivalID, err := strconv.ParseUint(strings.TrimPrefix(paid.Reference, donationPrefix), 10, 64)
	if err != nil || !strings.HasPrefix(paid.Reference, donationPrefix) {
		return writeError(c, h.Log, badRequest("not a donation session"))
	}
	festival, err := h.Store.Festivals.GetByID(ctx, festivalID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	d := model.Donation{FestivalID: festival.ID, Email: paid.Email, Amount: paid.Amount, TransactionID: paid.TransactionID}
	err = h.Store.Donations.Create(ctx, &d)
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusOK, echo.Map{"donation": d, "recorded": true})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("donation received", "festival", festival.Slug, "amount", d.Amount.StringFixed(2))
	if h.Events != nil {
		ev := queue.DonationReceived(queue.DonationEvent{Festival: festival.Name, Email: d.Email, Amount: d.Amount, TransactionID: d.TransactionID})
		if err := h.Events.Publish(ctx, ev); err != nil {
			h.Log.Warn("publish donation failed", "transaction", d.TransactionID, "error", err)
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"donation": d})
}
