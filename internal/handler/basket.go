package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// BasketHandler serves the customer's basket, tickets and eFringers.
type BasketHandler struct {
	Store  *Store
	Users  *repository.UserRepo
	Events EventPublisher
	Log    logger.Logger
}

func NewBasketHandler(store *Store, users *repository.UserRepo, events EventPublisher, log logger.Logger) *BasketHandler {
	if store == nil || users == nil || log == nil {
		panic("nil dependency passed to NewBasketHandler")
	}
	return &BasketHandler{Store: store, Users: users, Events: events, Log: log}
}

type buyFringerReq struct {
	FringerTypeID uint64 `json:"fringer_type_id" validate:"required"`
	Name          string `json:"name" validate:"max=32"`
}

type buttonsReq struct {
	Buttons int `json:"buttons" validate:"gte=0,lte=100"`
}

// basketTx runs fn for the calling customer inside a transaction and
// answers with the basket afterwards.  Adding to a basket needs online
// sales to be open; removing does not.
func (h *BasketHandler) basketTx(c echo.Context, adding bool, fn func(ctx context.Context, tx *sql.Tx, who caller) error) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view basketView
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		festival, err := h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID)
		if err != nil {
			return err
		}
		if adding && !festival.IsOnlineSalesOpen(clock()) {
			return ledger.ErrOnlineSalesClosed
		}
		if err := fn(ctx, tx, who); err != nil {
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

// GetBasket returns the basket with totals.
func (h *BasketHandler) GetBasket(c echo.Context) error {
	return h.basketTx(c, false, func(context.Context, *sql.Tx, caller) error { return nil })
}

// AddTickets puts online tickets for one performance in the basket.
// Availability is checked now and again at checkout.
func (h *BasketHandler) AddTickets(c echo.Context) error {
	var req addTicketsReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.basketTx(c, true, func(ctx context.Context, tx *sql.Tx, who caller) error {
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, who.FestivalID, req.PerformanceID)
		if err != nil {
			return err
		}
		uid := who.UserID
		_, err = h.Store.issueTicketsTx(ctx, tx, who.FestivalID, perf, ledger.ChannelOnline, req.Tickets,
			ticketOwner{BasketUserID: &uid, UserID: &uid})
		return err
	})
}

// AddFringer puts an eFringer in the basket, named eFringerN unless the
// customer chose a name.
func (h *BasketHandler) AddFringer(c echo.Context) error {
	var req buyFringerReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.basketTx(c, true, func(ctx context.Context, tx *sql.Tx, who caller) error {
		ft, err := h.Store.Program.GetFringerTypeTx(ctx, tx, who.FestivalID, req.FringerTypeID)
		if err != nil {
			return err
		}
		if !ft.IsOnline {
			return ledger.ErrWrongChannel
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			owned, err := h.Store.Fringers.CountOwnedTx(ctx, tx, who.UserID)
			if err != nil {
				return err
			}
			name = ledger.DefaultFringerName(owned)
		}
		uid := who.UserID
		f := model.Fringer{UserID: &uid, FringerTypeID: ft.ID, Name: name, Cost: ft.Price, BasketUserID: &uid}
		return h.Store.Fringers.CreateTx(ctx, tx, &f)
	})
}

// SetButtons sets the number of buttons in the basket.
func (h *BasketHandler) SetButtons(c echo.Context) error {
	var req buttonsReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.basketTx(c, req.Buttons > 0, func(ctx context.Context, tx *sql.Tx, who caller) error {
		return h.Store.Baskets.SetButtonsTx(ctx, tx, who.UserID, req.Buttons)
	})
}

// DeleteTicket removes one ticket from the basket.
func (h *BasketHandler) DeleteTicket(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.basketTx(c, false, func(ctx context.Context, tx *sql.Tx, who caller) error {
		return h.Store.Tickets.DeleteFromBasketTx(ctx, tx, who.UserID, id)
	})
}

// DeletePerformance removes all of a performance's tickets from the basket.
func (h *BasketHandler) DeletePerformance(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.basketTx(c, false, func(ctx context.Context, tx *sql.Tx, who caller) error {
		return h.Store.Tickets.DeletePerformanceFromBasketTx(ctx, tx, who.UserID, id)
	})
}

// DeleteFringer removes an unpaid eFringer from the basket.
func (h *BasketHandler) DeleteFringer(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.basketTx(c, false, func(ctx context.Context, tx *sql.Tx, who caller) error {
		return h.Store.Fringers.DeleteFromBasketTx(ctx, tx, who.UserID, id)
	})
}

// MyTickets lists the customer's purchased tickets, cancelled ones included.
func (h *BasketHandler) MyTickets(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	tickets, err := h.Store.Tickets.ListByUser(ctx, who.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

type fringerView struct {
	model.Fringer
	Available int `json:"available"`
}

// MyFringers lists the customer's paid eFringers with remaining credit.
func (h *BasketHandler) MyFringers(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	fringers, err := h.Store.Fringers.ListByUser(ctx, who.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]fringerView, len(fringers))
	for i, f := range fringers {
		out[i] = fringerView{Fringer: f, Available: ledger.FringerAvailable(f)}
	}
	return c.JSON(http.StatusOK, echo.Map{"fringers": out})
}

// UseFringers books a performance with the customer's own eFringers.  The
// tickets go on a completed zero-amount online sale.
func (h *BasketHandler) UseFringers(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req fringerTicketsReq
	if err := bindValid(c, &req); err != nil {
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
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		var err error
		if festival, err = h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID); err != nil {
			return err
		}
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, who.FestivalID, req.PerformanceID)
		if err != nil {
			return err
		}
		now := clock().UTC()
		sale := model.Sale{FestivalID: who.FestivalID, UserID: who.UserID, Customer: user.Email, Completed: &now}
		if err := h.Store.Sales.CreateTx(ctx, tx, &sale); err != nil {
			return err
		}
		if _, err := h.Store.redeemFringersTx(ctx, tx, who.FestivalID, perf, req.FringerIDs, sale.ID, who.UserID); err != nil {
			return err
		}
		view, err = h.Store.saleView(ctx, tx, sale, festival)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("eFringers used", "sale", view.UUID, "user", who.UserID, "tickets", len(view.Tickets))
	publishReceipt(ctx, h.Events, h.Log, saleReceipt(festival, view))
	return c.JSON(http.StatusCreated, view)
}

// CancelTicket cancels one of the customer's tickets through an immediate
// online refund.  eFringer tickets give the credit back; paid tickets are
// not repaid.
func (h *BasketHandler) CancelTicket(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Users.GetByID(ctx, who.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var ticket model.Ticket
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		t, err := h.Store.Tickets.GetForUpdateTx(ctx, tx, who.FestivalID, id)
		if err != nil {
			return ticketNotFound(err)
		}
		if t.UserID == nil || *t.UserID != who.UserID {
			return ledger.ErrTicketNotFound
		}
		if err := ledger.CheckRefundable(t, true); err != nil {
			return err
		}
		now := clock().UTC()
		ref := model.Refund{FestivalID: who.FestivalID, UserID: who.UserID, Customer: user.Email, Completed: &now}
		if err := h.Store.Refunds.CreateTx(ctx, tx, &ref); err != nil {
			return err
		}
		if err := h.Store.Tickets.SetRefundTx(ctx, tx, t.ID, &ref.ID); err != nil {
			return err
		}
		t.RefundID = &ref.ID
		ticket = t
		return nil
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("ticket cancelled", "ticket", ticket.ID, "user", who.UserID, "performance", ticket.PerformanceID)
	return c.JSON(http.StatusOK, ticket)
}
