package handler

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/report"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// RefundHandler serves box office refunds, the daily summary and box
// office checkpoints.
type RefundHandler struct {
	Store  *Store
	Events EventPublisher
	Log    logger.Logger
}

func NewRefundHandler(store *Store, events EventPublisher, log logger.Logger) *RefundHandler {
	if store == nil || log == nil {
		panic("nil dependency passed to NewRefundHandler")
	}
	return &RefundHandler{Store: store, Events: events, Log: log}
}

type refundTicketReq struct {
	TicketID uint64 `json:"ticket_id" validate:"required"`
}

type completeRefundReq struct {
	Reason string `json:"reason" validate:"max=255"`
}

// countReq is a cash and stock count taken at a checkpoint.
type countReq struct {
	Cash     decimal.Decimal `json:"cash"`
	Buttons  int             `json:"buttons" validate:"gte=0"`
	Fringers int             `json:"fringers" validate:"gte=0"`
	Notes    string          `json:"notes" validate:"max=2000"`
}

func bindCount(c echo.Context) (countReq, error) {
	var req countReq
	if err := bindValid(c, &req); err != nil {
		return req, err
	}
	if req.Cash.IsNegative() {
		return req, &requestError{msg: "validation failed", fields: map[string]string{"cash": "must be at least 0"}}
	}
	return req, nil
}

// StartRefund opens a refund at a box office.
func (h *RefundHandler) StartRefund(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	boxOfficeID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req startSaleReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bo, err := h.Store.Festivals.GetBoxOffice(ctx, who.FestivalID, boxOfficeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ref := model.Refund{FestivalID: who.FestivalID, BoxOfficeID: &bo.ID, UserID: who.UserID, Customer: req.Customer}
	var view refundView
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		if err := h.Store.Refunds.CreateTx(ctx, tx, &ref); err != nil {
			return err
		}
		var err error
		view, err = h.Store.refundView(ctx, tx, ref)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// GetRefund returns a refund with its tickets.
func (h *RefundHandler) GetRefund(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	ref, err := h.Store.Refunds.GetByUUID(ctx, who.FestivalID, c.Param("uuid"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	view, err := h.Store.refundView(ctx, h.Store.DB, ref)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// refundTx locks the refund named in the path and runs fn.
func (h *RefundHandler) refundTx(c echo.Context, fn func(ctx context.Context, tx *sql.Tx, ref *model.Refund, festivalID uint64) error) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view refundView
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		ref, err := h.Store.Refunds.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &ref, who.FestivalID); err != nil {
			return err
		}
		view, err = h.Store.refundView(ctx, tx, ref)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// AddTicket puts a sold ticket on the refund.
func (h *RefundHandler) AddTicket(c echo.Context) error {
	var req refundTicketReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.refundTx(c, func(ctx context.Context, tx *sql.Tx, ref *model.Refund, festivalID uint64) error {
		if err := ledger.RequireRefundOpen(*ref); err != nil {
			return err
		}
		t, err := h.Store.Tickets.GetForUpdateTx(ctx, tx, festivalID, req.TicketID)
		if err != nil {
			return ticketNotFound(err)
		}
		if err := ledger.CheckRefundable(t, false); err != nil {
			return err
		}
		return h.Store.Tickets.SetRefundTx(ctx, tx, t.ID, &ref.ID)
	})
}

// RemoveTicket takes a ticket back off an open refund.
func (h *RefundHandler) RemoveTicket(c echo.Context) error {
	ticketID, err := pathID(c, "ticket")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.refundTx(c, func(ctx context.Context, tx *sql.Tx, ref *model.Refund, _ uint64) error {
		if err := ledger.RequireRefundOpen(*ref); err != nil {
			return err
		}
		return ticketNotFound(h.Store.Tickets.ReleaseRefundTx(ctx, tx, ref.ID, ticketID))
	})
}

// CompleteRefund pays out the ticket costs.  Completing twice is logged
// and leaves the refund as it was.
func (h *RefundHandler) CompleteRefund(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req completeRefundReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view refundView
	var festival model.Festival
	repeat := false
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		ref, err := h.Store.Refunds.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		if festival, err = h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID); err != nil {
			return err
		}
		costs, err := h.Store.Refunds.TicketCostsTx(ctx, tx, ref.ID)
		if err != nil {
			return err
		}
		repeat = ledger.CompleteRefund(&ref, ledger.RefundTotal(costs), req.Reason, clock())
		if err := h.Store.Refunds.UpdateTx(ctx, tx, &ref); err != nil {
			return err
		}
		view, err = h.Store.refundView(ctx, tx, ref)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if repeat {
		h.Log.Error("refund already completed", "refund", view.UUID, "user", who.UserID)
		return c.JSON(http.StatusOK, view)
	}
	h.Log.Info("refund completed", "refund", view.UUID, "amount", view.Amount.StringFixed(2))
	publishReceipt(ctx, h.Events, h.Log, refundReceipt(festival, view))
	return c.JSON(http.StatusOK, view)
}

// CancelRefund releases the refund's tickets and deletes it.
func (h *RefundHandler) CancelRefund(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		ref, err := h.Store.Refunds.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		if err := ledger.RequireRefundOpen(ref); err != nil {
			return err
		}
		return h.Store.Refunds.DeleteTx(ctx, tx, ref.ID)
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Receipt renders a completed refund as a PDF.
func (h *RefundHandler) Receipt(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	festival, err := h.Store.Festivals.GetByID(ctx, who.FestivalID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ref, err := h.Store.Refunds.GetByUUID(ctx, who.FestivalID, c.Param("uuid"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := ledger.RequireRefundOpen(ref); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "refund is not completed"})
	}
	view, err := h.Store.refundView(ctx, h.Store.DB, ref)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	pdf, err := report.ReceiptPDF(refundReceipt(festival, view))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// Summary returns a box office's sales and refunds for one day.
func (h *RefundHandler) Summary(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	boxOfficeID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	day, err := parseDay(c.QueryParam("date"), clock())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bo, err := h.Store.Festivals.GetBoxOffice(ctx, who.FestivalID, boxOfficeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	summary, err := h.Store.Reports.DaySummary(ctx, bo.ID, day)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"boxoffice": bo, "date": day.Format("2006-01-02"), "summary": summary})
}

// Checkpoint records a box office count.
func (h *RefundHandler) Checkpoint(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	boxOfficeID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	req, err := bindCount(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bo, err := h.Store.Festivals.GetBoxOffice(ctx, who.FestivalID, boxOfficeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	uid := who.UserID
	cp := model.Checkpoint{
		UserID:      &uid,
		BoxOfficeID: &bo.ID,
		Cash:        req.Cash,
		Buttons:     req.Buttons,
		Fringers:    req.Fringers,
		Notes:       req.Notes,
	}
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		return h.Store.Checkpoints.CreateTx(ctx, tx, &cp)
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cp)
}
