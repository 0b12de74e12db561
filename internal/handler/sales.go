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
	"github.com/iliyamo/festival-boxoffice/internal/payment"
	"github.com/iliyamo/festival-boxoffice/internal/report"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// SaleHandler serves box office and venue sales.
type SaleHandler struct {
	Store  *Store
	Events EventPublisher
	Square *payment.SquareTerminal
	Log    logger.Logger
}

// NewSaleHandler panics if a dependency is missing.  events may be nil, in
// which case no receipts are mailed.
func NewSaleHandler(store *Store, events EventPublisher, square *payment.SquareTerminal, log logger.Logger) *SaleHandler {
	if store == nil || square == nil || log == nil {
		panic("nil dependency passed to NewSaleHandler")
	}
	return &SaleHandler{Store: store, Events: events, Square: square, Log: log}
}

// ----- DTOs -----

type startSaleReq struct {
	Customer string `json:"customer" validate:"max=64"`
}

type updateSaleReq struct {
	Customer *string `json:"customer" validate:"omitempty,max=64"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
}

type volunteerReq struct {
	PerformanceID uint64 `json:"performance_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"required,min=1,max=20"`
}

type paperFringerLine struct {
	FringerTypeID uint64 `json:"fringer_type_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gte=0,lte=100"`
}

type extrasReq struct {
	Buttons  int                `json:"buttons" validate:"gte=0,lte=1000"`
	Fringers []paperFringerLine `json:"fringers" validate:"dive"`
}

type paywReq struct {
	ShowID    uint64          `json:"show_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	FringerID *uint64         `json:"fringer_id"`
}

// OpenBoxOffice clears the caller's unfinished sales and refunds at a box
// office.  Clients call it when a seller starts a session.
func (h *SaleHandler) OpenBoxOffice(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	boxOfficeID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bo, err := h.Store.Festivals.GetBoxOffice(ctx, who.FestivalID, boxOfficeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var sales, refunds int
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		var err error
		sales, refunds, err = h.Store.Sales.DeleteIncompleteAtBoxOfficeTx(ctx, tx, who.UserID, bo.ID)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if sales+refunds > 0 {
		h.Log.Info("box office opened", "boxoffice", bo.ID, "user", who.UserID, "sales_deleted", sales, "refunds_deleted", refunds)
	}
	return c.JSON(http.StatusOK, echo.Map{"boxoffice": bo, "sales_deleted": sales, "refunds_deleted": refunds})
}

// StartBoxOfficeSale creates an empty in-progress sale at a box office.
func (h *SaleHandler) StartBoxOfficeSale(c echo.Context) error {
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
	sale := model.Sale{FestivalID: who.FestivalID, BoxOfficeID: &bo.ID, UserID: who.UserID, Customer: req.Customer}
	return h.create(ctx, c, &sale, nil)
}

// StartVenueSale creates a sale at the venue of an open performance.
func (h *SaleHandler) StartVenueSale(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	perfID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req startSaleReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale := model.Sale{FestivalID: who.FestivalID, UserID: who.UserID, Customer: req.Customer}
	return h.create(ctx, c, &sale, func(tx *sql.Tx) error {
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, who.FestivalID, perfID)
		if err != nil {
			return err
		}
		if perf.VenueID == nil {
			return ledger.ErrPerformanceMismatch
		}
		open, closed, err := h.Store.Checkpoints.ForPerformance(ctx, tx, perf.ID)
		if err != nil {
			return err
		}
		if err := ledger.CanClose(open, closed); err != nil {
			return err
		}
		sale.VenueID = perf.VenueID
		sale.PerformanceID = &perf.ID
		return nil
	})
}

func (h *SaleHandler) create(ctx context.Context, c echo.Context, sale *model.Sale, check func(tx *sql.Tx) error) error {
	var view saleView
	err := repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		if check != nil {
			if err := check(tx); err != nil {
				return err
			}
		}
		festival, err := h.Store.Festivals.GetByIDTx(ctx, tx, sale.FestivalID)
		if err != nil {
			return err
		}
		if err := h.Store.Sales.CreateTx(ctx, tx, sale); err != nil {
			return err
		}
		view, err = h.Store.saleView(ctx, tx, *sale, festival)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// saleTx locks the sale named in the path, runs fn and answers with the
// sale as it stands after fn.
func (h *SaleHandler) saleTx(c echo.Context, fn func(ctx context.Context, tx *sql.Tx, sale *model.Sale, f model.Festival) error) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view saleView
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		festival, err := h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &sale, festival); err != nil {
			return err
		}
		view, err = h.Store.saleView(ctx, tx, sale, festival)
		return err
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// GetSale returns a sale with its items and totals.
func (h *SaleHandler) GetSale(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	view, _, err := h.load(ctx, who.FestivalID, c.Param("uuid"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *SaleHandler) load(ctx context.Context, festivalID uint64, uuid string) (saleView, model.Festival, error) {
	festival, err := h.Store.Festivals.GetByID(ctx, festivalID)
	if err != nil {
		return saleView{}, festival, err
	}
	sale, err := h.Store.Sales.GetByUUID(ctx, festivalID, uuid)
	if err != nil {
		return saleView{}, festival, err
	}
	view, err := h.Store.saleView(ctx, h.Store.DB, sale, festival)
	return view, festival, err
}

// UpdateSale edits customer and notes.  Allowed in every state so staff
// can correct a receipt address after the fact.
func (h *SaleHandler) UpdateSale(c echo.Context) error {
	var req updateSaleReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, _ model.Festival) error {
		if req.Customer != nil {
			sale.Customer = *req.Customer
		}
		if req.Notes != nil {
			sale.Notes = *req.Notes
		}
		return h.Store.Sales.UpdateTx(ctx, tx, sale)
	})
}

// AddTickets sells tickets of the channel's types for one performance.
func (h *SaleHandler) AddTickets(c echo.Context) error {
	var req addTicketsReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, f model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, f.ID, req.PerformanceID)
		if err != nil {
			return err
		}
		if err := checkSalePerformance(*sale, perf); err != nil {
			return err
		}
		_, err = h.Store.issueTicketsTx(ctx, tx, f.ID, perf, ledger.ChannelOf(*sale), req.Tickets, saleOwner(*sale))
		return err
	})
}

// AddFringerTickets redeems eFringers for one performance.
func (h *SaleHandler) AddFringerTickets(c echo.Context) error {
	var req fringerTicketsReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, f model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, f.ID, req.PerformanceID)
		if err != nil {
			return err
		}
		if err := checkSalePerformance(*sale, perf); err != nil {
			return err
		}
		_, err = h.Store.redeemFringersTx(ctx, tx, f.ID, perf, req.FringerIDs, sale.ID, 0)
		return err
	})
}

// AddVolunteerTickets issues free volunteer admissions.
func (h *SaleHandler) AddVolunteerTickets(c echo.Context) error {
	var req volunteerReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, f model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, f.ID, req.PerformanceID)
		if err != nil {
			return err
		}
		if err := checkSalePerformance(*sale, perf); err != nil {
			return err
		}
		tt, err := h.Store.Program.GetTicketTypeByNameTx(ctx, tx, f.ID, model.TicketTypeVolunteer)
		if err != nil {
			return err
		}
		avail, err := h.Store.Program.LockAvailabilityTx(ctx, tx, perf.ID)
		if err != nil {
			return err
		}
		if err := ledger.Reserve(avail, req.Quantity); err != nil {
			return err
		}
		for n := 0; n < req.Quantity; n++ {
			saleID := sale.ID
			t := model.Ticket{PerformanceID: perf.ID, TicketTypeID: tt.ID, Cost: ledger.TicketCost(tt, false), SaleID: &saleID}
			if err := h.Store.Tickets.CreateTx(ctx, tx, &t); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetExtras replaces the button count and the paper fringers per type.
func (h *SaleHandler) SetExtras(c echo.Context) error {
	var req extrasReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, f model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		for _, line := range req.Fringers {
			ft, err := h.Store.Program.GetFringerTypeTx(ctx, tx, f.ID, line.FringerTypeID)
			if err != nil {
				return err
			}
			if err := h.Store.Fringers.DeletePaperFromSaleTx(ctx, tx, sale.ID, ft.ID); err != nil {
				return err
			}
			for n := 0; n < line.Quantity; n++ {
				saleID := sale.ID
				fr := model.Fringer{FringerTypeID: ft.ID, Name: ft.Name, Cost: ft.Price, SaleID: &saleID}
				if err := h.Store.Fringers.CreateTx(ctx, tx, &fr); err != nil {
					return err
				}
			}
		}
		sale.Buttons = req.Buttons
		return h.Store.Sales.UpdateTx(ctx, tx, sale)
	})
}

// AddPAYW records a pay-as-you-will contribution for a non-ticketed show,
// either in money or as one use of a fringer.
func (h *SaleHandler) AddPAYW(c echo.Context) error {
	var req paywReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.FringerID == nil && !req.Amount.IsPositive() {
		return writeError(c, h.Log, badRequest("amount must be positive"))
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, f model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		show, err := h.Store.Program.GetShowTx(ctx, tx, f.ID, req.ShowID)
		if err != nil {
			return err
		}
		if show.VenueID != nil {
			venue, err := h.Store.Festivals.GetVenue(ctx, f.ID, *show.VenueID)
			if err != nil {
				return err
			}
			if venue.IsTicketed {
				return ledger.ErrShowTicketed
			}
		}
		p := model.PayAsYouWill{SaleID: sale.ID, ShowID: show.ID, Amount: req.Amount}
		if req.FringerID != nil {
			fr, err := h.Store.Fringers.GetForUpdateTx(ctx, tx, f.ID, *req.FringerID)
			if err != nil {
				return err
			}
			if err := ledger.CheckFringer(fr, false); err != nil {
				return err
			}
			p.FringerID = &fr.ID
			p.Amount = decimal.Zero
		}
		return h.Store.PAYW.CreateTx(ctx, tx, &p)
	})
}

// DeletePAYW removes a pay-as-you-will entry.
func (h *SaleHandler) DeletePAYW(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, _ model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		return h.Store.PAYW.DeleteTx(ctx, tx, sale.ID, id)
	})
}

// DeleteTicket removes one ticket from an in-progress sale.
func (h *SaleHandler) DeleteTicket(c echo.Context) error {
	ticketID, err := pathID(c, "ticket")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, _ model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		return h.Store.Tickets.DeleteFromSaleTx(ctx, tx, sale.ID, ticketID)
	})
}

// DeletePerformance removes every ticket for one performance from a sale.
func (h *SaleHandler) DeletePerformance(c echo.Context) error {
	perfID, err := pathID(c, "perf")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.saleTx(c, func(ctx context.Context, tx *sql.Tx, sale *model.Sale, _ model.Festival) error {
		if err := h.Store.requireOpenSaleTx(ctx, tx, *sale); err != nil {
			return err
		}
		return h.Store.Tickets.DeletePerformanceFromSaleTx(ctx, tx, sale.ID, perfID)
	})
}

// CompleteCash takes cash for the sale total.
func (h *SaleHandler) CompleteCash(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view saleView
	var festival model.Festival
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		if festival, err = h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID); err != nil {
			return err
		}
		contents, err := h.Store.Sales.ContentsTx(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		if err := ledger.RequirePayable(sale, contents); err != nil {
			return err
		}
		if err := h.Store.venueOpenTx(ctx, tx, sale); err != nil {
			return err
		}
		total := ledger.SaleTotal(sale, contents, festival.ButtonPrice)
		if err := ledger.Complete(&sale, model.TransactionCash, total, clock()); err != nil {
			return err
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
	h.Log.Info("sale completed", "sale", view.UUID, "method", model.TransactionCash.String(), "amount", view.Amount.StringFixed(2))
	publishReceipt(ctx, h.Events, h.Log, saleReceipt(festival, view))
	return c.JSON(http.StatusOK, view)
}

// StartSquare moves the sale to payment-pending and returns the intent
// that opens the Square POS app for the total.
func (h *SaleHandler) StartSquare(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view saleView
	var intent string
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		festival, err := h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID)
		if err != nil {
			return err
		}
		contents, err := h.Store.Sales.ContentsTx(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		if err := ledger.RequirePayable(sale, contents); err != nil {
			return err
		}
		if err := h.Store.venueOpenTx(ctx, tx, sale); err != nil {
			return err
		}
		total := ledger.SaleTotal(sale, contents, festival.ButtonPrice)
		if err := ledger.BeginPayment(&sale, model.TransactionSquare, total); err != nil {
			return err
		}
		intent, err = h.Square.IntentURI(payment.SquareMetadata{Sale: sale.UUID, Festival: festival.ID}, total)
		if err != nil {
			return err
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
	return c.JSON(http.StatusOK, echo.Map{"sale": view, "intent": intent})
}

// SquareCallback receives the POS app's result.  The app calls back in the
// seller's browser, so the route is unauthenticated and the sale is found
// through the signed metadata it sent out.
func (h *SaleHandler) SquareCallback(c echo.Context) error {
	result, err := h.Square.ParseCallback(c.QueryParams())
	if err != nil {
		return writeError(c, h.Log, badRequest("%s", err.Error()))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view saleView
	var festival model.Festival
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, result.Metadata.Festival, result.Metadata.Sale)
		if err != nil {
			return err
		}
		if festival, err = h.Store.Festivals.GetByIDTx(ctx, tx, sale.FestivalID); err != nil {
			return err
		}
		if result.OK() {
			contents, err := h.Store.Sales.ContentsTx(ctx, tx, sale.ID)
			if err != nil {
				return err
			}
			total := ledger.SaleTotal(sale, contents, festival.ButtonPrice)
			if err := ledger.Complete(&sale, model.TransactionSquare, total, clock()); err != nil {
				return err
			}
			txID := result.ServerTransactionID
			sale.TransactionID = &txID
		} else if err := ledger.ResetPayment(&sale); err != nil {
			return err
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
	if !result.OK() {
		h.Log.Warn("card payment failed", "sale", view.UUID, "code", result.ErrorCode)
		return c.JSON(http.StatusOK, echo.Map{"sale": view, "warning": "Card payment failed: " + result.ErrorCode})
	}
	h.Log.Info("sale completed", "sale", view.UUID, "method", model.TransactionSquare.String(), "amount", view.Amount.StringFixed(2))
	publishReceipt(ctx, h.Events, h.Log, saleReceipt(festival, view))
	return c.JSON(http.StatusOK, echo.Map{"sale": view})
}

// CancelSale deletes an empty sale.  Any other sale keeps its row with a
// cancelled timestamp, but its tickets, PAYW entries and fringers are
// released so the seats can be sold again.
func (h *SaleHandler) CancelSale(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var view saleView
	deleted := false
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		sale, err := h.Store.Sales.GetByUUIDForUpdateTx(ctx, tx, who.FestivalID, c.Param("uuid"))
		if err != nil {
			return err
		}
		festival, err := h.Store.Festivals.GetByIDTx(ctx, tx, who.FestivalID)
		if err != nil {
			return err
		}
		contents, err := h.Store.Sales.ContentsTx(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		if err := h.Store.venueOpenTx(ctx, tx, sale); err != nil {
			return err
		}
		action, err := ledger.Cancel(&sale, contents, clock())
		if err != nil {
			return err
		}
		if action == ledger.CancelDelete {
			deleted = true
			return h.Store.Sales.DeleteTx(ctx, tx, sale.ID)
		}
		if err := h.Store.Sales.ReleaseItemsTx(ctx, tx, sale.ID); err != nil {
			return err
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
	if deleted {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, view)
}

// Receipt renders the sale as a PDF receipt.
func (h *SaleHandler) Receipt(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	view, festival, err := h.load(ctx, who.FestivalID, c.Param("uuid"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if who.Role == model.RoleCustomer && view.UserID != who.UserID {
		return writeError(c, h.Log, repository.ErrNotFound)
	}
	if view.State != ledger.SaleComplete {
		return c.JSON(http.StatusConflict, echo.Map{"error": "sale is not completed"})
	}
	pdf, err := report.ReceiptPDF(saleReceipt(festival, view))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
