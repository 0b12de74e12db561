package handler

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/report"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// VenueHandler serves front-of-house: opening and closing performances
// and the admission list.
type VenueHandler struct {
	Store *Store
	Log   logger.Logger
}

func NewVenueHandler(store *Store, log logger.Logger) *VenueHandler {
	if store == nil || log == nil {
		panic("nil dependency passed to NewVenueHandler")
	}
	return &VenueHandler{Store: store, Log: log}
}

type notesReq struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// admission splits a performance's tickets for door staff.
type admission struct {
	Performance model.Performance `json:"performance"`
	Venue       []model.Ticket    `json:"venue"`
	NonVenue    []model.Ticket    `json:"non_venue"`
	Cancelled   []model.Ticket    `json:"cancelled"`
}

func splitAdmission(p model.Performance, tickets []model.Ticket) admission {
	a := admission{Performance: p, Venue: []model.Ticket{}, NonVenue: []model.Ticket{}, Cancelled: []model.Ticket{}}
	for _, t := range tickets {
		switch {
		case t.IsCancelled():
			a.Cancelled = append(a.Cancelled, t)
		case t.SaleVenue != nil:
			a.Venue = append(a.Venue, t)
		default:
			a.NonVenue = append(a.NonVenue, t)
		}
	}
	return a
}

// OpenPerformance records the opening count of a performance.
func (h *VenueHandler) OpenPerformance(c echo.Context) error {
	return h.checkpoint(c, true)
}

// ClosePerformance records the closing count of an open performance.
func (h *VenueHandler) ClosePerformance(c echo.Context) error {
	return h.checkpoint(c, false)
}

func (h *VenueHandler) checkpoint(c echo.Context, opening bool) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	perfID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	req, err := bindCount(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var cp model.Checkpoint
	err = repository.WithTx(ctx, h.Store.DB, func(tx *sql.Tx) error {
		perf, err := h.Store.Program.GetPerformanceTx(ctx, tx, who.FestivalID, perfID)
		if err != nil {
			return err
		}
		if perf.VenueID == nil {
			return ledger.ErrPerformanceMismatch
		}
		// serialises open and close of the same performance
		if _, err := h.Store.Program.LockAvailabilityTx(ctx, tx, perf.ID); err != nil {
			return err
		}
		open, closed, err := h.Store.Checkpoints.ForPerformance(ctx, tx, perf.ID)
		if err != nil {
			return err
		}
		uid := who.UserID
		cp = model.Checkpoint{
			UserID:   &uid,
			VenueID:  perf.VenueID,
			Cash:     req.Cash,
			Buttons:  req.Buttons,
			Fringers: req.Fringers,
			Notes:    req.Notes,
		}
		if opening {
			if err := ledger.CanOpen(open, closed); err != nil {
				return err
			}
			cp.OpenPerformanceID = &perf.ID
		} else {
			if err := ledger.CanClose(open, closed); err != nil {
				return err
			}
			cp.ClosePerformanceID = &perf.ID
		}
		return h.Store.Checkpoints.CreateTx(ctx, tx, &cp)
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cp)
}

// UpdateCheckpointNotes edits the notes of any checkpoint.  Counts are
// immutable once taken.
func (h *VenueHandler) UpdateCheckpointNotes(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req notesReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cp, err := h.Store.Checkpoints.Get(ctx, who.FestivalID, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Store.Checkpoints.UpdateNotes(ctx, cp.ID, req.Notes); err != nil {
		return writeError(c, h.Log, err)
	}
	cp.Notes = req.Notes
	return c.JSON(http.StatusOK, cp)
}

// Admission lists the tickets for a performance as JSON or PDF.
func (h *VenueHandler) Admission(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	perfID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	format := c.QueryParam("format")
	if format != "" && format != "json" && format != "pdf" {
		return writeError(c, h.Log, badRequest("format must be json or pdf"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	perf, err := h.Store.Program.GetPerformance(ctx, who.FestivalID, perfID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	tickets, err := h.Store.Tickets.ListAdmission(ctx, who.FestivalID, perf.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	a := splitAdmission(perf, tickets)
	if format != "pdf" {
		return c.JSON(http.StatusOK, a)
	}
	pdf, err := report.TablePDF(admissionTables(a)...)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func admissionTables(a admission) []report.Table {
	subtitle := fmt.Sprintf("%s, %s", a.Performance.ShowName, a.Performance.StartsAt.Format("Mon 2 Jan 15:04"))
	section := func(title string, tickets []model.Ticket) report.Table {
		t := report.Table{Title: title, Subtitle: subtitle, Headers: []string{"Ticket", "Customer", "Type", "Cost"}}
		for _, tk := range tickets {
			t.AddRow(tk.ID, tk.Customer, tk.TypeName, tk.Cost)
		}
		return t
	}
	return []report.Table{
		section("Venue tickets", a.Venue),
		section("Non-venue tickets", a.NonVenue),
		section("Cancelled tickets", a.Cancelled),
	}
}
