package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/report"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// ReportHandler serves the reconciliation and sales reports.
type ReportHandler struct {
	Store *Store
	Log   logger.Logger
}

func NewReportHandler(store *Store, log logger.Logger) *ReportHandler {
	if store == nil || log == nil {
		panic("nil dependency passed to NewReportHandler")
	}
	return &ReportHandler{Store: store, Log: log}
}

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportFormat reads ?format=, defaulting to json.
func reportFormat(c echo.Context, allowed string) (string, error) {
	f := c.QueryParam("format")
	if f == "" || f == "json" {
		return "json", nil
	}
	if f != allowed {
		return "", badRequest("format must be json or %s", allowed)
	}
	return f, nil
}

// venuePerformance is one performance's open/close reconciliation.
type venuePerformance struct {
	Performance model.Performance `json:"performance"`
	Open        *model.Checkpoint `json:"open"`
	Close       *model.Checkpoint `json:"close"`
	Sales       ledger.Counts     `json:"sales"`
	Variance    *ledger.Counts    `json:"variance"`
}

// BoxOfficeSummary reconciles each period between consecutive checkpoints
// at a box office on one day.  Query: date (YYYYMMDD), format (json|pdf).
func (h *ReportHandler) BoxOfficeSummary(c echo.Context) error {
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
	format, err := reportFormat(c, "pdf")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bo, err := h.Store.Festivals.GetBoxOffice(ctx, who.FestivalID, boxOfficeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	checkpoints, err := h.Store.Checkpoints.ListBoxOfficeDay(ctx, bo.ID, day)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	periods := ledger.Periods(checkpoints)
	for i := range periods {
		sales, refunds, err := h.Store.Reports.BoxOfficeTotals(ctx, bo.ID, periods[i].Open.CreatedAt, periods[i].Close.CreatedAt)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		periods[i].Reconcile(sales, refunds)
	}
	summary, err := h.Store.Reports.DaySummary(ctx, bo.ID, day)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if periods == nil {
		periods = []ledger.Period{}
	}
	if format == "json" {
		return c.JSON(http.StatusOK, echo.Map{
			"boxoffice": bo,
			"date":      day.Format("2006-01-02"),
			"periods":   periods,
			"summary":   summary,
		})
	}
	pdf, err := report.TablePDF(boxOfficeTables(bo, day, periods, summary)...)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func boxOfficeTables(bo model.BoxOffice, day time.Time, periods []ledger.Period, s ledger.DaySummary) []report.Table {
	subtitle := fmt.Sprintf("%s, %s", bo.Name, day.Format("Mon 2 Jan 2006"))
	recon := report.Table{
		Title:    "Checkpoint reconciliation",
		Subtitle: subtitle,
		Headers:  []string{"From", "To", "", "Cash", "Buttons", "Fringers"},
	}
	for _, p := range periods {
		from, to := p.Open.CreatedAt, p.Close.CreatedAt
		recon.AddRow(from, to, "Open", p.Open.Cash, p.Open.Buttons, p.Open.Fringers)
		recon.AddRow(nil, nil, "Sales", p.Sales.Cash, p.Sales.Buttons, p.Sales.Fringers)
		recon.AddRow(nil, nil, "Refunds", p.Refunds.Cash, p.Refunds.Buttons, p.Refunds.Fringers)
		recon.AddRow(nil, nil, "Close", p.Close.Cash, p.Close.Buttons, p.Close.Fringers)
		recon.AddRow(nil, nil, "Variance", p.Variance.Cash, p.Variance.Buttons, p.Variance.Fringers)
	}
	totals := report.Table{Title: "Day summary", Subtitle: subtitle, Headers: []string{"", "Count", "Total"}}
	totals.AddRow("Sales", s.Sales.Count, s.Sales.Total)
	totals.AddRow("Refunds", s.Refunds.Count, s.Refunds.Total)
	totals.AddRow("Balance", nil, s.Balance)
	return []report.Table{recon, totals}
}

// VenueSummary reconciles every performance at a venue on one day.  Query:
// date (YYYYMMDD), format (json|pdf).
func (h *ReportHandler) VenueSummary(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	venueID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	day, err := parseDay(c.QueryParam("date"), clock())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	format, err := reportFormat(c, "pdf")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	venue, err := h.Store.Festivals.GetVenue(ctx, who.FestivalID, venueID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	perfs, err := h.Store.Program.ListVenuePerformances(ctx, venue.ID, day)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]venuePerformance, 0, len(perfs))
	for _, p := range perfs {
		open, closed, err := h.Store.Checkpoints.ForPerformance(ctx, h.Store.DB, p.ID)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		vp := venuePerformance{Performance: p, Open: open, Close: closed}
		if open != nil && closed != nil {
			sales, err := h.Store.Reports.VenueTotals(ctx, venue.ID, open.CreatedAt, closed.CreatedAt)
			if err != nil {
				return writeError(c, h.Log, err)
			}
			v := ledger.Variance(ledger.CountsOf(*open), ledger.CountsOf(*closed), sales, ledger.Counts{})
			vp.Sales = sales
			vp.Variance = &v
		}
		out = append(out, vp)
	}
	if format == "json" {
		return c.JSON(http.StatusOK, echo.Map{"venue": venue, "date": day.Format("2006-01-02"), "performances": out})
	}
	pdf, err := report.TablePDF(venueTable(venue, day, out))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func venueTable(v model.Venue, day time.Time, perfs []venuePerformance) report.Table {
	t := report.Table{
		Title:    "Venue reconciliation",
		Subtitle: fmt.Sprintf("%s, %s", v.Name, day.Format("Mon 2 Jan 2006")),
		Headers:  []string{"Performance", "", "Cash", "Buttons", "Fringers"},
	}
	for _, p := range perfs {
		label := fmt.Sprintf("%s %s", p.Performance.StartsAt.Format("15:04"), p.Performance.ShowName)
		if p.Open == nil || p.Close == nil {
			t.AddRow(label, "Not reconciled", nil, nil, nil)
			continue
		}
		t.AddRow(label, "Open", p.Open.Cash, p.Open.Buttons, p.Open.Fringers)
		t.AddRow(nil, "Sales", p.Sales.Cash, p.Sales.Buttons, p.Sales.Fringers)
		t.AddRow(nil, "Close", p.Close.Cash, p.Close.Buttons, p.Close.Fringers)
		t.AddRow(nil, "Variance", p.Variance.Cash, p.Variance.Buttons, p.Variance.Fringers)
	}
	return t
}

// TicketsByType counts a show's tickets per performance and type.
func (h *ReportHandler) TicketsByType(c echo.Context) error {
	return h.showReport(c, func(c echo.Context, show model.Show) (report.Table, error) {
		ctx, cancel := requestContext(c)
		defer cancel()
		rows, err := h.Store.Reports.TicketsByType(ctx, show.FestivalID, show.ID)
		if err != nil {
			return report.Table{}, err
		}
		return ticketsByTypeTable(show, rows), nil
	})
}

func ticketsByTypeTable(show model.Show, rows []repository.TicketTypeCount) report.Table {
	t := report.Table{Title: "Tickets by type", Subtitle: show.Name, Headers: []string{"Performance", "Type", "Tickets", "Value"}}
	for _, r := range rows {
		t.AddRow(r.StartsAt, r.TicketType, r.Count, r.Value)
	}
	return t
}

// TicketsByChannel counts a show's tickets per performance and channel.
func (h *ReportHandler) TicketsByChannel(c echo.Context) error {
	return h.showReport(c, func(c echo.Context, show model.Show) (report.Table, error) {
		ctx, cancel := requestContext(c)
		defer cancel()
		rows, err := h.Store.Reports.TicketsByChannel(ctx, show.FestivalID, show.ID)
		if err != nil {
			return report.Table{}, err
		}
		return ticketsByChannelTable(show, rows), nil
	})
}

func ticketsByChannelTable(show model.Show, rows []repository.ChannelCount) report.Table {
	t := report.Table{Title: "Tickets by channel", Subtitle: show.Name, Headers: []string{"Performance", "Online", "Box office", "Venue", "Total"}}
	for _, r := range rows {
		t.AddRow(r.StartsAt, r.Online, r.BoxOffice, r.Venue, r.Total)
	}
	return t
}

// showReport loads the show in :id and renders build's table as JSON or XLSX.
func (h *ReportHandler) showReport(c echo.Context, build func(echo.Context, model.Show) (report.Table, error)) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	showID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	format, err := reportFormat(c, "xlsx")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	show, err := h.Store.Program.GetShow(ctx, who.FestivalID, showID)
	cancel()
	if err != nil {
		return writeError(c, h.Log, err)
	}
	t, err := build(c, show)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.tableResponse(c, format, t)
}

func (h *ReportHandler) tableResponse(c echo.Context, format string, t report.Table) error {
	if t.Rows == nil {
		t.Rows = [][]any{}
	}
	if format == "json" {
		return c.JSON(http.StatusOK, t)
	}
	xlsx, err := report.TableXLSX(t)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, xlsxType, xlsx)
}

// PaymentSummary totals completed sales by day and payment method.  Query:
// from and to (YYYYMMDD, to inclusive, both default today), format
// (json|xlsx).
func (h *ReportHandler) PaymentSummary(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	now := clock()
	from, err := parseDay(c.QueryParam("from"), now)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	to, err := parseDay(c.QueryParam("to"), now)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if to.Before(from) {
		return writeError(c, h.Log, badRequest("to must not be before from"))
	}
	format, err := reportFormat(c, "xlsx")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	lines, err := h.Store.Reports.PaymentSummary(ctx, who.FestivalID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.tableResponse(c, format, paymentTable(from, to, lines))
}

func paymentTable(from, to time.Time, lines []repository.PaymentLine) report.Table {
	t := report.Table{
		Title:    "Payment summary",
		Subtitle: fmt.Sprintf("%s to %s", from.Format("2 Jan 2006"), to.Format("2 Jan 2006")),
		Headers:  []string{"Day", "Method", "Sales", "Amount", "Fees"},
	}
	for _, l := range lines {
		t.AddRow(l.Day, l.Method, l.Count, l.Amount, l.Fees)
	}
	return t
}
