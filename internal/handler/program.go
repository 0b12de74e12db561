package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/config"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// ProgramHandler serves the public programme and the admin setup of a
// festival.
type ProgramHandler struct {
	Cfg   config.Config
	Store *Store
	Users *repository.UserRepo
	Log   logger.Logger
}

func NewProgramHandler(cfg config.Config, store *Store, users *repository.UserRepo, log logger.Logger) *ProgramHandler {
	if store == nil || users == nil || log == nil {
		panic("nil dependency passed to NewProgramHandler")
	}
	return &ProgramHandler{Cfg: cfg, Store: store, Users: users, Log: log}
}

// ----- public -----

// ListShows returns the festival programme.  Query: name, venue, page,
// page_size.
func (h *ProgramHandler) ListShows(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	festival, err := h.Store.Festivals.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size > 100 {
		size = 100
	}
	q := repository.ShowSearchQuery{
		FestivalID: festival.ID,
		Name:       strings.TrimSpace(c.QueryParam("name")),
		Venue:      strings.TrimSpace(c.QueryParam("venue")),
		Page:       page,
		PageSize:   size,
	}
	shows, total, err := h.Store.Program.SearchShows(ctx, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"festival": festival, "shows": shows, "total": total})
}

// ListTicketTypes returns ticket types, optionally for one channel, and
// the fringer types on sale online.
func (h *ProgramHandler) ListTicketTypes(c echo.Context) error {
	channel := c.QueryParam("channel")
	switch channel {
	case "", "online", "boxoffice", "venue":
	default:
		return writeError(c, h.Log, badRequest("channel must be online, boxoffice or venue"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	festival, err := h.Store.Festivals.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	types, err := h.Store.Program.ListTicketTypes(ctx, festival.ID, channel)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	fringers, err := h.Store.Program.ListFringerTypes(ctx, festival.ID, channel == "online")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket_types": types, "fringer_types": fringers})
}

// ListPerformances returns a show's performances.
func (h *ProgramHandler) ListPerformances(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	show, err := h.Store.Program.GetShowByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	perfs, err := h.Store.Program.ListPerformances(ctx, show.FestivalID, show.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show": show, "performances": perfs})
}

// Availability returns live ticket counts for a performance.  Never cached.
func (h *ProgramHandler) Availability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Store.Program.Availability(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ----- admin -----

type boxOfficeReq struct {
	Name string `json:"name" validate:"required,max=32"`
}

type venueReq struct {
	Name       string `json:"name" validate:"required,max=64"`
	Capacity   *int   `json:"capacity" validate:"omitempty,gte=0"`
	IsTicketed bool   `json:"is_ticketed"`
}

type showReq struct {
	Name    string  `json:"name" validate:"required,max=128"`
	VenueID *uint64 `json:"venue_id"`
}

type performanceReq struct {
	ShowID   uint64    `json:"show_id" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	Notes    string    `json:"notes" validate:"max=2000"`
}

type ticketTypeReq struct {
	Name        string          `json:"name" validate:"required,max=32"`
	SeqNo       int             `json:"seqno"`
	Price       decimal.Decimal `json:"price"`
	Payment     decimal.Decimal `json:"payment"`
	IsOnline    bool            `json:"is_online"`
	IsBoxOffice bool            `json:"is_boxoffice"`
	IsVenue     bool            `json:"is_venue"`
	Rules       string          `json:"rules"`
}

type fringerTypeReq struct {
	Name         string          `json:"name" validate:"required,max=32"`
	Shows        int             `json:"shows" validate:"required,min=1,max=100"`
	Price        decimal.Decimal `json:"price"`
	IsOnline     bool            `json:"is_online"`
	Rules        string          `json:"rules"`
	TicketTypeID uint64          `json:"ticket_type_id" validate:"required"`
}

type staffReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=ADMIN BOXOFFICE VENUE"`
}

func nonNegative(fields map[string]decimal.Decimal) error {
	bad := map[string]string{}
	for name, v := range fields {
		if v.IsNegative() {
			bad[name] = "must be at least 0"
		}
	}
	if len(bad) > 0 {
		return &requestError{msg: "validation failed", fields: bad}
	}
	return nil
}

// CreateBoxOffice adds a box office to the caller's festival.
func (h *ProgramHandler) CreateBoxOffice(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req boxOfficeReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bo := model.BoxOffice{FestivalID: who.FestivalID, Name: req.Name}
	if err := h.Store.Festivals.CreateBoxOffice(ctx, &bo); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, bo)
}

// ListBoxOffices lists the festival's box offices.
func (h *ProgramHandler) ListBoxOffices(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Store.Festivals.ListBoxOffices(ctx, who.FestivalID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"boxoffices": list})
}

// CreateVenue adds a venue.  A ticketed venue needs a capacity.
func (h *ProgramHandler) CreateVenue(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req venueReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.IsTicketed && req.Capacity == nil {
		return writeError(c, h.Log, &requestError{msg: "validation failed", fields: map[string]string{"capacity": "is required"}})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	v := model.Venue{FestivalID: who.FestivalID, Name: req.Name, Capacity: req.Capacity, IsTicketed: req.IsTicketed}
	if err := h.Store.Festivals.CreateVenue(ctx, &v); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// CreateShow adds a show, optionally at a venue of the festival.
func (h *ProgramHandler) CreateShow(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req showReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s := model.Show{FestivalID: who.FestivalID, VenueID: req.VenueID, Name: req.Name}
	if req.VenueID != nil {
		v, err := h.Store.Festivals.GetVenue(ctx, who.FestivalID, *req.VenueID)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		s.VenueName = v.Name
	}
	if err := h.Store.Program.CreateShow(ctx, &s); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// CreatePerformance schedules a performance of a show.
func (h *ProgramHandler) CreatePerformance(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req performanceReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	show, err := h.Store.Program.GetShow(ctx, who.FestivalID, req.ShowID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p := model.Performance{ShowID: show.ID, ShowName: show.Name, VenueID: show.VenueID, StartsAt: req.StartsAt.UTC(), Notes: req.Notes}
	if err := h.Store.Program.CreatePerformance(ctx, &p); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// CreateTicketType adds a ticket type.
func (h *ProgramHandler) CreateTicketType(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req ticketTypeReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := nonNegative(map[string]decimal.Decimal{"price": req.Price, "payment": req.Payment}); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	t := model.TicketType{
		FestivalID:  who.FestivalID,
		Name:        req.Name,
		SeqNo:       req.SeqNo,
		Price:       req.Price,
		Payment:     req.Payment,
		IsOnline:    req.IsOnline,
		IsBoxOffice: req.IsBoxOffice,
		IsVenue:     req.IsVenue,
		Rules:       req.Rules,
	}
	if err := h.Store.Program.CreateTicketType(ctx, &t); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// CreateFringerType adds a fringer type redeemed as the given ticket type.
func (h *ProgramHandler) CreateFringerType(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req fringerTypeReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := nonNegative(map[string]decimal.Decimal{"price": req.Price}); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.Store.Program.GetTicketTypeTx(ctx, h.Store.DB, who.FestivalID, req.TicketTypeID); err != nil {
		return writeError(c, h.Log, err)
	}
	f := model.FringerType{
		FestivalID:   who.FestivalID,
		Name:         req.Name,
		Shows:        req.Shows,
		Price:        req.Price,
		IsOnline:     req.IsOnline,
		Rules:        req.Rules,
		TicketTypeID: req.TicketTypeID,
	}
	if err := h.Store.Program.CreateFringerType(ctx, &f); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// CreateStaff adds an admin, box office or venue account to the festival.
func (h *ProgramHandler) CreateStaff(c echo.Context) error {
	who, err := currentCaller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req staffReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Users.Create(ctx, who.FestivalID, req.Email, req.Password, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return writeError(c, h.Log, err)
	}
	h.Log.Info("staff account created", "user", id, "role", req.Role, "by", who.UserID)
	return c.JSON(http.StatusCreated, userPart{ID: id, Email: strings.ToLower(strings.TrimSpace(req.Email)), Role: req.Role})
}
