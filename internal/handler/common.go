package handler // handler defines http handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/payment"
	"github.com/iliyamo/festival-boxoffice/internal/queue"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// clock is swapped in tests.
var clock = time.Now

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Store groups the repositories shared by the ledger handlers.
type Store struct {
	DB          *sql.DB
	Festivals   *repository.FestivalRepo
	Program     *repository.ProgramRepo
	Sales       *repository.SaleRepo
	Tickets     *repository.TicketRepo
	Fringers    *repository.FringerRepo
	PAYW        *repository.PAYWRepo
	Baskets     *repository.BasketRepo
	Refunds     *repository.RefundRepo
	Checkpoints *repository.CheckpointRepo
	Donations   *repository.DonationRepo
	Reports     *repository.ReportRepo
}

// NewStore builds every repository on one connection pool.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("nil database passed to NewStore")
	}
	return &Store{
		DB:          db,
		Festivals:   repository.NewFestivalRepo(db),
		Program:     repository.NewProgramRepo(db),
		Sales:       repository.NewSaleRepo(db),
		Tickets:     repository.NewTicketRepo(db),
		Fringers:    repository.NewFringerRepo(db),
		PAYW:        repository.NewPAYWRepo(db),
		Baskets:     repository.NewBasketRepo(db),
		Refunds:     repository.NewRefundRepo(db),
		Checkpoints: repository.NewCheckpointRepo(db),
		Donations:   repository.NewDonationRepo(db),
		Reports:     repository.NewReportRepo(db),
	}
}

// EventPublisher sends completion events to the mail queue.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// querier matches both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	return contextID(c, middleware.CtxUserID)
}

// getFestivalID extracts the festival the token was issued for.
func getFestivalID(c echo.Context) (uint64, error) {
	return contextID(c, middleware.CtxFestivalID)
}

func contextID(c echo.Context, key string) (uint64, error) {
	switch t := c.Get(key).(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid %s in context", key)
}

// errUnauthenticated means the auth middleware left no usable identity.
var errUnauthenticated = errors.New("unauthorized")

// caller is the authenticated staff member or customer behind a request.
type caller struct {
	UserID     uint64
	FestivalID uint64
	Role       string
}

func currentCaller(c echo.Context) (caller, error) {
	uid, err := getUserID(c)
	if err != nil {
		return caller{}, errUnauthenticated
	}
	fid, err := getFestivalID(c)
	if err != nil {
		return caller{}, errUnauthenticated
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return caller{UserID: uid, FestivalID: fid, Role: role}, nil
}

// requestError is a client mistake answered with 400.
type requestError struct {
	msg    string
	fields map[string]string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// bindValid decodes the body into dst and runs its validate tags.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return badRequest("invalid body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return badRequest("invalid body")
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldName(fe)] = fieldMessage(fe)
		}
		return &requestError{msg: "validation failed", fields: fields}
	}
	return nil
}

// fieldName turns "addTicketsReq.tickets[0].quantity" into "tickets[0].quantity".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an e-mail address"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid %s", name)
	}
	return id, nil
}

// parseDay reads a YYYYMMDD date; empty means today.
func parseDay(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.ParseInLocation("20060102", raw, time.UTC)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q, want YYYYMMDD", raw)
	}
	return d, nil
}

func isEmail(s string) bool { return validate.Var(s, "required,email") == nil }

// writeError answers err with the status its kind maps to.  Unexpected
// errors are logged and hidden behind a generic 500.
func writeError(c echo.Context, log logger.Logger, err error) error {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		body := echo.Map{"error": reqErr.msg}
		if len(reqErr.fields) > 0 {
			body["fields"] = reqErr.fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, errUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, ledger.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case ledger.IsInvariant(err):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, payment.ErrNotPaid):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	case errors.Is(err, payment.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timeout"})
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// publishReceipt queues a receipt mail when the customer gave an e-mail
// address.  Failures are logged; the sale or refund is already committed.
func publishReceipt(ctx context.Context, events EventPublisher, log logger.Logger, rec model.Receipt) {
	if events == nil || !isEmail(rec.Customer) {
		return
	}
	if err := events.Publish(ctx, queue.ReceiptEvent(rec)); err != nil {
		log.Warn("publish receipt failed", "reference", rec.Reference, "error", err)
	}
}
