package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/payment"
	"github.com/iliyamo/festival-boxoffice/internal/queue"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func signIn(c echo.Context, role string) {
	c.Set(middleware.CtxUserID, uint64(7))
	c.Set(middleware.CtxFestivalID, uint64(1))
	c.Set(middleware.CtxRole, role)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"bad request", badRequest("invalid %s", "id"), http.StatusBadRequest, "invalid id"},
		{"unauthenticated", errUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{"ticket", fmt.Errorf("load: %w", ledger.ErrTicketNotFound), http.StatusNotFound, "Ticket not found"},
		{"not found", repository.ErrNotFound, http.StatusNotFound, "not found"},
		{"no rows", sql.ErrNoRows, http.StatusNotFound, "not found"},
		{"forbidden", repository.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"conflict", repository.ErrConflict, http.StatusConflict, "conflict"},
		{"invariant", ledger.ErrPerformanceClosed, http.StatusConflict, "performance is already closed"},
		{"insufficient", &ledger.InsufficientTicketsError{PerformanceID: 1, Available: 2}, http.StatusConflict,
			"There are only 2 tickets available for this performance."},
		{"not paid", payment.ErrNotPaid, http.StatusPaymentRequired, payment.ErrNotPaid.Error()},
		{"not configured", payment.ErrNotConfigured, http.StatusServiceUnavailable, payment.ErrNotConfigured.Error()},
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "")
			if err := writeError(c, logger.Nop(), tc.err); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.code {
				t.Errorf("code = %d, want %d", rec.Code, tc.code)
			}
			if got := decodeBody(t, rec)["error"]; got != tc.msg {
				t.Errorf("error = %v, want %q", got, tc.msg)
			}
		})
	}
}

func TestBindValid(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"tickets":[{"ticket_type_id":1,"quantity":101}]}`)
	var req addTicketsReq
	err := bindValid(c, &req)
	var re *requestError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want requestError", err)
	}
	want := map[string]string{
		"performance_id":      "is required",
		"tickets[0].quantity": "must be at most 100",
	}
	for k, v := range want {
		if re.fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q (all %v)", k, re.fields[k], v, re.fields)
		}
	}

	c, _ = newContext(http.MethodPost, "/", `{"performance_id":`)
	if err := bindValid(c, &req); err == nil || err.Error() != "invalid body" {
		t.Errorf("truncated body: %v", err)
	}

	c, _ = newContext(http.MethodPost, "/", `{"performance_id":3,"tickets":[{"ticket_type_id":2,"quantity":4}]}`)
	req = addTicketsReq{}
	if err := bindValid(c, &req); err != nil {
		t.Fatalf("valid body: %v", err)
	}
	if req.PerformanceID != 3 || req.Tickets[0].Quantity != 4 {
		t.Errorf("bound %+v", req)
	}
}

func TestPathID(t *testing.T) {
	for raw, ok := range map[string]bool{"7": true, "0": false, "abc": false, "": false, "-1": false} {
		c, _ := newContext(http.MethodGet, "/", "")
		c.SetParamNames("id")
		c.SetParamValues(raw)
		id, err := pathID(c, "id")
		if ok != (err == nil) {
			t.Errorf("pathID(%q) err = %v", raw, err)
		}
		if ok && id != 7 {
			t.Errorf("pathID(%q) = %d", raw, id)
		}
	}
}

func TestParseDay(t *testing.T) {
	now := time.Date(2026, 8, 14, 22, 30, 0, 0, time.UTC)
	d, err := parseDay("", now)
	if err != nil || !d.Equal(time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("empty: %v %v", d, err)
	}
	d, err = parseDay("20260803", now)
	if err != nil || !d.Equal(time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("20260803: %v %v", d, err)
	}
	if _, err := parseDay("2026-08-03", now); err == nil {
		t.Error("dashed date accepted")
	}
}

func TestCurrentCaller(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/", "")
	if _, err := currentCaller(c); !errors.Is(err, errUnauthenticated) {
		t.Errorf("anonymous: %v", err)
	}
	signIn(c, model.RoleVenue)
	who, err := currentCaller(c)
	if err != nil {
		t.Fatal(err)
	}
	if who.UserID != 7 || who.FestivalID != 1 || who.Role != model.RoleVenue {
		t.Errorf("caller = %+v", who)
	}
}

type recordingPublisher struct {
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestPublishReceipt(t *testing.T) {
	pub := &recordingPublisher{}
	ctx := context.Background()

	publishReceipt(ctx, pub, logger.Nop(), model.Receipt{Kind: model.ReceiptSale, Customer: "Walk-up at the door"})
	if len(pub.events) != 0 {
		t.Fatalf("published for a non-email customer")
	}
	publishReceipt(ctx, pub, logger.Nop(), model.Receipt{Kind: model.ReceiptRefund, Customer: "ann@example.com"})
	if len(pub.events) != 1 || pub.events[0].Type != queue.EventRefundCompleted {
		t.Fatalf("events = %+v", pub.events)
	}

	pub.err = errors.New("broker down")
	publishReceipt(ctx, pub, logger.Nop(), model.Receipt{Kind: model.ReceiptSale, Customer: "ann@example.com"})
	publishReceipt(ctx, nil, logger.Nop(), model.Receipt{Customer: "ann@example.com"})
}
