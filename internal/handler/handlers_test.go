package handler

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// These requests are all rejected before any repository is touched, so the
// handlers run against an empty Store.

func TestRequestsRejectedBeforeStorage(t *testing.T) {
	store := &Store{}
	log := logger.Nop()
	sales := &SaleHandler{Store: store, Log: log}
	refunds := &RefundHandler{Store: store, Log: log}
	venues := &VenueHandler{Store: store, Log: log}
	program := &ProgramHandler{Store: store, Log: log}
	reports := &ReportHandler{Store: store, Log: log}
	basket := &BasketHandler{Store: store, Log: log}

	cases := []struct {
		name    string
		method  string
		target  string
		body    string
		role    string
		params  map[string]string
		handler echo.HandlerFunc
		code    int
		field   string
	}{
		{name: "sale tickets without lines", method: http.MethodPost, target: "/", body: `{"performance_id":1,"tickets":[]}`,
			role: model.RoleBoxOffice, handler: sales.AddTickets, code: http.StatusBadRequest, field: "tickets"},
		{name: "too many fringers", method: http.MethodPost, target: "/",
			body: `{"performance_id":1,"fringer_ids":[1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20,21]}`,
			role: model.RoleBoxOffice, handler: sales.AddFringerTickets, code: http.StatusBadRequest, field: "fringer_ids"},
		{name: "refund ticket id missing", method: http.MethodPost, target: "/", body: `{}`,
			role: model.RoleBoxOffice, handler: refunds.AddTicket, code: http.StatusBadRequest, field: "ticket_id"},
		{name: "negative checkpoint cash", method: http.MethodPost, target: "/", body: `{"cash":-5,"buttons":3}`,
			role: model.RoleBoxOffice, params: map[string]string{"id": "1"}, handler: refunds.Checkpoint,
			code: http.StatusBadRequest, field: "cash"},
		{name: "bad box office id", method: http.MethodGet, target: "/", role: model.RoleBoxOffice,
			params: map[string]string{"id": "x"}, handler: refunds.Summary, code: http.StatusBadRequest},
		{name: "negative venue buttons", method: http.MethodPost, target: "/", body: `{"cash":0,"buttons":-1}`,
			role: model.RoleVenue, params: map[string]string{"id": "4"}, handler: venues.OpenPerformance,
			code: http.StatusBadRequest, field: "buttons"},
		{name: "admission format", method: http.MethodGet, target: "/?format=csv", role: model.RoleVenue,
			params: map[string]string{"id": "4"}, handler: venues.Admission, code: http.StatusBadRequest},
		{name: "anonymous admission", method: http.MethodGet, target: "/", params: map[string]string{"id": "4"},
			handler: venues.Admission, code: http.StatusUnauthorized},
		{name: "unknown channel", method: http.MethodGet, target: "/?channel=phone",
			params: map[string]string{"slug": "fringe"}, handler: program.ListTicketTypes, code: http.StatusBadRequest},
		{name: "ticketed venue without capacity", method: http.MethodPost, target: "/", body: `{"name":"Hall","is_ticketed":true}`,
			role: model.RoleAdmin, handler: program.CreateVenue, code: http.StatusBadRequest, field: "capacity"},
		{name: "staff cannot be customer", method: http.MethodPost, target: "/",
			body: `{"email":"door@example.com","password":"longenough","role":"CUSTOMER"}`,
			role: model.RoleAdmin, handler: program.CreateStaff, code: http.StatusBadRequest, field: "role"},
		{name: "negative ticket price", method: http.MethodPost, target: "/", body: `{"name":"Adult","price":-1}`,
			role: model.RoleAdmin, handler: program.CreateTicketType, code: http.StatusBadRequest, field: "price"},
		{name: "report range reversed", method: http.MethodGet, target: "/?from=20260810&to=20260801",
			role: model.RoleAdmin, handler: reports.PaymentSummary, code: http.StatusBadRequest},
		{name: "report format", method: http.MethodGet, target: "/?format=pdf", role: model.RoleAdmin,
			params: map[string]string{"id": "2"}, handler: reports.TicketsByType, code: http.StatusBadRequest},
		{name: "summary date", method: http.MethodGet, target: "/?date=yesterday", role: model.RoleAdmin,
			params: map[string]string{"id": "2"}, handler: reports.BoxOfficeSummary, code: http.StatusBadRequest},
		{name: "too many buttons", method: http.MethodPut, target: "/", body: `{"buttons":101}`,
			role: model.RoleCustomer, handler: basket.SetButtons, code: http.StatusBadRequest, field: "buttons"},
		{name: "long fringer name", method: http.MethodPost, target: "/",
			body: `{"fringer_type_id":1,"name":"a name far too long for any fringer card"}`,
			role: model.RoleCustomer, handler: basket.AddFringer, code: http.StatusBadRequest, field: "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(tc.method, tc.target, tc.body)
			if tc.role != "" {
				signIn(c, tc.role)
			}
			var names, values []string
			for k, v := range tc.params {
				names = append(names, k)
				values = append(values, v)
			}
			c.SetParamNames(names...)
			c.SetParamValues(values...)
			if err := tc.handler(c); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.code {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tc.code, rec.Body.String())
			}
			if tc.field == "" {
				return
			}
			fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
			if _, ok := fields[tc.field]; !ok {
				t.Errorf("fields = %v, want %q", fields, tc.field)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz", "")
	if err := Health(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMeRequiresIdentity(t *testing.T) {
	h := &AuthHandler{Log: logger.Nop()}
	c, rec := newContext(http.MethodGet, "/v1/me", "")
	if err := h.Me(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous me = %d", rec.Code)
	}

	c, rec = newContext(http.MethodGet, "/v1/me", "")
	signIn(c, model.RoleCustomer)
	if err := h.Me(c); err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, rec)
	if body["role"] != model.RoleCustomer || body["festival_id"] != float64(1) {
		t.Errorf("me = %v", body)
	}
}

func TestLogoutNeedsSomething(t *testing.T) {
	h := &AuthHandler{Log: logger.Nop()}
	c, rec := newContext(http.MethodPost, "/v1/auth/logout", `{}`)
	if err := h.Logout(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("logout = %d", rec.Code)
	}
}
