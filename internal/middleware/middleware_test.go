package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/config"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/utils"
)

const secret = "test-secret"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Use(RequestLogger(logger.Nop()))
	g := e.Group("/v1", JWTAuth(secret))
	g.GET("/whoami", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"user":     c.Get(CtxUserID),
			"festival": c.Get(CtxFestivalID),
			"id":       userID(c),
		})
	})
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole("ADMIN"))
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, utils.Claims{UserID: 42, FestivalID: 3, Role: role}, 5)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func do(e *echo.Echo, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := newServer(t)

	if rec := do(e, "/v1/whoami", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
	if rec := do(e, "/v1/whoami", "Bearer garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", rec.Code)
	}
	rec := do(e, "/v1/whoami", bearer(t, "CUSTOMER"))
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: %d %s", rec.Code, rec.Body)
	}
	if want := `{"festival":3,"id":"42","user":42}`; rec.Body.String() != want+"\n" {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestRequireRole(t *testing.T) {
	e := newServer(t)
	if rec := do(e, "/v1/admin", bearer(t, "CUSTOMER")); rec.Code != http.StatusForbidden {
		t.Errorf("customer: %d", rec.Code)
	}
	if rec := do(e, "/v1/admin", bearer(t, "ADMIN")); rec.Code != http.StatusNoContent {
		t.Errorf("admin: %d", rec.Code)
	}
}

func TestUserIDGuest(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if userID(c) != "guest" {
		t.Fatal("expected guest")
	}
}

func TestCacheAndRateLimitPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	cache := NewProgrammeCache(config.CacheConfig{Enabled: true}, nil, logger.Nop())
	limits := NewRateLimiter(config.RateLimitConfig{Enabled: true}, nil, logger.Nop())
	calls := 0
	e.GET("/v1/festivals/:slug/shows", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}, cache.Serve(), limits.SignIn())

	for i := 0; i < 3; i++ {
		rec := do(e, "/v1/festivals/fringe/shows", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d", rec.Code)
		}
		if rec.Header().Get("X-Cache") != "BYPASS" {
			t.Errorf("X-Cache = %q", rec.Header().Get("X-Cache"))
		}
	}
	if calls != 3 {
		t.Fatalf("handler called %d times", calls)
	}
}

func TestEntryKey(t *testing.T) {
	one := httptest.NewRequest(http.MethodGet, "/v1/shows/1/performances", nil)
	two := httptest.NewRequest(http.MethodGet, "/v1/shows/2/performances", nil)
	if entryKey("p", 0, one) == entryKey("p", 0, two) {
		t.Error("different shows share a cache key")
	}
	if entryKey("p", 0, one) == entryKey("p", 1, one) {
		t.Error("a new programme generation reuses old entries")
	}
	paged := httptest.NewRequest(http.MethodGet, "/v1/shows/1/performances?page=2", nil)
	if entryKey("p", 0, one) == entryKey("p", 0, paged) {
		t.Error("query string ignored")
	}
}

func TestBodyRecorderStopsCopyingPastLimit(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK, max: 8}
	_, _ = rec.Write([]byte("{\"a\":"))
	if rec.overflow {
		t.Fatal("overflow before the limit")
	}
	_, _ = rec.Write([]byte("[1,2,3]}"))
	if !rec.overflow || rec.buf.Len() != 0 {
		t.Fatalf("overflow=%v buffered=%d", rec.overflow, rec.buf.Len())
	}
	if w.Body.String() != `{"a":[1,2,3]}` {
		t.Errorf("client got %q", w.Body.String())
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	if got := rateKey("rl", "signin", c); got != "rl:signin:ip:203.0.113.9" {
		t.Errorf("guest key = %q", got)
	}
	c.Set(CtxUserID, uint64(42))
	if got := rateKey("rl", "payment", c); got != "rl:payment:user:42" {
		t.Errorf("user key = %q", got)
	}
}
