package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/handler"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// RegisterRoutes registers the unauthenticated health checks.  /readyz
// also pings the database.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers the authentication routes.  Register and login
// share the sign-in rate limit;
// /v1/me needs a valid access token of any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limits *middleware.RateLimiter) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limits.SignIn())
	g.POST("/login", a.Login, limits.SignIn())
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me, middleware.RequireRole(model.RoleAdmin, model.RoleBoxOffice, model.RoleVenue, model.RoleCustomer))
}

// RegisterPublic registers the festival programme for guests.  Responses
// go through the Redis cache except availability, which the cache config
// always bypasses.
func RegisterPublic(e *echo.Echo, p *handler.ProgramHandler, cache *middleware.ProgrammeCache) {
	g := e.Group("/v1", cache.Serve())
	g.GET("/festivals/:slug/shows", p.ListShows)
	g.GET("/festivals/:slug/ticket-types", p.ListTicketTypes)
	g.GET("/shows/:id/performances", p.ListPerformances)
	g.GET("/performances/:id/availability", p.Availability)
}

// RegisterPayments registers the routes payment providers and donors reach
// without a session.  The Square POS app calls back in the seller's
// browser, which may have lost its token by then.
func RegisterPayments(e *echo.Echo, s *handler.SaleHandler, co *handler.CheckoutHandler, limits *middleware.RateLimiter) {
	e.GET("/v1/square/callback", s.SquareCallback)
	e.POST("/v1/donations", co.Donate, limits.Payment())
	e.POST("/v1/donations/success", co.DonationSuccess)
}
