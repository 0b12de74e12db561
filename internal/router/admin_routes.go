package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/handler"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// RegisterAdmin registers festival setup and reporting endpoints.  They
// require a valid JWT with the ADMIN role.  Successful setup writes drop
// the cached programme.
func RegisterAdmin(e *echo.Echo, p *handler.ProgramHandler, rep *handler.ReportHandler, jwtSecret string, cache *middleware.ProgrammeCache) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		cache.Invalidate(),
	)
	g.GET("/boxoffices", p.ListBoxOffices)
	g.POST("/boxoffices", p.CreateBoxOffice)
	g.POST("/venues", p.CreateVenue)
	g.POST("/shows", p.CreateShow)
	g.POST("/performances", p.CreatePerformance)
	g.POST("/ticket-types", p.CreateTicketType)
	g.POST("/fringer-types", p.CreateFringerType)
	g.POST("/staff", p.CreateStaff)

	g.GET("/reports/venues/:id", rep.VenueSummary)
	g.GET("/reports/shows/:id/tickets-by-type", rep.TicketsByType)
	g.GET("/reports/shows/:id/tickets-by-channel", rep.TicketsByChannel)
	g.GET("/reports/payments", rep.PaymentSummary)
}
