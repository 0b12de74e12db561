package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/handler"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// StaffHandlers groups the handlers behind the box office and venue routes.
type StaffHandlers struct {
	Sales   *handler.SaleHandler
	Refunds *handler.RefundHandler
	Venues  *handler.VenueHandler
	Reports *handler.ReportHandler
}

// RegisterStaff registers box office and venue endpoints under /v1.  Admins
// may use every staff route.
func RegisterStaff(e *echo.Echo, h StaffHandlers, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)

	// box office
	bo := e.Group("/v1", auth, middleware.RequireRole(model.RoleBoxOffice, model.RoleAdmin))
	bo.POST("/boxoffices/:id/open", h.Sales.OpenBoxOffice)
	bo.POST("/boxoffices/:id/sales", h.Sales.StartBoxOfficeSale)
	bo.POST("/boxoffices/:id/refunds", h.Refunds.StartRefund)
	bo.GET("/boxoffices/:id/summary", h.Refunds.Summary)
	bo.POST("/boxoffices/:id/checkpoints", h.Refunds.Checkpoint)
	bo.GET("/boxoffices/:id/reconciliation", h.Reports.BoxOfficeSummary)

	bo.GET("/refunds/:uuid", h.Refunds.GetRefund)
	bo.POST("/refunds/:uuid/tickets", h.Refunds.AddTicket)
	bo.DELETE("/refunds/:uuid/tickets/:ticket", h.Refunds.RemoveTicket)
	bo.POST("/refunds/:uuid/complete", h.Refunds.CompleteRefund)
	bo.POST("/refunds/:uuid/cancel", h.Refunds.CancelRefund)
	bo.GET("/refunds/:uuid/receipt", h.Refunds.Receipt)

	// venue
	v := e.Group("/v1", auth, middleware.RequireRole(model.RoleVenue, model.RoleAdmin))
	v.POST("/performances/:id/open", h.Venues.OpenPerformance)
	v.POST("/performances/:id/close", h.Venues.ClosePerformance)
	v.POST("/performances/:id/sales", h.Sales.StartVenueSale)
	v.GET("/performances/:id/admission", h.Venues.Admission)

	// sales and checkpoints from either counter
	s := e.Group("/v1", auth, middleware.RequireRole(model.RoleBoxOffice, model.RoleVenue, model.RoleAdmin))
	s.PATCH("/checkpoints/:id", h.Venues.UpdateCheckpointNotes)
	s.GET("/sales/:uuid", h.Sales.GetSale)
	s.PATCH("/sales/:uuid", h.Sales.UpdateSale)
	s.POST("/sales/:uuid/tickets", h.Sales.AddTickets)
	s.POST("/sales/:uuid/fringer-tickets", h.Sales.AddFringerTickets)
	s.POST("/sales/:uuid/volunteer-tickets", h.Sales.AddVolunteerTickets)
	s.PUT("/sales/:uuid/extras", h.Sales.SetExtras)
	s.POST("/sales/:uuid/payw", h.Sales.AddPAYW)
	s.DELETE("/sales/:uuid/payw/:id", h.Sales.DeletePAYW)
	s.DELETE("/sales/:uuid/tickets/:ticket", h.Sales.DeleteTicket)
	s.DELETE("/sales/:uuid/performances/:perf", h.Sales.DeletePerformance)
	s.POST("/sales/:uuid/complete", h.Sales.CompleteCash)
	s.POST("/sales/:uuid/square", h.Sales.StartSquare)
	s.POST("/sales/:uuid/cancel", h.Sales.CancelSale)

	// receipts are also fetched by the customer who paid online
	r := e.Group("/v1", auth, middleware.RequireRole(model.RoleBoxOffice, model.RoleVenue, model.RoleAdmin, model.RoleCustomer))
	r.GET("/sales/:uuid/receipt", h.Sales.Receipt)
}
