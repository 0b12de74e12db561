package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-boxoffice/internal/handler"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All routes
// require a valid JWT and the CUSTOMER role.  Customers fill a basket, pay
// for it through hosted checkout, use their eFringers and cancel tickets.
// Starting a checkout is rate limited.
func RegisterCustomer(e *echo.Echo, b *handler.BasketHandler, co *handler.CheckoutHandler, jwtSecret string, limits *middleware.RateLimiter) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.GET("/basket", b.GetBasket)
	g.POST("/basket/tickets", b.AddTickets)
	g.POST("/basket/fringers", b.AddFringer)
	g.PUT("/basket/buttons", b.SetButtons)
	g.DELETE("/basket/tickets/:id", b.DeleteTicket)
	g.DELETE("/basket/performances/:id", b.DeletePerformance)
	g.DELETE("/basket/fringers/:id", b.DeleteFringer)

	g.POST("/checkout", co.Checkout, limits.Payment())
	g.POST("/checkout/:uuid/success", co.Success)
	g.POST("/checkout/:uuid/cancel", co.Cancel)

	g.GET("/my/tickets", b.MyTickets)
	g.POST("/my/tickets/:id/cancel", b.CancelTicket)
	g.GET("/my/fringers", b.MyFringers)
	g.POST("/my/fringers/use", b.UseFringers)
}
