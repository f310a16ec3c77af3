package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/filmpass/internal/handler"
)

// RegisterBooking registers the seat selection flow of the caller's
// browser session.  Mutating routes go through limit; reads do not.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/booking")
	g.GET("", h.Get)
	g.POST("/showtime", h.ChooseShowtime, limit)
	g.POST("/seats/:id/toggle", h.ToggleSeat, limit)
	g.PUT("/ticket-type", h.SetTicketType, limit)
	g.POST("/submit", h.Submit, limit)

	// count-only booking, the backend picks the seats
	e.POST("/v1/bookings/quick", h.QuickBook, limit)
}

// RegisterPayment registers the provider return pages.
func RegisterPayment(e *echo.Echo, h *handler.PaymentHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/payment")
	g.GET("/success", h.Success, limit)
	g.GET("/cancel", h.Cancel)
}
