package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/recantodasaguas/reservation-api/internal/handler"
	"github.com/recantodasaguas/reservation-api/internal/middleware"
)

// Handlers groups everything the router needs to wire routes.
type Handlers struct {
	Reservation  *handler.ReservationHandler
	Availability *handler.AvailabilityHandler
	Webhook      *handler.WebhookHandler
	Admin        *handler.AdminHandler
	JWTSecret    string
}

// New builds the echo instance with all routes registered.  Public routes
// are unauthenticated (guests identify through reservation access codes),
// webhook ingress is guarded by the gateway token inside its handler, and
// the admin surface requires a JWT with the ADMIN role.
func New(h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORS())

	e.GET("/health", handler.Health)

	v1 := e.Group("/v1")

	// Public booking surface.
	v1.GET("/availability", h.Availability.Check)
	v1.POST("/reservations/quote", h.Reservation.Quote)
	v1.POST("/reservations", h.Reservation.Create)
	v1.GET("/reservations/:code", h.Reservation.Get)
	v1.POST("/reservations/:code/checkout", h.Reservation.RetryCheckout)
	v1.POST("/reservations/:code/cancel", h.Reservation.Cancel)

	// Gateway ingress.
	v1.POST("/webhooks/asaas", h.Webhook.Receive)

	// Back office.
	v1.POST("/admin/login", h.Admin.Login)
	admin := v1.Group("/admin", middleware.JWTAuth(h.JWTSecret), middleware.RequireRole("ADMIN"))
	admin.GET("/reservations", h.Admin.ListReservations)
	admin.POST("/reservations/:id/cancel", h.Admin.Cancel)
	admin.POST("/reservations/:id/checkout", h.Admin.RetryCheckout)
	admin.POST("/sweep", h.Admin.Sweep)
	admin.GET("/availability", h.Availability.ListBlocks)
	admin.POST("/availability", h.Availability.UpsertBlocks)
	admin.DELETE("/availability/:id", h.Availability.DeleteBlock)

	return e
}
