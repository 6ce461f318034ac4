package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recantodasaguas/reservation-api/internal/booking"
	"github.com/recantodasaguas/reservation-api/internal/repository"
	"github.com/recantodasaguas/reservation-api/internal/utils"
)

// AdminHandler serves operator login and the back-office reservation
// endpoints.  Everything except Login sits behind JWT auth with the ADMIN
// role.
type AdminHandler struct {
	Svc          *booking.Service
	Reservations *repository.ReservationRepo
	Guests       *repository.GuestRepo
	JWTSecret    string
	AccessTTLMin int
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc *booking.Service, reservations *repository.ReservationRepo, guests *repository.GuestRepo, secret string, ttlMin int) *AdminHandler {
	if svc == nil || reservations == nil || guests == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{
		Svc:          svc,
		Reservations: reservations,
		Guests:       guests,
		JWTSecret:    secret,
		AccessTTLMin: ttlMin,
	}
}

// Login handles POST /v1/admin/login.  Credential failures share one
// message so the endpoint does not leak which emails exist.
func (h *AdminHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil || body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}
	admin, err := h.Guests.FindAdminByEmail(c.Request().Context(), body.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	if !utils.VerifyPassword(admin.PasswordHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	token, err := utils.NewAccessToken(h.JWTSecret, admin.ID, "ADMIN", h.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token.Token,
		"expires_at":   token.Exp.Format(time.RFC3339),
	})
}

// ListReservations handles GET /v1/admin/reservations.  Defaults to the
// next 31 days when no from/to range is given.
func (h *AdminHandler) ListReservations(c echo.Context) error {
	from, to, err := rangeParams(c, 31)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	list, err := h.Reservations.ListRange(c.Request().Context(), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list reservations"})
	}
	items := make([]echo.Map, 0, len(list))
	for i := range list {
		item := reservationJSON(&list[i], nil)
		item["id"] = list[i].ID
		item["guest_email"] = list[i].GuestEmail
		item["guest_phone"] = list[i].GuestPhone
		items = append(items, item)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Cancel handles POST /v1/admin/reservations/:id/cancel.  Administrators
// may cancel any non-terminal reservation; paid cancellations also void
// the gateway charge and release cabin capacity.
func (h *AdminHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	actor := booking.Actor{Admin: true, Label: adminLabel(c)}
	if err := h.Svc.CancelReservation(c.Request().Context(), id, body.Reason, actor); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RetryCheckout handles POST /v1/admin/reservations/:id/checkout, letting
// an operator re-trigger the gateway charge on a guest's behalf.
func (h *AdminHandler) RetryCheckout(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	payment, err := h.Svc.RetryCheckout(c.Request().Context(), id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"payment_link":   payment.PaymentLink,
		"payment_status": payment.Status,
	})
}

// Sweep handles POST /v1/admin/sweep, running the stale-reservation expiry
// pass on demand.  The same pass runs on a timer; this endpoint exists for
// operators who do not want to wait for the next tick.
func (h *AdminHandler) Sweep(c echo.Context) error {
	n, err := h.Svc.ExpireStale(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed", "expired": n})
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

// adminLabel derives a history label from the authenticated operator.
func adminLabel(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		return fmt.Sprintf("admin:%v", v)
	}
	return "admin"
}
