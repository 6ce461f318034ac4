package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recantodasaguas/reservation-api/internal/booking"
	"github.com/recantodasaguas/reservation-api/internal/model"
	"github.com/recantodasaguas/reservation-api/internal/repository"
)

// ReservationHandler serves the public reservation endpoints: quoting,
// creation, access-code lookup, guest cancellation and checkout retry.
// Lifecycle operations go through the booking orchestrator; read-only
// lookups hit the repositories directly.
type ReservationHandler struct {
	Svc          *booking.Service
	Reservations *repository.ReservationRepo
	Payments     *repository.PaymentRepo
}

// NewReservationHandler constructs a ReservationHandler.  All dependencies
// must be non-nil.
func NewReservationHandler(svc *booking.Service, reservations *repository.ReservationRepo, payments *repository.PaymentRepo) *ReservationHandler {
	if svc == nil || reservations == nil || payments == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc, Reservations: reservations, Payments: payments}
}

// reservationRequest is the JSON body shared by the quote and create
// endpoints.
type reservationRequest struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // optional, defaults to start_date
	Guests    int    `json:"guests"`
	Cabins    int    `json:"cabins"`
	Notes     string `json:"notes"`
	Guest     struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Document string `json:"document"`
	} `json:"guest"`
}

func (r *reservationRequest) toParams() (booking.CreateParams, error) {
	params := booking.CreateParams{
		Type:   model.ReservationType(r.Type),
		Guests: r.Guests,
		Cabins: r.Cabins,
		Notes:  r.Notes,
	}
	params.Guest.Name = r.Guest.Name
	params.Guest.Email = r.Guest.Email
	params.Guest.Phone = r.Guest.Phone
	params.Guest.Document = r.Guest.Document
	if r.StartDate != "" {
		t, err := time.Parse("2006-01-02", r.StartDate)
		if err != nil {
			return params, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		params.StartDate = t
	}
	if r.EndDate != "" {
		t, err := time.Parse("2006-01-02", r.EndDate)
		if err != nil {
			return params, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		params.EndDate = t
	}
	return params, nil
}

// Quote handles POST /v1/reservations/quote.  It returns the price a
// reservation with the given parameters would cost, running the same
// pricing math as creation.  Quoting never writes anything.
func (h *ReservationHandler) Quote(c echo.Context) error {
	var body reservationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	// Quotes do not need contact data; fill placeholders so validation
	// focuses on the pricing parameters.
	if body.Guest.Name == "" {
		body.Guest.Name, body.Guest.Email, body.Guest.Document = "-", "-", "-"
	}
	params, err := body.toParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	quote, err := h.Svc.Quote(params)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"unit_price_cents":             quote.UnitCents,
		"unit_price_with_cabins_cents": quote.UnitWithCabinsCents,
		"total_price_cents":            quote.TotalCents,
		"nights":                       quote.Nights,
	})
}

// Create handles POST /v1/reservations, the public booking flow.  On
// success it returns 201 with the reservation, its access code and the
// payment link.  When the gateway charge could not be created the
// reservation is still persisted and returned with a warning so the guest
// can retry checkout.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body reservationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	params, err := body.toParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	result, err := h.Svc.CreateReservation(c.Request().Context(), params)
	if err != nil {
		return bookingError(c, err)
	}
	resp := echo.Map{
		"item":        reservationJSON(result.Reservation, result.Payment),
		"access_code": result.Reservation.AccessCode,
	}
	if result.CheckoutErr != nil {
		resp["warning"] = "payment link could not be created; retry checkout later"
	}
	return c.JSON(http.StatusCreated, resp)
}

// Get handles GET /v1/reservations/:code.  Guests authenticate with the
// access_code query parameter instead of a session.  The response includes
// the active payment and the history log.
func (h *ReservationHandler) Get(c echo.Context) error {
	res, ok, err := h.authorize(c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	payment, err := h.Payments.FindActiveByReservation(c.Request().Context(), res.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payment"})
	}
	history, err := h.Reservations.History(c.Request().Context(), res.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load history"})
	}
	histItems := make([]echo.Map, 0, len(history))
	for _, e := range history {
		histItems = append(histItems, echo.Map{
			"action":     e.Action,
			"detail":     e.Detail,
			"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"item":    reservationJSON(res, payment),
		"history": histItems,
	})
}

// RetryCheckout handles POST /v1/reservations/:code/checkout.  It
// re-requests a gateway charge for an unpaid reservation whose earlier
// checkout failed; an already-active charge is returned as-is.
func (h *ReservationHandler) RetryCheckout(c echo.Context) error {
	res, ok, err := h.authorize(c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	payment, err := h.Svc.RetryCheckout(c.Request().Context(), res.ID)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"payment_link":   payment.PaymentLink,
		"payment_status": payment.Status,
	})
}

// Cancel handles POST /v1/reservations/:code/cancel.  Guests may cancel
// their own reservation while it is still unpaid; anything later requires
// an administrator.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	res, ok, err := h.authorize(c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	actor := booking.Actor{GuestID: res.GuestID, Label: "guest"}
	if err := h.Svc.CancelReservation(c.Request().Context(), res.ID, body.Reason, actor); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// authorize loads the reservation from the :code path parameter and checks
// the access_code query parameter.  It writes the error response itself
// and reports whether the caller may proceed.
func (h *ReservationHandler) authorize(c echo.Context) (*model.Reservation, bool, error) {
	code := c.Param("code")
	if code == "" {
		return nil, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation code"})
	}
	res, err := h.Reservations.FindByCode(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return nil, false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
	}
	supplied := c.QueryParam("access_code")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(res.AccessCode)) != 1 {
		// Same response as not-found so the endpoint cannot be used to
		// probe which codes exist.
		return nil, false, c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return res, true, nil
}

// reservationJSON shapes a reservation (and optionally its active payment)
// for API responses.  The access code is deliberately omitted; it is only
// revealed once, on creation.
func reservationJSON(res *model.Reservation, payment *model.Payment) echo.Map {
	item := echo.Map{
		"code":              res.Code,
		"type":              res.Type,
		"status":            res.Status,
		"start_date":        res.StartDate.Format("2006-01-02"),
		"end_date":          res.EndDate.Format("2006-01-02"),
		"guests":            res.Guests,
		"cabins":            res.Cabins,
		"nights":            model.NightCount(res.StartDate, res.EndDate),
		"unit_price_cents":  res.UnitPriceCents,
		"total_price_cents": res.TotalPriceCents,
		"notes":             res.Notes,
		"guest_name":        res.GuestName,
		"created_at":        res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if payment != nil {
		pm := echo.Map{
			"status":       payment.Status,
			"payment_link": payment.PaymentLink,
		}
		if payment.PaidAt != nil {
			pm["paid_at"] = payment.PaidAt.UTC().Format(time.RFC3339)
		}
		if payment.ReceiptURL != "" {
			pm["receipt_url"] = payment.ReceiptURL
		}
		item["payment"] = pm
	}
	return item
}

// bookingError maps orchestrator error values onto HTTP responses.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrAvailability):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, booking.ErrCheckoutFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable, try again later"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
