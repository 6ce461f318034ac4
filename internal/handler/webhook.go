package handler

import (
	"crypto/subtle"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/recantodasaguas/reservation-api/internal/booking"
)

// maxWebhookBody caps how much of a webhook request we read.  Gateway
// payloads are small; anything larger is hostile or broken.
const maxWebhookBody = 1 << 20

// WebhookHandler ingests payment gateway notifications.  Deliveries are
// at-least-once and unordered, so the handler acknowledges everything with
// 200 and leaves correctness to the idempotent processing in the booking
// service.  Returning an error status would only make the gateway retry a
// payload we already know how to handle.
type WebhookHandler struct {
	Svc   *booking.Service
	Redis *redis.Client // optional duplicate filter, nil disables it
	Token string        // expected asaas-access-token header, empty disables the check
}

// NewWebhookHandler constructs a WebhookHandler.  Redis may be nil.
func NewWebhookHandler(svc *booking.Service, rdb *redis.Client, token string) *WebhookHandler {
	if svc == nil {
		panic("nil service passed to NewWebhookHandler")
	}
	return &WebhookHandler{Svc: svc, Redis: rdb, Token: token}
}

// Receive handles POST /v1/webhooks/asaas.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if h.Token != "" {
		got := c.Request().Header.Get("asaas-access-token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook token"})
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		log.Printf("webhook: failed to read body: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	ev, err := booking.ParseWebhook(body)
	if err != nil {
		log.Printf("webhook: unparseable payload: %v body=%s", err, body)
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	// Fast-path duplicate filter.  Redis being down just means every
	// delivery reaches the service, which tolerates replays anyway.
	if h.Redis != nil {
		key := "webhook:seen:" + ev.DedupKey()
		fresh, err := h.Redis.SetNX(c.Request().Context(), key, 1, 24*time.Hour).Result()
		if err == nil && !fresh {
			return c.JSON(http.StatusOK, echo.Map{"status": "duplicate"})
		}
	}

	if err := h.Svc.ProcessWebhookEvent(c.Request().Context(), ev); err != nil {
		// Still 200: the payload is logged for operators and a retry of
		// the same delivery would fail the same way.
		log.Printf("webhook: processing failed: %v body=%s", err, body)
		return c.JSON(http.StatusOK, echo.Map{"status": "error_logged"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "processed"})
}
