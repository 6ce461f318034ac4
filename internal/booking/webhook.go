package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/gateway/asaas"
	"github.com/recantodasaguas/reservation-api/internal/model"
	"github.com/recantodasaguas/reservation-api/internal/repository"
)

// WebhookEvent is the gateway's webhook envelope.  The gateway delivers two
// payload families — payment.* events embed a payment object, checkout.*
// events embed a checkout object — and both are normalized into the same
// lookup below.  Raw carries the unparsed body for the audit snapshot.
type WebhookEvent struct {
	Event    string         `json:"event"`
	Payment  *WebhookObject `json:"payment"`
	Checkout *WebhookObject `json:"checkout"`
	Raw      json.RawMessage `json:"-"`
}

// WebhookObject is the charge/checkout object embedded in a webhook
// delivery.  Field coverage is intentionally partial: only what the
// reconciliation needs is decoded, everything else survives in Raw.
type WebhookObject struct {
	ID                    string `json:"id"`
	Status                string `json:"status"`
	ExternalReference     string `json:"externalReference"`
	InvoiceURL            string `json:"invoiceUrl"`
	TransactionReceiptURL string `json:"transactionReceiptUrl"`
	PaymentDate           string `json:"paymentDate"`
}

// ParseWebhook decodes a webhook body into an event envelope, retaining the
// raw bytes.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", ErrValidation, err)
	}
	ev.Raw = append(json.RawMessage(nil), body...)
	return &ev, nil
}

// DedupKey returns a stable identity for this delivery, used by the
// fast-path duplicate filter in front of the handler.  Processing remains
// idempotent without it.
func (ev *WebhookEvent) DedupKey() string {
	id, status := "", ""
	if obj := ev.object(); obj != nil {
		id, status = obj.ID, obj.Status
	}
	return fmt.Sprintf("%s:%s:%s", ev.Event, id, status)
}

func (ev *WebhookEvent) object() *WebhookObject {
	if ev.Payment != nil {
		return ev.Payment
	}
	return ev.Checkout
}

// ProcessWebhookEvent reconciles reservation and payment state against one
// gateway delivery.  It is idempotent: replaying a delivery yields the same
// state as applying it once, and a re-delivered PENDING event never
// downgrades a record that already reached a terminal payment status.
// Unknown event families are logged and ignored so the gateway's vocabulary
// can grow without breaking this service.
func (s *Service) ProcessWebhookEvent(ctx context.Context, ev *WebhookEvent) error {
	if !strings.HasPrefix(ev.Event, "PAYMENT_") && !strings.HasPrefix(ev.Event, "CHECKOUT_") {
		log.Printf("booking: ignoring webhook event %q", ev.Event)
		return nil
	}
	obj := ev.object()
	if obj == nil {
		log.Printf("booking: webhook event %q carries no payment or checkout object; ignoring", ev.Event)
		return nil
	}

	payment, err := s.resolvePayment(ctx, ev)
	if err != nil {
		return err
	}

	mapped := asaas.MapStatus(obj.Status)
	if mapped == model.PaymentPending && asaas.CancelsReservation(ev.Event) {
		// Expiry/cancellation events may omit a terminal status field; the
		// event name itself is authoritative there.
		if ev.Event == asaas.EventPaymentRefunded {
			mapped = model.PaymentRefunded
		} else {
			mapped = model.PaymentCancelled
		}
	}

	// Superseded-by-terminal-state check: a stale re-delivered PENDING must
	// not reopen a settled record.
	if payment.Status.Terminal() && mapped == model.PaymentPending {
		log.Printf("booking: webhook %s for charge %s ignored; payment already %s", ev.Event, payment.ChargeID, payment.Status)
		return nil
	}
	duplicate := payment.Status == mapped
	if duplicate {
		// Duplicate delivery: refresh the audit snapshot only.  The
		// reservation transition below still runs, so a redelivery can
		// repair a reservation left behind by a crash between the payment
		// update and the status switch.
		payment.RawPayload = ev.Raw
		if err := s.payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("refresh payment snapshot: %w", err)
		}
	} else {
		payment.Status = mapped
		payment.RawPayload = ev.Raw
		if ev.Checkout != nil && payment.CheckoutID == "" {
			payment.CheckoutID = ev.Checkout.ID
		}
		if obj.InvoiceURL != "" {
			payment.PaymentLink = obj.InvoiceURL
		}
		if mapped == model.PaymentPaid {
			payment.ReceiptURL = obj.TransactionReceiptURL
			paidAt := s.now().UTC()
			if obj.PaymentDate != "" {
				if t, err := time.Parse("2006-01-02", obj.PaymentDate); err == nil {
					paidAt = t
				}
			}
			payment.PaidAt = &paidAt
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment %d: %w", payment.ID, err)
		}
	}

	res, err := s.findReservation(ctx, payment.ReservationID)
	if err != nil {
		return err
	}

	// confirmReservation and cancelFromWebhook are no-ops when the
	// reservation already reached the target status, so running them on a
	// duplicate delivery is safe.
	switch mapped {
	case model.PaymentPaid:
		if err := s.confirmReservation(ctx, res); err != nil {
			return err
		}
	case model.PaymentCancelled, model.PaymentRefunded:
		if err := s.cancelFromWebhook(ctx, res, ev.Event); err != nil {
			return err
		}
	}

	if !duplicate {
		s.notify(ctx, "payment status", func() error {
			return s.notifier.PaymentStatusChanged(ctx, res, mapped, payment.PaymentLink)
		})
	}
	return nil
}

// resolvePayment locates the payment record a delivery refers to.  The
// resolution order is fixed: gateway charge id, then checkout/session id;
// each candidate is in turn matched against the charge, checkout and legacy
// id columns, first match wins.
func (s *Service) resolvePayment(ctx context.Context, ev *WebhookEvent) (*model.Payment, error) {
	var candidates []string
	if ev.Payment != nil && ev.Payment.ID != "" {
		candidates = append(candidates, ev.Payment.ID)
	}
	if ev.Checkout != nil && ev.Checkout.ID != "" {
		candidates = append(candidates, ev.Checkout.ID)
	}
	for _, id := range candidates {
		p, err := s.payments.FindByGatewayID(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no payment record matches webhook %s", ErrNotFound, ev.Event)
}

// confirmReservation transitions a reservation to CONFIRMED after its
// charge settled and consumes the held cabin capacity.
func (s *Service) confirmReservation(ctx context.Context, res *model.Reservation) error {
	if res.Status == model.StatusConfirmed {
		return nil
	}
	if !model.CanTransition(res.Status, model.StatusConfirmed) {
		log.Printf("booking: payment settled for %s but reservation is %s; leaving as-is", res.Code, res.Status)
		return nil
	}
	if err := s.reservations.UpdateStatus(ctx, res.ID, model.StatusConfirmed); err != nil {
		return fmt.Errorf("confirm reservation %s: %w", res.Code, err)
	}
	if err := s.reservations.AppendHistory(ctx, res.ID, "confirmed", "payment settled"); err != nil {
		log.Printf("booking: append history for %s: %v", res.Code, err)
	}
	s.consumeCapacity(ctx, res)
	res.Status = model.StatusConfirmed
	s.notify(ctx, "confirmed", func() error { return s.notifier.ReservationConfirmed(ctx, res) })
	return nil
}

// cancelFromWebhook transitions a reservation to CANCELLED after its charge
// was deleted, expired or refunded, releasing capacity held by a confirmed
// booking.
func (s *Service) cancelFromWebhook(ctx context.Context, res *model.Reservation, event string) error {
	if res.Status == model.StatusCancelled {
		return nil
	}
	if !model.CanTransition(res.Status, model.StatusCancelled) {
		log.Printf("booking: charge gone for %s but reservation is %s; leaving as-is", res.Code, res.Status)
		return nil
	}
	wasConfirmed := res.Status == model.StatusConfirmed || res.Status == model.StatusInProgress
	if err := s.reservations.UpdateStatus(ctx, res.ID, model.StatusCancelled); err != nil {
		return fmt.Errorf("cancel reservation %s: %w", res.Code, err)
	}
	if err := s.reservations.AppendHistory(ctx, res.ID, "cancelled", "gateway event "+event); err != nil {
		log.Printf("booking: append history for %s: %v", res.Code, err)
	}
	if wasConfirmed {
		s.releaseCapacity(ctx, res)
	}
	res.Status = model.StatusCancelled
	s.notify(ctx, "canceled", func() error {
		return s.notifier.ReservationCanceled(ctx, res, "payment "+strings.ToLower(strings.TrimPrefix(event, "PAYMENT_")))
	})
	return nil
}
