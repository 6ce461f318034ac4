package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

// deliver parses and processes a webhook body, failing the test on parse
// errors so cases read as one line.
func deliver(t *testing.T, svc *Service, body string) error {
	t.Helper()
	ev, err := ParseWebhook([]byte(body))
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	return svc.ProcessWebhookEvent(context.Background(), ev)
}

func paymentBody(event, chargeID, status string) string {
	return fmt.Sprintf(`{
		"event": %q,
		"payment": {
			"id": %q,
			"status": %q,
			"invoiceUrl": "https://pay.example/%s",
			"transactionReceiptUrl": "https://pay.example/%s/receipt",
			"paymentDate": "2026-09-03"
		}
	}`, event, chargeID, status, chargeID, chargeID)
}

func seedReservation(t *testing.T) (*Service, *memStore, *fakeGateway, *fakeNotifier, *CreateResult) {
	t.Helper()
	store, gw, nt := newMemStore(), newFakeGateway(), &fakeNotifier{}
	svc := newTestService(store, gw, nt)
	result, err := svc.CreateReservation(context.Background(), validParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return svc, store, gw, nt, result
}

func TestWebhookConfirmsReservation(t *testing.T) {
	svc, store, _, nt, result := seedReservation(t)
	chargeID := result.Payment.ChargeID

	if err := deliver(t, svc, paymentBody("PAYMENT_CONFIRMED", chargeID, "CONFIRMED")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if store.status(result.Reservation.ID) != model.StatusConfirmed {
		t.Fatal("reservation not confirmed")
	}
	if store.paymentStatus(result.Payment.ID) != model.PaymentPaid {
		t.Fatal("payment not marked paid")
	}
	store.mu.Lock()
	p := store.payments[result.Payment.ID]
	if p.PaidAt == nil || p.PaidAt.Format("2006-01-02") != "2026-09-03" {
		t.Fatalf("paid_at = %v, want the gateway payment date", p.PaidAt)
	}
	if p.ReceiptURL == "" {
		t.Fatal("receipt url not captured")
	}
	if len(p.RawPayload) == 0 {
		t.Fatal("raw payload snapshot not stored")
	}
	store.mu.Unlock()

	// Confirmation consumes the held cabins for every stay day.
	res := result.Reservation
	for d := res.StartDate; !d.After(res.EndDate); d = d.AddDate(0, 0, 1) {
		if got := store.cabinDelta[d.Format("2006-01-02")]; got != -res.Cabins {
			t.Fatalf("%s: capacity delta = %d, want -%d", d.Format("2006-01-02"), got, res.Cabins)
		}
	}
	if !nt.seen("confirmed") {
		t.Fatal("confirmed notification not sent")
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	svc, store, _, _, result := seedReservation(t)
	chargeID := result.Payment.ChargeID
	body := paymentBody("PAYMENT_CONFIRMED", chargeID, "CONFIRMED")

	if err := deliver(t, svc, body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := deliver(t, svc, body); err != nil {
		t.Fatalf("replayed delivery: %v", err)
	}

	if store.status(result.Reservation.ID) != model.StatusConfirmed {
		t.Fatal("replay changed reservation state")
	}
	// Capacity must be consumed exactly once despite the replay.
	res := result.Reservation
	for d := res.StartDate; !d.After(res.EndDate); d = d.AddDate(0, 0, 1) {
		if got := store.cabinDelta[d.Format("2006-01-02")]; got != -res.Cabins {
			t.Fatalf("%s: capacity delta = %d after replay, want -%d", d.Format("2006-01-02"), got, res.Cabins)
		}
	}
}

func TestWebhookStalePendingNeverDowngrades(t *testing.T) {
	svc, store, _, _, result := seedReservation(t)
	chargeID := result.Payment.ChargeID

	if err := deliver(t, svc, paymentBody("PAYMENT_CONFIRMED", chargeID, "CONFIRMED")); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	// Out-of-order re-delivery of the original creation event.
	if err := deliver(t, svc, paymentBody("PAYMENT_CREATED", chargeID, "PENDING")); err != nil {
		t.Fatalf("stale delivery: %v", err)
	}

	if store.paymentStatus(result.Payment.ID) != model.PaymentPaid {
		t.Fatal("terminal payment status was downgraded by a stale PENDING")
	}
	if store.status(result.Reservation.ID) != model.StatusConfirmed {
		t.Fatal("reservation regressed from CONFIRMED")
	}
}

func TestWebhookRedeliveryRepairsMissedConfirmation(t *testing.T) {
	svc, store, _, _, result := seedReservation(t)
	chargeID := result.Payment.ChargeID

	// A crash between the payment update and the reservation transition
	// leaves the payment PAID while the reservation is still awaiting it.
	// The gateway's redelivery must finish the job.
	store.mu.Lock()
	store.payments[result.Payment.ID].Status = model.PaymentPaid
	store.mu.Unlock()

	if err := deliver(t, svc, paymentBody("PAYMENT_CONFIRMED", chargeID, "CONFIRMED")); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if store.status(result.Reservation.ID) != model.StatusConfirmed {
		t.Fatal("redelivery did not confirm the reservation")
	}
	res := result.Reservation
	for d := res.StartDate; !d.After(res.EndDate); d = d.AddDate(0, 0, 1) {
		if got := store.cabinDelta[d.Format("2006-01-02")]; got != -res.Cabins {
			t.Fatalf("%s: capacity delta = %d, want -%d", d.Format("2006-01-02"), got, res.Cabins)
		}
	}
}

func TestWebhookOverdueCancelsPending(t *testing.T) {
	svc, store, _, nt, result := seedReservation(t)
	chargeID := result.Payment.ChargeID

	// OVERDUE is not a terminal gateway status, but the event itself means
	// the payment window closed; the held dates come back immediately.
	if err := deliver(t, svc, paymentBody("PAYMENT_OVERDUE", chargeID, "OVERDUE")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if store.paymentStatus(result.Payment.ID) != model.PaymentCancelled {
		t.Fatal("payment not cancelled on overdue charge")
	}
	if store.status(result.Reservation.ID) != model.StatusCancelled {
		t.Fatal("reservation not cancelled on overdue charge")
	}
	if len(store.cabinDelta) != 0 {
		t.Fatalf("capacity adjusted for a never-confirmed booking: %v", store.cabinDelta)
	}
	if !nt.seen("canceled") {
		t.Fatal("canceled notification not sent")
	}
}

func TestWebhookCheckoutExpiredCancelsPending(t *testing.T) {
	svc, store, _, nt, result := seedReservation(t)

	// Checkout expiry payloads reference the session id, not the charge id,
	// and carry no terminal status field.
	store.mu.Lock()
	store.payments[result.Payment.ID].CheckoutID = "chk_1"
	store.mu.Unlock()

	body := `{"event": "CHECKOUT_EXPIRED", "checkout": {"id": "chk_1", "status": ""}}`
	if err := deliver(t, svc, body); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if store.paymentStatus(result.Payment.ID) != model.PaymentCancelled {
		t.Fatal("payment not cancelled on checkout expiry")
	}
	if store.status(result.Reservation.ID) != model.StatusCancelled {
		t.Fatal("reservation not cancelled on checkout expiry")
	}
	// The booking never confirmed, so no block capacity was held.
	if len(store.cabinDelta) != 0 {
		t.Fatalf("capacity adjusted for a never-confirmed booking: %v", store.cabinDelta)
	}
	if !nt.seen("canceled") {
		t.Fatal("canceled notification not sent")
	}
}

func TestWebhookRefundCancelsAndReleasesCapacity(t *testing.T) {
	svc, store, _, _, result := seedReservation(t)
	chargeID := result.Payment.ChargeID

	if err := deliver(t, svc, paymentBody("PAYMENT_CONFIRMED", chargeID, "CONFIRMED")); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	if err := deliver(t, svc, paymentBody("PAYMENT_REFUNDED", chargeID, "REFUNDED")); err != nil {
		t.Fatalf("refund delivery: %v", err)
	}

	if store.paymentStatus(result.Payment.ID) != model.PaymentRefunded {
		t.Fatal("payment not marked refunded")
	}
	if store.status(result.Reservation.ID) != model.StatusCancelled {
		t.Fatal("reservation not cancelled after refund")
	}
	// Consume then release nets out to zero.
	res := result.Reservation
	for d := res.StartDate; !d.After(res.EndDate); d = d.AddDate(0, 0, 1) {
		if got := store.cabinDelta[d.Format("2006-01-02")]; got != 0 {
			t.Fatalf("%s: capacity delta = %d after refund, want 0", d.Format("2006-01-02"), got)
		}
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	svc, store, _, _, result := seedReservation(t)

	body := `{"event": "SUBSCRIPTION_CREATED", "payment": {"id": "sub_1", "status": "ACTIVE"}}`
	if err := deliver(t, svc, body); err != nil {
		t.Fatalf("unknown event must be swallowed, got: %v", err)
	}
	if store.status(result.Reservation.ID) != model.StatusPendingPayment {
		t.Fatal("unknown event changed reservation state")
	}
}

func TestWebhookUnmatchedPayment(t *testing.T) {
	svc, _, _, _, _ := seedReservation(t)

	err := deliver(t, svc, paymentBody("PAYMENT_CONFIRMED", "pay_does_not_exist", "CONFIRMED"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unmatched charge", err)
	}
}

func TestWebhookDedupKeyDistinguishesStatus(t *testing.T) {
	created, err := ParseWebhook([]byte(paymentBody("PAYMENT_CREATED", "pay_1", "PENDING")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	confirmed, err := ParseWebhook([]byte(paymentBody("PAYMENT_CONFIRMED", "pay_1", "CONFIRMED")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if created.DedupKey() == confirmed.DedupKey() {
		t.Fatal("different deliveries share a dedup key")
	}
	replay, _ := ParseWebhook([]byte(paymentBody("PAYMENT_CONFIRMED", "pay_1", "CONFIRMED")))
	if replay.DedupKey() != confirmed.DedupKey() {
		t.Fatal("identical deliveries produced different dedup keys")
	}
}
