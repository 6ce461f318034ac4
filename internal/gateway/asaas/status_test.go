package asaas

import (
	"testing"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		native string
		want   model.PaymentStatus
	}{
		{"CONFIRMED", model.PaymentPaid},
		{"RECEIVED", model.PaymentPaid},
		{"RECEIVED_IN_CASH", model.PaymentPaid},
		{"DUNNING_RECEIVED", model.PaymentPaid},
		{"REFUNDED", model.PaymentRefunded},
		{"DELETED", model.PaymentCancelled},
		{"CANCELLED", model.PaymentCancelled},
		{"CHECKOUT_EXPIRED", model.PaymentCancelled},
		{"PENDING", model.PaymentPending},
		{"OVERDUE", model.PaymentPending},
		{"AWAITING_RISK_ANALYSIS", model.PaymentPending},
		// Unknown codes must never confirm anything.
		{"SOME_FUTURE_STATUS", model.PaymentPending},
		{"", model.PaymentPending},
	}
	for _, tc := range cases {
		if got := MapStatus(tc.native); got != tc.want {
			t.Fatalf("MapStatus(%q) = %s, want %s", tc.native, got, tc.want)
		}
	}
}

func TestCancelsReservation(t *testing.T) {
	for _, ev := range []string{EventPaymentDeleted, EventPaymentRefunded, EventPaymentOverdue, EventCheckoutExpired, EventCheckoutCanceled} {
		if !CancelsReservation(ev) {
			t.Fatalf("%s should cancel the reservation", ev)
		}
	}
	for _, ev := range []string{EventPaymentCreated, EventPaymentConfirmed, EventPaymentReceived, EventCheckoutPaid, "PAYMENT_UNKNOWN"} {
		if CancelsReservation(ev) {
			t.Fatalf("%s should not cancel the reservation", ev)
		}
	}
}
