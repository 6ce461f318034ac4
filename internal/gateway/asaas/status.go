package asaas

import "github.com/recantodasaguas/reservation-api/internal/model"

// Webhook event names the gateway is known to deliver.  The catalog grows
// over time; anything outside the payment/checkout families is logged and
// ignored upstream rather than treated as an error.
const (
	EventPaymentCreated   = "PAYMENT_CREATED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
	EventPaymentOverdue   = "PAYMENT_OVERDUE"
	EventPaymentDeleted   = "PAYMENT_DELETED"
	EventPaymentRefunded  = "PAYMENT_REFUNDED"
	EventPaymentUpdated   = "PAYMENT_UPDATED"
	EventCheckoutPaid     = "CHECKOUT_PAID"
	EventCheckoutExpired  = "CHECKOUT_EXPIRED"
	EventCheckoutCanceled = "CHECKOUT_CANCELED"
)

// MapStatus translates a gateway-native payment status into the internal
// enumeration.  The mapping is total: unknown codes default to PENDING so a
// new gateway status can only ever mean "still waiting", never a silent
// confirmation.
func MapStatus(native string) model.PaymentStatus {
	switch native {
	case "CONFIRMED", "RECEIVED", "RECEIVED_IN_CASH", "DUNNING_RECEIVED":
		return model.PaymentPaid
	case "REFUNDED":
		return model.PaymentRefunded
	case "DELETED", "CANCELLED", "CHECKOUT_EXPIRED":
		return model.PaymentCancelled
	case "PENDING", "OVERDUE", "AWAITING_RISK_ANALYSIS", "REFUND_REQUESTED",
		"CHARGEBACK_REQUESTED", "CHARGEBACK_DISPUTE", "AWAITING_CHARGEBACK_REVERSAL",
		"DUNNING_REQUESTED":
		return model.PaymentPending
	default:
		return model.PaymentPending
	}
}

// CancelsReservation reports whether a webhook event signals that the charge
// is gone (deleted, expired, overdue or voided) regardless of the status
// field carried in the payload.  An overdue charge means the payment window
// closed without settlement, so the held dates are released immediately
// rather than waiting for the expiry sweep.
func CancelsReservation(event string) bool {
	switch event {
	case EventPaymentDeleted, EventPaymentRefunded, EventPaymentOverdue,
		EventCheckoutExpired, EventCheckoutCanceled:
		return true
	}
	return false
}
