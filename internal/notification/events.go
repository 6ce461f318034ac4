// Package notification is the structured-event sink for reservation
// lifecycle notifications.  Events are published to RabbitMQ; rendering and
// delivery of guest-facing messages happen downstream of the queue.
package notification

// Event kinds carried in ReservationEvent.Event.
const (
	KindCreated       = "reservation.created"
	KindConfirmed     = "reservation.confirmed"
	KindCanceled      = "reservation.canceled"
	KindPaymentStatus = "payment.status_changed"
)

// ReservationEvent is the payload published for every lifecycle
// notification.  It carries enough information for downstream consumers to
// render a message or feed analytics without querying the primary database.
type ReservationEvent struct {
	Event           string `json:"event"`
	Code            string `json:"code"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Guests          int    `json:"guests"`
	Cabins          int    `json:"cabins"`
	TotalPriceCents int64  `json:"total_price_cents"`
	GuestName       string `json:"guest_name"`
	GuestEmail      string `json:"guest_email"`
	PaymentStatus   string `json:"payment_status,omitempty"`
	PaymentLink     string `json:"payment_link,omitempty"`
	Reason          string `json:"reason,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}
