package model

import (
	"encoding/json"
	"time"
)

// PaymentStatus enumerates the internal lifecycle of a payment record.
// Gateway-native status codes are mapped onto these four values; unknown
// codes default to PENDING so a new gateway status can never silently
// confirm a booking.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"   // charge created, not yet settled
	PaymentPaid      PaymentStatus = "PAID"      // gateway reports the charge settled
	PaymentCancelled PaymentStatus = "CANCELLED" // charge deleted, expired or voided
	PaymentRefunded  PaymentStatus = "REFUNDED"  // settled then refunded
)

// Terminal reports whether the payment status can no longer regress.  A
// re-delivered PENDING event must never downgrade a record that already
// reached one of these states.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentCancelled || s == PaymentRefunded
}

// Payment is the record of one gateway charge raised for a reservation.  At
// most one payment per reservation is active (not cancelled) at a time;
// superseded records are kept for audit and never hard-deleted.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation.
//  Status        – internal payment status.
//  ChargeID      – gateway charge identifier.
//  CheckoutID    – gateway checkout/session identifier, may differ from
//                  ChargeID; lookups must resolve either.
//  LegacyID      – alternate identifier kept for older gateway payloads.
//  AmountCents   – charged amount in cents.
//  PaidAt        – settlement timestamp reported by the gateway.
//  ReceiptURL    – gateway receipt reference.
//  PaymentLink   – checkout URL handed to the guest.
//  RawPayload    – snapshot of the last gateway payload, for audit/replay.
type Payment struct {
	ID            uint64          // payments.id
	ReservationID uint64          // payments.reservation_id
	Status        PaymentStatus   // payments.status
	ChargeID      string          // payments.charge_id
	CheckoutID    string          // payments.checkout_id
	LegacyID      string          // payments.legacy_id
	AmountCents   int64           // payments.amount_cents
	PaidAt        *time.Time      // payments.paid_at (nullable)
	ReceiptURL    string          // payments.receipt_url
	PaymentLink   string          // payments.payment_link
	RawPayload    json.RawMessage // payments.raw_payload (last gateway snapshot)
	CreatedAt     time.Time       // payments.created_at
	UpdatedAt     time.Time       // payments.updated_at
}
