package booking

import (
	"context"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/availability"
	"github.com/recantodasaguas/reservation-api/internal/gateway/asaas"
	"github.com/recantodasaguas/reservation-api/internal/model"
)

// The orchestrator consumes its collaborators through small interfaces so
// the state machine can be exercised without a database or a live gateway.
// The MySQL repositories and the Asaas client satisfy these directly.

// ReservationStore is the persistence contract for reservations.  Create
// must be atomic: code allocation, the conflict re-check and the initial
// history entry commit together or not at all.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	FindByID(ctx context.Context, id uint64) (*model.Reservation, error)
	FindByCode(ctx context.Context, code string) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus) error
	AppendHistory(ctx context.Context, id uint64, action, detail string) error
}

// PaymentStore is the persistence contract for payment records.
type PaymentStore interface {
	CreateWithHistory(ctx context.Context, p *model.Payment, action, detail string) error
	FindActiveByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (*model.Payment, error)
	Update(ctx context.Context, p *model.Payment) error
	FindExpiredPending(ctx context.Context, before time.Time) ([]model.Payment, error)
}

// CapacityStore mutates the per-day cabin counters.  AdjustCabins must be
// atomic per date; concurrent confirm/cancel operations on the same date
// serialize on the day's row.
type CapacityStore interface {
	AdjustCabins(ctx context.Context, date time.Time, delta, defaultCap int) error
}

// GuestStore resolves guest accounts for publicly-created reservations.
type GuestStore interface {
	FindOrCreate(ctx context.Context, g *model.Guest) error
	UpdateGatewayRef(ctx context.Context, id uint64, ref string) error
}

// Checker answers whether a date range can be booked.  Satisfied by
// *availability.Checker.
type Checker interface {
	CheckRange(ctx context.Context, start, end time.Time, resType model.ReservationType, cabins int) (availability.Decision, error)
}

// Gateway is the payment provider contract the orchestrator depends on.
// Satisfied by *asaas.Client.
type Gateway interface {
	FindOrCreateCustomer(ctx context.Context, cust asaas.Customer) (string, error)
	CreateCharge(ctx context.Context, req asaas.ChargeRequest) (*asaas.Charge, error)
	ChargeStatus(ctx context.Context, chargeID string) (string, error)
	CancelCharge(ctx context.Context, chargeID string) (bool, error)
}

// Notifier is the structured-event sink for lifecycle notifications.
// Delivery is best-effort: the orchestrator logs failures and never lets
// them fail or roll back the triggering operation.
type Notifier interface {
	ReservationCreated(ctx context.Context, res *model.Reservation, paymentLink string) error
	ReservationConfirmed(ctx context.Context, res *model.Reservation) error
	ReservationCanceled(ctx context.Context, res *model.Reservation, reason string) error
	PaymentStatusChanged(ctx context.Context, res *model.Reservation, status model.PaymentStatus, paymentLink string) error
}
