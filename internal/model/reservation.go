package model

import "time"

// ReservationType enumerates the bookable resource combinations offered by
// the venue.  A day-use booking takes the whole grounds exclusively for the
// day, a cabin booking takes N shareable cabin units, a baptism booking is a
// time-boxed ceremony slot that can coexist with cabin bookings, and the
// combined type is day-use plus cabins in a single reservation.
type ReservationType string

const (
	TypeDayUse   ReservationType = "DAY_USE"       // exclusive use of the venue for a day
	TypeCabin    ReservationType = "CABIN"         // N cabin units, venue stays shareable
	TypeBaptism  ReservationType = "BAPTISM"       // ceremony slot, compatible with cabins
	TypeCombined ReservationType = "DAY_USE_CABIN" // exclusive day-use plus cabins
)

// Valid reports whether t is one of the known reservation types.
func (t ReservationType) Valid() bool {
	switch t {
	case TypeDayUse, TypeCabin, TypeBaptism, TypeCombined:
		return true
	}
	return false
}

// Exclusive reports whether the type blocks the whole venue for its dates.
func (t ReservationType) Exclusive() bool {
	return t == TypeDayUse || t == TypeCombined
}

// UsesCabins reports whether the type consumes cabin capacity.
func (t ReservationType) UsesCabins() bool {
	return t == TypeCabin || t == TypeCombined
}

// ReservationStatus enumerates the lifecycle states of a reservation.
// Transitions are driven exclusively by the booking orchestrator, either
// directly on creation/cancellation or indirectly via payment webhooks.
type ReservationStatus string

const (
	StatusPendingPayment ReservationStatus = "PENDING_PAYMENT" // created, waiting for the charge to be paid
	StatusConfirmed      ReservationStatus = "CONFIRMED"       // charge paid, dates held
	StatusInProgress     ReservationStatus = "IN_PROGRESS"     // set administratively on the service date
	StatusFinalized      ReservationStatus = "FINALIZED"       // service date passed; terminal
	StatusCancelled      ReservationStatus = "CANCELLED"       // expired, refunded or explicitly cancelled; terminal
)

// validNext encodes the allowed reservation status transitions.  Terminal
// states have no successors.
var validNext = map[ReservationStatus]map[ReservationStatus]bool{
	StatusPendingPayment: {StatusConfirmed: true, StatusCancelled: true, StatusInProgress: true},
	StatusConfirmed:      {StatusFinalized: true, StatusCancelled: true, StatusInProgress: true},
	StatusInProgress:     {StatusFinalized: true, StatusCancelled: true},
	StatusFinalized:      {},
	StatusCancelled:      {},
}

// CanTransition reports whether a reservation may move from one status to
// another.  Self transitions are allowed so that replayed webhook deliveries
// stay idempotent.
func CanTransition(from, to ReservationStatus) bool {
	if from == to {
		return true
	}
	return validNext[from][to]
}

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == StatusFinalized || s == StatusCancelled
}

// Reservation is a booking of the venue for a date range.  Guest contact
// fields are a snapshot taken at creation time, not a live reference to the
// guest record, so later profile edits never rewrite booking history.
//
// Fields:
//  ID              – primary key identifier.
//  Code            – human-readable unique code (RSV-<n>), immutable.
//  AccessCode      – short random secret for guest lookup without login.
//  GuestID         – owning guest account.
//  Type            – resource combination booked.
//  StartDate       – first day of the booking (midnight UTC).
//  EndDate         – last day, inclusive; equals StartDate for one day.
//  Guests          – headcount.
//  Cabins          – number of cabin units booked.
//  UnitPriceCents  – nightly price in cents.
//  TotalPriceCents – computed total in cents; never hand-edited.
//  Notes           – free-text notes.
//  Status          – lifecycle state.
type Reservation struct {
	ID              uint64            // reservations.id
	Code            string            // reservations.code
	AccessCode      string            // reservations.access_code
	GuestID         uint64            // reservations.guest_id
	Type            ReservationType   // reservations.type
	StartDate       time.Time         // reservations.start_date
	EndDate         time.Time         // reservations.end_date
	Guests          int               // reservations.guests
	Cabins          int               // reservations.cabins
	UnitPriceCents  int64             // reservations.unit_price_cents
	TotalPriceCents int64             // reservations.total_price_cents
	Notes           string            // reservations.notes
	GuestName       string            // reservations.guest_name (snapshot)
	GuestEmail      string            // reservations.guest_email (snapshot)
	GuestPhone      string            // reservations.guest_phone (snapshot)
	GuestDocument   string            // reservations.guest_document (snapshot)
	Status          ReservationStatus // reservations.status
	CreatedAt       time.Time         // reservations.created_at
	UpdatedAt       time.Time         // reservations.updated_at
}

// Nights returns the billable night count for the reservation: the ceiling
// of the day span with a floor of one, so a same-day booking always costs
// at least one unit.
func (r *Reservation) Nights() int {
	return NightCount(r.StartDate, r.EndDate)
}

// NightCount derives billable nights between two dates.  The floor of one
// is deliberate; see Reservation.Nights.
func NightCount(start, end time.Time) int {
	if !end.After(start) {
		return 1
	}
	d := end.Sub(start)
	n := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		n++
	}
	return n
}

// HistoryEntry is one line of a reservation's append-only lifecycle log.
type HistoryEntry struct {
	ID            uint64    // reservation_history.id
	ReservationID uint64    // reservation_history.reservation_id
	Action        string    // reservation_history.action
	Detail        string    // reservation_history.detail
	CreatedAt     time.Time // reservation_history.created_at
}
