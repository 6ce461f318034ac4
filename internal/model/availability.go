package model

import "time"

// AvailabilityBlock is the administrator-facing override record for a single
// calendar day.  At most one block exists per date; dates are normalized to
// midnight UTC before storage and lookup.  Explicit false flags close the
// resource for the day regardless of bookings, and CabinsAvailable caps the
// cabin capacity check.  The cabin counter also tracks consumption by
// confirmed reservations: confirming decrements it, cancelling a confirmed
// reservation increments it back.
type AvailabilityBlock struct {
	ID               uint64    // availability_blocks.id
	Date             time.Time // availability_blocks.date (midnight UTC, unique)
	DayUseAvailable  bool      // availability_blocks.day_use_available
	BaptismAvailable bool      // availability_blocks.baptism_available
	CabinsAvailable  int       // availability_blocks.cabins_available (remaining units)
	Notes            string    // availability_blocks.notes
	CreatedAt        time.Time // availability_blocks.created_at
	UpdatedAt        time.Time // availability_blocks.updated_at
}

// Midnight truncates t to midnight UTC.  All per-day availability keys go
// through this before touching storage.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
