// Package availability decides whether a requested date/resource combination
// can be booked.  The decision rules live in Evaluate, a pure function over
// the day's competing reservations and the administrator block for that
// date; Checker wraps it with repository lookups and an injected clock so
// core logic never reads ambient time.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/config"
	"github.com/recantodasaguas/reservation-api/internal/model"
)

// Decision is the outcome of an availability check.  Reason is a
// human-readable explanation filled in when Available is false.
type Decision struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ReservationSource supplies the reservations whose date ranges intersect a
// given range, inclusive on both ends.  Cancelled reservations must be
// excluded by the implementation; Evaluate filters them again defensively.
type ReservationSource interface {
	ListIntersecting(ctx context.Context, start, end time.Time) ([]model.Reservation, error)
}

// BlockSource supplies the administrator block for a date, or nil when the
// date has no block record.
type BlockSource interface {
	FindByDate(ctx context.Context, date time.Time) (*model.AvailabilityBlock, error)
}

// Checker answers availability questions against live booking data.
type Checker struct {
	Reservations ReservationSource
	Blocks       BlockSource
	Policy       config.Pricing
	Now          func() time.Time // injected clock
}

// NewChecker constructs a Checker.  now may be nil, in which case time.Now
// is used.
func NewChecker(reservations ReservationSource, blocks BlockSource, policy config.Pricing, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{Reservations: reservations, Blocks: blocks, Policy: policy, Now: now}
}

// Check reports whether a single date can accommodate the requested type and
// cabin count.
func (c *Checker) Check(ctx context.Context, date time.Time, resType model.ReservationType, cabins int) (Decision, error) {
	date = model.Midnight(date)
	existing, err := c.Reservations.ListIntersecting(ctx, date, date)
	if err != nil {
		return Decision{}, fmt.Errorf("load intersecting reservations: %w", err)
	}
	block, err := c.Blocks.FindByDate(ctx, date)
	if err != nil {
		return Decision{}, fmt.Errorf("load availability block: %w", err)
	}
	return Evaluate(date, resType, cabins, existing, block, c.Policy, model.Midnight(c.Now())), nil
}

// CheckRange checks every day of [start, end] and returns the first
// unavailable decision, or an available one when the whole range is clear.
func (c *Checker) CheckRange(ctx context.Context, start, end time.Time, resType model.ReservationType, cabins int) (Decision, error) {
	start = model.Midnight(start)
	end = model.Midnight(end)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dec, err := c.Check(ctx, day, resType, cabins)
		if err != nil {
			return Decision{}, err
		}
		if !dec.Available {
			if dec.Reason != "" {
				dec.Reason = fmt.Sprintf("%s: %s", day.Format("2006-01-02"), dec.Reason)
			}
			return dec, nil
		}
	}
	return Decision{Available: true}, nil
}

// Evaluate applies the availability rules for one date.  existing are the
// reservations intersecting that date, block is the administrator record for
// the date (nil when absent) and today is the current date at midnight.
//
// Exclusivity always wins over partial sharing: a day-use or combined
// booking blocks the whole day for every other type, while cabin-only
// bookings made before an exclusive one are never retroactively evicted.
// Cabin capacity splits across two sources that are never double-counted:
// pending reservations contribute through the live sum here, and confirmed
// consumption is baked into the block's remaining-cabin counter, which the
// orchestrator adjusts on confirmation and cancellation.
func Evaluate(date time.Time, resType model.ReservationType, cabins int, existing []model.Reservation, block *model.AvailabilityBlock, policy config.Pricing, today time.Time) Decision {
	minDate := today.AddDate(0, 0, policy.MinAdvanceDays)
	if date.Before(minDate) {
		return Decision{Reason: fmt.Sprintf("reservations require at least %d days notice", policy.MinAdvanceDays)}
	}

	active := existing[:0:0]
	for _, r := range existing {
		if r.Status != model.StatusCancelled {
			active = append(active, r)
		}
	}

	switch {
	case resType.Exclusive():
		if block != nil && !block.DayUseAvailable {
			return Decision{Reason: "day use is closed on this date"}
		}
		for _, r := range active {
			if r.Type.Exclusive() {
				return Decision{Reason: "date already has an exclusive booking"}
			}
		}
		if resType == model.TypeCombined && cabins > 0 {
			return cabinDecision(cabins, active, block, policy)
		}
		return Decision{Available: true}

	case resType == model.TypeCabin:
		return cabinDecision(cabins, active, block, policy)

	case resType == model.TypeBaptism:
		if block != nil && !block.BaptismAvailable {
			return Decision{Reason: "ceremonies are closed on this date"}
		}
		for _, r := range active {
			if r.Type.Exclusive() {
				return Decision{Reason: "date already has an exclusive booking"}
			}
		}
		return Decision{Available: true}

	default:
		return Decision{Reason: fmt.Sprintf("unknown reservation type %q", resType)}
	}
}

// cabinDecision applies the shared cabin-capacity rule.  Pending intersecting
// reservations count against the remaining capacity reported by the block
// (or the configured maximum when the date has no block yet).
func cabinDecision(requested int, active []model.Reservation, block *model.AvailabilityBlock, policy config.Pricing) Decision {
	if requested <= 0 {
		return Decision{Reason: "cabin reservation requires at least one cabin"}
	}
	remaining := policy.MaxCabins
	if block != nil {
		remaining = block.CabinsAvailable
	}
	pending := 0
	for _, r := range active {
		if r.Type.UsesCabins() && r.Status == model.StatusPendingPayment {
			pending += r.Cabins
		}
	}
	if pending+requested > remaining {
		left := remaining - pending
		if left < 0 {
			left = 0
		}
		return Decision{Reason: fmt.Sprintf("only %d cabins left on this date", left)}
	}
	return Decision{Available: true}
}
