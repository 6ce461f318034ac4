// Package pricing computes reservation prices from the venue's pricing
// policy.  Everything here is pure: the same inputs always produce the same
// quote, and both the price-preview endpoint and the reservation creation
// path call into the single Calculate function so the two can never drift.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/config"
	"github.com/recantodasaguas/reservation-api/internal/model"
)

// ErrHeadcountExceeded is returned when the requested headcount is above
// every configured tier ceiling.  This is a validation failure, never a
// silent fallback to the top tier.
var ErrHeadcountExceeded = errors.New("headcount exceeds every pricing tier")

// ErrInvalidCabinCount is returned for cabin-only pricing with zero cabins.
var ErrInvalidCabinCount = errors.New("cabin reservation requires at least one cabin")

// ErrUnknownType is returned for a reservation type outside the known
// enumeration.  Unknown types are a hard error, never priced as zero.
var ErrUnknownType = errors.New("unknown reservation type")

// Quote is the result of a price calculation.  All amounts are in cents.
// UnitWithCabinsCents is only set for day-use bookings that add cabins; it
// is the nightly price including the cabin surcharge.
type Quote struct {
	UnitCents           int64 // nightly base price
	UnitWithCabinsCents int64 // nightly price including cabins, 0 when no cabins added
	TotalCents          int64 // total for the whole stay
	Nights              int   // billable nights used for the total
}

// Calculate prices a reservation.  nights must be at least one; use
// model.NightCount to derive it from a date range.  The day-use tier scan
// walks the configured tiers in ascending ceiling order and the first tier
// whose ceiling is >= guests wins.
func Calculate(resType model.ReservationType, guests, cabins, nights int, cfg config.Pricing) (Quote, error) {
	if nights < 1 {
		nights = 1
	}
	switch resType {
	case model.TypeDayUse, model.TypeCombined:
		unit, err := tierPrice(guests, cfg.Tiers)
		if err != nil {
			return Quote{}, err
		}
		q := Quote{UnitCents: unit, Nights: nights}
		if cabins > 0 {
			q.UnitWithCabinsCents = unit + int64(cabins)*cfg.CabinPriceCents
			q.TotalCents = q.UnitWithCabinsCents * int64(nights)
		} else {
			q.TotalCents = unit * int64(nights)
		}
		return q, nil
	case model.TypeCabin:
		if cabins <= 0 {
			return Quote{}, ErrInvalidCabinCount
		}
		unit := int64(cabins) * cfg.CabinPriceCents
		return Quote{UnitCents: unit, TotalCents: unit * int64(nights), Nights: nights}, nil
	case model.TypeBaptism:
		// Flat ceremony price; the slot is time-boxed so nights are ignored.
		return Quote{UnitCents: cfg.BaptismPriceCents, TotalCents: cfg.BaptismPriceCents, Nights: 1}, nil
	default:
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownType, resType)
	}
}

// ForRange prices a reservation over a date range, deriving the night count
// from the dates.
func ForRange(resType model.ReservationType, guests, cabins int, start, end time.Time, cfg config.Pricing) (Quote, error) {
	return Calculate(resType, guests, cabins, model.NightCount(start, end), cfg)
}

// tierPrice scans tiers in ascending ceiling order and returns the price of
// the first tier that accommodates the headcount.
func tierPrice(guests int, tiers []config.Tier) (int64, error) {
	for _, t := range tiers {
		if t.MaxGuests >= guests {
			return t.PriceCents, nil
		}
	}
	return 0, fmt.Errorf("%w: %d guests", ErrHeadcountExceeded, guests)
}
