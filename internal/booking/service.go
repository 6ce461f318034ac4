// Package booking implements the reservation lifecycle orchestrator: it
// creates reservations against the availability rules, raises gateway
// charges, reconciles asynchronous webhook deliveries and drives every
// reservation status transition.  All clock reads go through an injected
// now() so core logic never touches ambient time.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/config"
	"github.com/recantodasaguas/reservation-api/internal/gateway/asaas"
	"github.com/recantodasaguas/reservation-api/internal/model"
	"github.com/recantodasaguas/reservation-api/internal/pricing"
	"github.com/recantodasaguas/reservation-api/internal/repository"
)

// Service is the reservation orchestrator.  It is safe for concurrent use:
// no in-process lock is held across repository, gateway or notification
// calls, and the stores provide the per-row atomicity guarantees.
type Service struct {
	reservations ReservationStore
	payments     PaymentStore
	capacity     CapacityStore
	guests       GuestStore
	checker      Checker
	gateway      Gateway
	notifier     Notifier
	policy       config.Pricing
	expiry       time.Duration // age after which an unpaid charge is swept
	now          func() time.Time
}

// NewService wires the orchestrator.  now may be nil (time.Now is used);
// every other dependency is required.
func NewService(
	reservations ReservationStore,
	payments PaymentStore,
	capacity CapacityStore,
	guests GuestStore,
	checker Checker,
	gateway Gateway,
	notifier Notifier,
	policy config.Pricing,
	expiry time.Duration,
	now func() time.Time,
) *Service {
	if reservations == nil || payments == nil || capacity == nil || guests == nil ||
		checker == nil || gateway == nil || notifier == nil {
		panic("nil dependency passed to booking.NewService")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		reservations: reservations,
		payments:     payments,
		capacity:     capacity,
		guests:       guests,
		checker:      checker,
		gateway:      gateway,
		notifier:     notifier,
		policy:       policy,
		expiry:       expiry,
		now:          now,
	}
}

// CreateParams carries everything needed to create a reservation through
// the public flow.  EndDate may be zero for a single-day booking.
type CreateParams struct {
	Type      model.ReservationType
	StartDate time.Time
	EndDate   time.Time
	Guests    int
	Cabins    int
	Notes     string
	Guest     model.Guest // contact profile; account is found-or-created
}

// CreateResult is the outcome of CreateReservation.  Payment is nil when
// the gateway charge could not be created; CheckoutErr then carries the
// cause and the reservation stays in PENDING_PAYMENT awaiting
// RetryCheckout.
type CreateResult struct {
	Reservation *model.Reservation
	Payment     *model.Payment
	CheckoutErr error
}

// Actor identifies who requested a lifecycle operation.
type Actor struct {
	Admin   bool
	GuestID uint64
	Label   string // free-form identity written to history ("admin:ana", "guest", "sweep")
}

func (p *CreateParams) normalize() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown reservation type %q", ErrValidation, p.Type)
	}
	if p.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	p.StartDate = model.Midnight(p.StartDate)
	if p.EndDate.IsZero() {
		p.EndDate = p.StartDate
	}
	p.EndDate = model.Midnight(p.EndDate)
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrValidation)
	}
	if p.Guests <= 0 && p.Type != model.TypeCabin {
		return fmt.Errorf("%w: headcount is required", ErrValidation)
	}
	if p.Cabins < 0 {
		return fmt.Errorf("%w: cabin count cannot be negative", ErrValidation)
	}
	if p.Type == model.TypeCabin && p.Cabins == 0 {
		return fmt.Errorf("%w: cabin reservation requires at least one cabin", ErrValidation)
	}
	p.Guest.Name = strings.TrimSpace(p.Guest.Name)
	p.Guest.Email = strings.TrimSpace(p.Guest.Email)
	p.Guest.Document = strings.TrimSpace(p.Guest.Document)
	if p.Guest.Name == "" || p.Guest.Email == "" || p.Guest.Document == "" {
		return fmt.Errorf("%w: guest name, email and document are required", ErrValidation)
	}
	return nil
}

// Quote prices a prospective reservation without touching storage.  It runs
// the exact same pricing math as CreateReservation, so the preview can never
// drift from what creation would charge.
func (s *Service) Quote(params CreateParams) (pricing.Quote, error) {
	if err := params.normalize(); err != nil {
		return pricing.Quote{}, err
	}
	q, err := pricing.ForRange(params.Type, params.Guests, params.Cabins, params.StartDate, params.EndDate, s.policy)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return q, nil
}

// CreateReservation validates availability, computes the price, persists
// the reservation in PENDING_PAYMENT and requests a gateway charge.  The
// reservation insert and the charge request are deliberately not one
// transaction: a gateway failure after the reservation row committed leaves
// the reservation retryable rather than rolled back, and no database lock
// is ever held across the gateway call.
func (s *Service) CreateReservation(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}

	dec, err := s.checker.CheckRange(ctx, params.StartDate, params.EndDate, params.Type, params.Cabins)
	if err != nil {
		return nil, err
	}
	if !dec.Available {
		return nil, fmt.Errorf("%w: %s", ErrAvailability, dec.Reason)
	}

	quote, err := pricing.ForRange(params.Type, params.Guests, params.Cabins, params.StartDate, params.EndDate, s.policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	guest := params.Guest
	if err := s.guests.FindOrCreate(ctx, &guest); err != nil {
		return nil, fmt.Errorf("resolve guest account: %w", err)
	}

	unit := quote.UnitCents
	if quote.UnitWithCabinsCents > 0 {
		unit = quote.UnitWithCabinsCents
	}
	res := &model.Reservation{
		AccessCode:      NewAccessCode(),
		GuestID:         guest.ID,
		Type:            params.Type,
		StartDate:       params.StartDate,
		EndDate:         params.EndDate,
		Guests:          params.Guests,
		Cabins:          params.Cabins,
		UnitPriceCents:  unit,
		TotalPriceCents: quote.TotalCents,
		Notes:           params.Notes,
		GuestName:       guest.Name,
		GuestEmail:      guest.Email,
		GuestPhone:      guest.Phone,
		GuestDocument:   guest.Document,
		Status:          model.StatusPendingPayment,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrAvailability, err)
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	result := &CreateResult{Reservation: res}
	payment, err := s.checkout(ctx, res, &guest)
	if err != nil {
		// The reservation row is committed; surface the failure but keep
		// the booking retryable instead of orphaning it silently.
		log.Printf("booking: checkout failed for %s: %v", res.Code, err)
		result.CheckoutErr = fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	} else {
		result.Payment = payment
	}

	link := ""
	if result.Payment != nil {
		link = result.Payment.PaymentLink
	}
	s.notify(ctx, "created", func() error { return s.notifier.ReservationCreated(ctx, res, link) })
	return result, nil
}

// RetryCheckout re-requests a gateway charge for a reservation whose
// earlier charge attempt failed.  It is idempotent: when an active payment
// record already exists its charge is returned instead of creating a
// duplicate.
func (s *Service) RetryCheckout(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	res, err := s.findReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusPendingPayment {
		return nil, fmt.Errorf("%w: reservation %s is not awaiting payment", ErrValidation, res.Code)
	}
	guest := model.Guest{
		ID:       res.GuestID,
		Name:     res.GuestName,
		Email:    res.GuestEmail,
		Phone:    res.GuestPhone,
		Document: res.GuestDocument,
	}
	payment, err := s.checkout(ctx, res, &guest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}
	s.notify(ctx, "payment status", func() error {
		return s.notifier.PaymentStatusChanged(ctx, res, payment.Status, payment.PaymentLink)
	})
	return payment, nil
}

// checkout raises a gateway charge for the reservation and persists the
// resulting payment record.  The gateway call happens before the database
// transaction so a gateway failure leaves no partial write, and an existing
// active payment short-circuits to prevent duplicate charges.
func (s *Service) checkout(ctx context.Context, res *model.Reservation, guest *model.Guest) (*model.Payment, error) {
	existing, err := s.payments.FindActiveByReservation(ctx, res.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	customerRef := guest.GatewayRef
	if customerRef == "" {
		customerRef, err = s.gateway.FindOrCreateCustomer(ctx, asaas.Customer{
			Name:     guest.Name,
			Email:    guest.Email,
			Phone:    guest.Phone,
			Document: guest.Document,
		})
		if err != nil {
			return nil, err
		}
		if guest.ID != 0 {
			if err := s.guests.UpdateGatewayRef(ctx, guest.ID, customerRef); err != nil {
				log.Printf("booking: store gateway ref for guest %d: %v", guest.ID, err)
			}
		}
	}

	charge, err := s.gateway.CreateCharge(ctx, asaas.ChargeRequest{
		CustomerRef: customerRef,
		AmountCents: res.TotalPriceCents,
		DueDate:     s.now().Add(s.expiry),
		Description: fmt.Sprintf("Reservation %s (%s)", res.Code, res.Type),
		ExternalRef: res.Code,
	})
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ReservationID: res.ID,
		Status:        asaas.MapStatus(charge.Status),
		ChargeID:      charge.ID,
		AmountCents:   res.TotalPriceCents,
		PaymentLink:   charge.PaymentLink,
	}
	detail := fmt.Sprintf("charge %s amount=%d", charge.ID, res.TotalPriceCents)
	if err := s.payments.CreateWithHistory(ctx, payment, "checkout_created", detail); err != nil {
		return nil, err
	}
	return payment, nil
}

// CancelReservation cancels a reservation, voiding every active gateway
// charge and releasing held capacity.  Guests may only cancel their own
// unpaid reservations; administrators may cancel at any payment state.
// Cancelling an already-cancelled reservation is a no-op.
func (s *Service) CancelReservation(ctx context.Context, reservationID uint64, reason string, actor Actor) error {
	res, err := s.findReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.Status == model.StatusCancelled {
		return nil
	}
	if !model.CanTransition(res.Status, model.StatusCancelled) {
		return fmt.Errorf("%w: reservation %s is already %s", ErrValidation, res.Code, res.Status)
	}
	if !actor.Admin {
		if res.GuestID != actor.GuestID {
			return ErrForbidden
		}
		if res.Status != model.StatusPendingPayment {
			return fmt.Errorf("%w: paid reservations can only be cancelled by an administrator", ErrForbidden)
		}
	}

	wasConfirmed := res.Status == model.StatusConfirmed || res.Status == model.StatusInProgress

	payments, err := s.payments.ListByReservation(ctx, res.ID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	for i := range payments {
		p := &payments[i]
		if p.Status == model.PaymentCancelled || p.Status == model.PaymentRefunded {
			continue
		}
		if p.ChargeID != "" {
			if _, err := s.gateway.CancelCharge(ctx, p.ChargeID); err != nil {
				// The gateway cancel is best-effort; the webhook for the
				// eventual deletion reconciles idempotently.
				log.Printf("booking: cancel charge %s: %v", p.ChargeID, err)
			}
		}
		p.Status = model.PaymentCancelled
		if err := s.payments.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment %d: %w", p.ID, err)
		}
	}

	if err := s.reservations.UpdateStatus(ctx, res.ID, model.StatusCancelled); err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	detail := fmt.Sprintf("by=%s reason=%s", actor.Label, reason)
	if err := s.reservations.AppendHistory(ctx, res.ID, "cancelled", detail); err != nil {
		log.Printf("booking: append history for %s: %v", res.Code, err)
	}
	if wasConfirmed {
		s.releaseCapacity(ctx, res)
	}
	res.Status = model.StatusCancelled
	s.notify(ctx, "canceled", func() error { return s.notifier.ReservationCanceled(ctx, res, reason) })
	return nil
}

// ExpireStale sweeps unpaid reservations whose charge aged past the expiry
// threshold.  Each candidate's gateway status is re-checked first so a
// charge that was paid but whose webhook has not landed yet is never
// expired.  It returns the number of reservations cancelled.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.expiry)
	stale, err := s.payments.FindExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan expired payments: %w", err)
	}
	expired := 0
	for i := range stale {
		p := &stale[i]
		if p.ChargeID != "" {
			native, err := s.gateway.ChargeStatus(ctx, p.ChargeID)
			if err != nil {
				log.Printf("booking: gateway status for charge %s: %v", p.ChargeID, err)
				continue
			}
			if asaas.MapStatus(native) != model.PaymentPending {
				// The charge moved on; let the webhook (or the next sweep
				// after reconciliation) handle it.
				continue
			}
		}
		err := s.CancelReservation(ctx, p.ReservationID, "payment expired", Actor{Admin: true, Label: "sweep"})
		if err != nil {
			log.Printf("booking: expire reservation %d: %v", p.ReservationID, err)
			continue
		}
		expired++
	}
	return expired, nil
}

// consumeCapacity decrements each day's cabin counter for a reservation
// that just confirmed.
func (s *Service) consumeCapacity(ctx context.Context, res *model.Reservation) {
	s.adjustCapacity(ctx, res, -res.Cabins)
}

// releaseCapacity is the inverse of consumeCapacity.
func (s *Service) releaseCapacity(ctx context.Context, res *model.Reservation) {
	s.adjustCapacity(ctx, res, res.Cabins)
}

func (s *Service) adjustCapacity(ctx context.Context, res *model.Reservation, delta int) {
	if !res.Type.UsesCabins() || delta == 0 {
		return
	}
	for day := res.StartDate; !day.After(res.EndDate); day = day.AddDate(0, 0, 1) {
		if err := s.capacity.AdjustCabins(ctx, day, delta, s.policy.MaxCabins); err != nil {
			log.Printf("booking: adjust cabins on %s by %d: %v", day.Format("2006-01-02"), delta, err)
		}
	}
}

func (s *Service) findReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
		}
		return nil, err
	}
	return res, nil
}

// notify runs a notification call and logs failures.  Notification delivery
// never fails the triggering operation.
func (s *Service) notify(ctx context.Context, kind string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("booking: %s notification failed: %v", kind, err)
	}
}
