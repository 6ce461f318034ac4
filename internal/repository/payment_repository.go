package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

// PaymentRepo provides persistence for payment records.  Payments are never
// hard-deleted: cancellation is a status transition and superseded records
// stay behind for audit.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateWithHistory inserts a payment record and appends the matching
// reservation history entry in one transaction, so a failure leaves neither
// a dangling payment nor a history line for a payment that was never
// written.  The gateway call that produced the charge must happen before
// this method is invoked; no lock is held across external calls.
func (r *PaymentRepo) CreateWithHistory(ctx context.Context, p *model.Payment, action, detail string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO payments
		(reservation_id, status, charge_id, checkout_id, legacy_id,
		 amount_cents, paid_at, receipt_url, payment_link, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, ins,
		p.ReservationID, p.Status, p.ChargeID, p.CheckoutID, p.LegacyID,
		p.AmountCents, p.PaidAt, p.ReceiptURL, p.PaymentLink, nullableJSON(p.RawPayload),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)

	const hist = `INSERT INTO reservation_history (reservation_id, action, detail) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, hist, p.ReservationID, action, detail); err != nil {
		return err
	}

	const sel = `SELECT created_at, updated_at FROM payments WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const paymentColumns = `id, reservation_id, status, charge_id, checkout_id, legacy_id,
	amount_cents, paid_at, receipt_url, payment_link, raw_payload, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var paidAt sql.NullTime
	var raw sql.NullString
	err := row.Scan(
		&p.ID, &p.ReservationID, &p.Status, &p.ChargeID, &p.CheckoutID, &p.LegacyID,
		&p.AmountCents, &paidAt, &p.ReceiptURL, &p.PaymentLink, &raw,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if raw.Valid {
		p.RawPayload = []byte(raw.String)
	}
	return &p, nil
}

// FindActiveByReservation returns the reservation's active payment record:
// the newest one that has not been cancelled or refunded.  ErrNotFound means
// the reservation currently has no active charge.
func (r *PaymentRepo) FindActiveByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
		  WHERE reservation_id = ? AND status NOT IN ('CANCELLED', 'REFUNDED')
		  ORDER BY id DESC LIMIT 1`
	return scanPayment(r.db.QueryRowContext(ctx, q, reservationID))
}

// ListByReservation returns every payment record for a reservation, oldest
// first, including superseded ones.
func (r *PaymentRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByGatewayID resolves a payment record from a gateway identifier.
// Resolution order is fixed: charge id first, then checkout/session id,
// then the legacy id field; the first match wins.  ErrNotFound is returned
// when no field matches.
func (r *PaymentRepo) FindByGatewayID(ctx context.Context, gatewayID string) (*model.Payment, error) {
	if gatewayID == "" {
		return nil, ErrNotFound
	}
	for _, col := range []string{"charge_id", "checkout_id", "legacy_id"} {
		q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + col + ` = ? ORDER BY id DESC LIMIT 1`
		p, err := scanPayment(r.db.QueryRowContext(ctx, q, gatewayID))
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Update persists the mutable fields of a payment record in place.
func (r *PaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	const q = `UPDATE payments
			   SET status = ?, paid_at = ?, receipt_url = ?, payment_link = ?, raw_payload = ?
			   WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q,
		p.Status, p.PaidAt, p.ReceiptURL, p.PaymentLink, nullableJSON(p.RawPayload), p.ID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindExpiredPending returns pending payments created before the given
// cutoff.  The expiry sweep feeds these through the cancellation path after
// re-checking the gateway status.
func (r *PaymentRepo) FindExpiredPending(ctx context.Context, before time.Time) ([]model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
		  WHERE status = 'PENDING' AND created_at < ?
		  ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullableJSON stores empty payload snapshots as NULL instead of an empty
// string so the column stays queryable as JSON.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
