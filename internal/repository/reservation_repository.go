package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

// codePrefix is the fixed prefix of human-readable reservation codes.  The
// numeric suffix is allocated monotonically under lock.
const codePrefix = "RSV-"

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

// ReservationRepo provides CRUD and query operations for reservations and
// their append-only history.  All timestamp fields are stored in UTC and
// booking dates are normalized to midnight UTC.
type ReservationRepo struct {
	db        *sql.DB
	maxCabins int // default cabin capacity used by the create-time re-check
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
// maxCabins is the venue's configured cabin count, used as the capacity
// default for dates without an availability block.
func NewReservationRepo(db *sql.DB, maxCabins int) *ReservationRepo {
	return &ReservationRepo{db: db, maxCabins: maxCabins}
}

// Create persists a new reservation inside a single transaction.  The
// transaction (a) re-checks date conflicts under row locks so two
// concurrent exclusive bookings for the same date cannot both commit,
// (b) allocates the next reservation code from the highest existing numeric
// suffix, and (c) appends the initial history entry.  A code collision from
// a racing writer is retried once before surfacing ErrConflict.  On success
// the generated ID, code and timestamps are populated on res.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	err := r.createOnce(ctx, res)
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry && strings.Contains(me.Message, "code") {
		// A concurrent writer raced ahead on the code counter; retry once.
		if err2 := r.createOnce(ctx, res); err2 == nil {
			return nil
		}
		return fmt.Errorf("%w: reservation code collision", ErrConflict)
	}
	return err
}

func (r *ReservationRepo) createOnce(ctx context.Context, res *model.Reservation) error {
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

	if err := r.checkConflictsTx(ctx, tx, res); err != nil {
		return err
	}

	// Allocate the next code under lock so concurrent creates serialize on
	// the counter instead of racing to the same suffix.
	const maxQ = `SELECT COALESCE(MAX(CAST(SUBSTRING(code, ?) AS UNSIGNED)), 0)
				  FROM reservations FOR UPDATE`
	var highest uint64
	if err := tx.QueryRowContext(ctx, maxQ, len(codePrefix)+1).Scan(&highest); err != nil {
		return err
	}
	res.Code = fmt.Sprintf("%s%d", codePrefix, highest+1)

	const ins = `INSERT INTO reservations
		(code, access_code, guest_id, type, start_date, end_date, guests, cabins,
		 unit_price_cents, total_price_cents, notes,
		 guest_name, guest_email, guest_phone, guest_document, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, ins,
		res.Code, res.AccessCode, res.GuestID, res.Type,
		res.StartDate, res.EndDate, res.Guests, res.Cabins,
		res.UnitPriceCents, res.TotalPriceCents, res.Notes,
		res.GuestName, res.GuestEmail, res.GuestPhone, res.GuestDocument,
		res.Status,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	const hist = `INSERT INTO reservation_history (reservation_id, action, detail) VALUES (?, ?, ?)`
	detail := fmt.Sprintf("type=%s dates=%s..%s total=%d",
		res.Type, res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"), res.TotalPriceCents)
	if _, err := tx.ExecContext(ctx, hist, res.ID, "created", detail); err != nil {
		return err
	}

	// Query back timestamps populated by column defaults.
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// checkConflictsTx re-validates date conflicts inside the create
// transaction.  The availability checker already produced a user-facing
// answer before the write; this locked re-check is the authoritative guard
// against two requests racing past the read.
func (r *ReservationRepo) checkConflictsTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	if res.Type.Exclusive() || res.Type == model.TypeBaptism {
		const q = `SELECT COUNT(*) FROM reservations
				   WHERE status <> 'CANCELLED'
					 AND type IN ('DAY_USE', 'DAY_USE_CABIN')
					 AND start_date <= ? AND end_date >= ?
				   FOR UPDATE`
		var n int
		if err := tx.QueryRowContext(ctx, q, res.EndDate, res.StartDate).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: date already has an exclusive booking", ErrConflict)
		}
	}
	if res.Type.UsesCabins() && res.Cabins > 0 {
		const sumQ = `SELECT COALESCE(SUM(cabins), 0) FROM reservations
					  WHERE status = 'PENDING_PAYMENT'
						AND type IN ('CABIN', 'DAY_USE_CABIN')
						AND start_date <= ? AND end_date >= ?
					  FOR UPDATE`
		var pending int
		if err := tx.QueryRowContext(ctx, sumQ, res.EndDate, res.StartDate).Scan(&pending); err != nil {
			return err
		}
		const capQ = `SELECT COALESCE(MIN(cabins_available), ?) FROM availability_blocks
					  WHERE date BETWEEN ? AND ?
					  FOR UPDATE`
		var remaining int
		if err := tx.QueryRowContext(ctx, capQ, r.maxCabins, res.StartDate, res.EndDate).Scan(&remaining); err != nil {
			return err
		}
		if pending+res.Cabins > remaining {
			return fmt.Errorf("%w: not enough cabins left for the requested dates", ErrConflict)
		}
	}
	return nil
}

const reservationColumns = `id, code, access_code, guest_id, type, start_date, end_date,
	guests, cabins, unit_price_cents, total_price_cents, notes,
	guest_name, guest_email, guest_phone, guest_document, status, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(
		&res.ID, &res.Code, &res.AccessCode, &res.GuestID, &res.Type,
		&res.StartDate, &res.EndDate, &res.Guests, &res.Cabins,
		&res.UnitPriceCents, &res.TotalPriceCents, &res.Notes,
		&res.GuestName, &res.GuestEmail, &res.GuestPhone, &res.GuestDocument,
		&res.Status, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindByID returns a reservation by primary key, or ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// FindByCode returns a reservation by its human-readable code, or
// ErrNotFound.
func (r *ReservationRepo) FindByCode(ctx context.Context, code string) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE code = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, code))
}

// FindByGuest returns all reservations owned by a guest, newest first.
func (r *ReservationRepo) FindByGuest(ctx context.Context, guestID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE guest_id = ? ORDER BY created_at DESC`
	return r.queryMany(ctx, q, guestID)
}

// ListIntersecting returns the non-cancelled reservations whose inclusive
// [start_date, end_date] range intersects [start, end].
func (r *ReservationRepo) ListIntersecting(ctx context.Context, start, end time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		  WHERE status <> 'CANCELLED' AND start_date <= ? AND end_date >= ?
		  ORDER BY start_date, id`
	return r.queryMany(ctx, q, end, start)
}

// ListRange returns every reservation (any status) starting inside
// [from, to], newest first.  Used by the admin listing.
func (r *ReservationRepo) ListRange(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		  WHERE start_date BETWEEN ? AND ?
		  ORDER BY start_date DESC, id DESC`
	return r.queryMany(ctx, q, from, to)
}

func (r *ReservationRepo) queryMany(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus sets a reservation's status.  The caller is responsible for
// validating the transition with model.CanTransition.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, status, id)
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

// AppendHistory adds one entry to a reservation's lifecycle log.
func (r *ReservationRepo) AppendHistory(ctx context.Context, id uint64, action, detail string) error {
	const q = `INSERT INTO reservation_history (reservation_id, action, detail) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, id, action, detail)
	return err
}

// History returns a reservation's history entries in insertion order.
func (r *ReservationRepo) History(ctx context.Context, id uint64) ([]model.HistoryEntry, error) {
	const q = `SELECT id, reservation_id, action, detail, created_at
			   FROM reservation_history WHERE reservation_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
