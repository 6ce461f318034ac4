package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

// AvailabilityRepo persists the per-day administrator blocks.  At most one
// row exists per calendar date; the date column carries a unique key and
// every lookup normalizes to midnight UTC first.
type AvailabilityRepo struct {
	db *sql.DB
}

// NewAvailabilityRepo returns an AvailabilityRepo bound to the given
// database.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

const blockColumns = `id, date, day_use_available, baptism_available, cabins_available, notes, created_at, updated_at`

func scanBlock(row interface{ Scan(...any) error }) (*model.AvailabilityBlock, error) {
	var b model.AvailabilityBlock
	err := row.Scan(&b.ID, &b.Date, &b.DayUseAvailable, &b.BaptismAvailable,
		&b.CabinsAvailable, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindByDate returns the block for a date, or (nil, nil) when the date has
// no block record.  Absence is the common case and not an error.
func (r *AvailabilityRepo) FindByDate(ctx context.Context, date time.Time) (*model.AvailabilityBlock, error) {
	q := `SELECT ` + blockColumns + ` FROM availability_blocks WHERE date = ?`
	b, err := scanBlock(r.db.QueryRowContext(ctx, q, model.Midnight(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// ListRange returns all blocks with dates inside [from, to] in date order.
func (r *AvailabilityRepo) ListRange(ctx context.Context, from, to time.Time) ([]model.AvailabilityBlock, error) {
	q := `SELECT ` + blockColumns + ` FROM availability_blocks WHERE date BETWEEN ? AND ? ORDER BY date`
	rows, err := r.db.QueryContext(ctx, q, model.Midnight(from), model.Midnight(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AvailabilityBlock, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertRange writes one block row per day of [start, end] with the given
// flags, creating missing rows and overwriting existing ones.  Used by the
// administrator blackout endpoint.
func (r *AvailabilityRepo) UpsertRange(ctx context.Context, start, end time.Time, flags model.AvailabilityBlock) error {
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

	const q = `INSERT INTO availability_blocks
		(date, day_use_available, baptism_available, cabins_available, notes)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		day_use_available = VALUES(day_use_available),
		baptism_available = VALUES(baptism_available),
		cabins_available = VALUES(cabins_available),
		notes = VALUES(notes)`
	start = model.Midnight(start)
	end = model.Midnight(end)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if _, err := tx.ExecContext(ctx, q, day,
			flags.DayUseAvailable, flags.BaptismAvailable, flags.CabinsAvailable, flags.Notes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AdjustCabins atomically changes a date's remaining cabin count by delta,
// lazily creating the block row when the date has none yet.  The row starts
// from defaultCap so a decrement on a fresh date yields defaultCap+delta.
// The single INSERT..ON DUPLICATE KEY UPDATE statement is the per-(date)
// mutation unit: concurrent confirm/cancel operations on the same date
// serialize on the row instead of racing past each other.
func (r *AvailabilityRepo) AdjustCabins(ctx context.Context, date time.Time, delta, defaultCap int) error {
	const q = `INSERT INTO availability_blocks
		(date, day_use_available, baptism_available, cabins_available)
		VALUES (?, TRUE, TRUE, ?)
		ON DUPLICATE KEY UPDATE cabins_available = GREATEST(0, cabins_available + ?)`
	_, err := r.db.ExecContext(ctx, q, model.Midnight(date), defaultCap+delta, delta)
	return err
}

// DeleteByID removes an administrator block.  ErrNotFound is returned when
// the id does not exist.
func (r *AvailabilityRepo) DeleteByID(ctx context.Context, id uint64) error {
	const q = `DELETE FROM availability_blocks WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, id)
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
