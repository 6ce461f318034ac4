package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

// GuestRepo persists guest accounts and back-office admin users.  Guests
// created through the public reservation flow have no credentials; the
// document number (CPF/CNPJ) is their natural key.
type GuestRepo struct {
	db *sql.DB
}

// NewGuestRepo returns a GuestRepo bound to the given database.
func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

// FindOrCreate looks a guest up by document and creates the record when it
// does not exist.  On return g carries the stored ID and gateway reference.
// Contact fields on an existing guest are refreshed from g so the latest
// reservation always reflects what the guest typed; the snapshot copied
// onto each reservation preserves the historical values.
func (r *GuestRepo) FindOrCreate(ctx context.Context, g *model.Guest) error {
	const sel = `SELECT id, name, email, phone, document, gateway_ref, created_at, updated_at
				 FROM guests WHERE document = ?`
	var existing model.Guest
	err := r.db.QueryRowContext(ctx, sel, g.Document).Scan(
		&existing.ID, &existing.Name, &existing.Email, &existing.Phone,
		&existing.Document, &existing.GatewayRef, &existing.CreatedAt, &existing.UpdatedAt,
	)
	switch {
	case err == nil:
		g.ID = existing.ID
		g.GatewayRef = existing.GatewayRef
		g.CreatedAt = existing.CreatedAt
		const upd = `UPDATE guests SET name = ?, email = ?, phone = ? WHERE id = ?`
		_, err = r.db.ExecContext(ctx, upd, g.Name, g.Email, g.Phone, g.ID)
		return err
	case errors.Is(err, sql.ErrNoRows):
		const ins = `INSERT INTO guests (name, email, phone, document, gateway_ref) VALUES (?, ?, ?, ?, ?)`
		result, err := r.db.ExecContext(ctx, ins, g.Name, g.Email, g.Phone, g.Document, g.GatewayRef)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		g.ID = uint64(id)
		return nil
	default:
		return err
	}
}

// UpdateGatewayRef stores the gateway customer identifier once the guest is
// registered with the payment provider, so later charges skip the
// find-or-create round-trip.
func (r *GuestRepo) UpdateGatewayRef(ctx context.Context, id uint64, ref string) error {
	const q = `UPDATE guests SET gateway_ref = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, ref, id)
	return err
}

// UpsertAdmin creates a back-office admin or replaces the stored password
// hash when the email already exists.  Used by the startup bootstrap so a
// fresh deployment has a usable admin account without manual SQL.
func (r *GuestRepo) UpsertAdmin(ctx context.Context, email, passwordHash string) error {
	const q = `INSERT INTO admins (email, password_hash) VALUES (?, ?)
			   ON DUPLICATE KEY UPDATE password_hash = VALUES(password_hash)`
	_, err := r.db.ExecContext(ctx, q, email, passwordHash)
	return err
}

// FindAdminByEmail returns a back-office admin by email, or ErrNotFound.
func (r *GuestRepo) FindAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admins WHERE email = ?`
	var a model.Admin
	err := r.db.QueryRowContext(ctx, q, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
