package model

import "time"

// Guest is a venue customer.  Guests created through the public reservation
// flow have no password; they look bookings up with the reservation access
// code instead of a session.  The document number (CPF/CNPJ) is the natural
// key used both locally and when registering the customer with the payment
// gateway.
type Guest struct {
	ID          uint64    // guests.id
	Name        string    // guests.name
	Email       string    // guests.email
	Phone       string    // guests.phone
	Document    string    // guests.document (CPF/CNPJ, unique)
	GatewayRef  string    // guests.gateway_ref (gateway customer id, once known)
	CreatedAt   time.Time // guests.created_at
	UpdatedAt   time.Time // guests.updated_at
}

// Admin is a back-office operator able to manage blocks and reservations.
// Passwords are stored as bcrypt hashes.
type Admin struct {
	ID           uint64    // admins.id
	Email        string    // admins.email (unique)
	PasswordHash string    // admins.password_hash
	CreatedAt    time.Time // admins.created_at
}
