// Package repository implements MySQL persistence for reservations,
// payments, availability blocks and guests.  This file defines error
// values reused across the repositories so that higher layers can
// distinguish failure scenarios with errors.Is instead of inspecting
// driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Handlers should
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of competing
// state observed under lock: an exclusive booking already holds the date,
// the cabin capacity is exhausted, or a reservation code collision survived
// the retry.  Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")
