// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the scan arbiter to distinguish failure scenarios: for
// example, ErrAlreadyScanned reports that a conditional redemption write
// did not apply because the ticket was no longer unscanned, while
// ErrDuplicateCode signals that a generated code collided with one
// already persisted and only that slot needs regenerating.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyScanned is returned by MarkScanned when the ticket's
// scanned flag was already true at the moment of the write. It is a
// normal business outcome, not a system fault, and is never retried
// by the repository itself.
var ErrAlreadyScanned = errors.New("ticket already scanned")

// ErrDuplicateCode is returned when inserting a ticket whose code is
// already in use anywhere in the system. The colliding insert is
// retryable after regenerating only the offending code.
var ErrDuplicateCode = errors.New("duplicate ticket code")
