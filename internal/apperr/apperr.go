// Package apperr defines the error taxonomy shared by the stores and the
// HTTP handlers. Handlers map these to status codes; anything else is a 500
// and never reaches the caller verbatim.
package apperr

import "errors"

// Sentinel errors for handlers to map to HTTP status.
var (
	// ErrInvalidCredentials covers both "no such user" and "bad password"
	// so login failures cannot be used for user enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrNotFound also covers "exists but owned by another tenant" so a
	// failed lookup never confirms another user's rows.
	ErrNotFound = errors.New("not found")
)

// Conflict reports a uniqueness violation attributed to a specific field
// (ip, domain, email) so the caller can point at the offending input.
type Conflict struct {
	Field   string
	Message string
}

func (e *Conflict) Error() string { return e.Message }

// InvalidArgument reports malformed, missing, or out-of-range input. Field
// is empty when the failure is not attributable to a single input.
type InvalidArgument struct {
	Field   string
	Message string
}

func (e *InvalidArgument) Error() string { return e.Message }
