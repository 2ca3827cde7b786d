package auth

import "errors"

var (
	// ErrUnauthenticated covers a missing token, a bad or expired token, and a
	// token whose subject no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is an authenticated identity lacking the required role.
	ErrForbidden = errors.New("forbidden")
)

// Rejection reasons, used for logs and metrics only. Clients see two messages.
const (
	ReasonNoToken        = "no_token"
	ReasonInvalidToken   = "invalid_token"
	ReasonExpiredToken   = "expired_token"
	ReasonUnknownSubject = "unknown_subject"
)

// RejectError carries the internal reason behind ErrUnauthenticated.
type RejectError struct {
	Reason string
}

func (e RejectError) Error() string { return "auth: " + e.Reason }

func (e RejectError) Unwrap() error { return ErrUnauthenticated }
