package auth

import "errors"

// Domain failures are expected outcomes and cross the HTTP boundary as
// stable error kinds. Anything else is treated as internal and logged
// with full detail before being masked.
var (
	ErrAccountExists         = errors.New("account already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrDeliveryFailed        = errors.New("reset email delivery failed")
)
