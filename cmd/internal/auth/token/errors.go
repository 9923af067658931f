package token

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid token config")

	// ErrTokenMalformed is returned when a token fails parsing or signature
	// verification.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired is returned when a well-formed, correctly signed token
	// is past its expiry. Kept distinct from ErrTokenMalformed so clients can
	// silently re-authenticate instead of surfacing an error.
	ErrTokenExpired = errors.New("token expired")
)
