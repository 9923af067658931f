package codes

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCodeNotFound is returned when the login code is missing or expired.
	ErrCodeNotFound = errors.New("login code not found")

	// ErrChallengeMismatch is returned when the verifier does not hash to the
	// stored challenge. The code is NOT consumed in this case.
	ErrChallengeMismatch = errors.New("code challenge mismatch")
)

// LoginCode binds an authorization code to the email it was issued for and
// the PKCE challenge the client committed to.
type LoginCode struct {
	Email     string
	Challenge string
}

// Store is the ephemeral code boundary consumed by the authentication engine.
type Store interface {
	// CreateLoginCode stores a fresh single-use code and returns it.
	CreateLoginCode(ctx context.Context, email, challenge string, ttl time.Duration) (string, error)

	// ConsumeLoginCode atomically verifies the challenge and deletes the code.
	// Missing/expired codes return ErrCodeNotFound; a challenge mismatch
	// returns ErrChallengeMismatch and leaves the code intact so a retry with
	// the correct verifier can still succeed.
	ConsumeLoginCode(ctx context.Context, code, challenge string) (email string, err error)
}
