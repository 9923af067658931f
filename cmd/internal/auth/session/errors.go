package session

import "errors"

var (
	// ErrNoSession is returned when no refresh record exists for a user.
	ErrNoSession = errors.New("no active session")

	// ErrTokenMismatch is returned by Rotate when the presented token is not
	// byte-identical to the stored one (or no record exists). Callers treat
	// this as refresh-token reuse.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)
