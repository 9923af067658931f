package engine

import "errors"

// Sentinel errors returned by the engine. The HTTP layer maps these to
// status codes with a pure errors.Is switch; the engine itself never sees
// transport concerns.
var (
	// ErrUnsupportedLoginType rejects a login type outside {standard, social}.
	ErrUnsupportedLoginType = errors.New("unsupported login type")

	// ErrInvalidCredentials covers a wrong password or a social-only account
	// presented with one.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound means no account exists for the identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrAccountLocked is terminal for the attempt; no token is issued.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountBlocked rejects blocked accounts even with correct credentials.
	ErrAccountBlocked = errors.New("account blocked")

	// ErrLoginCodeInvalid covers a missing, expired, or already-consumed
	// social login code, and a failed PKCE verification.
	ErrLoginCodeInvalid = errors.New("login code invalid")

	// ErrOTPExpired means the code is past its expiry; a fresh login is needed.
	ErrOTPExpired = errors.New("otp expired")

	// ErrOTPInvalid means the submitted code did not match.
	ErrOTPInvalid = errors.New("invalid otp")

	// ErrOTPLocked means repeated bad codes have locked the account.
	ErrOTPLocked = errors.New("otp attempts exhausted")

	// ErrRefreshMalformed rejects a refresh token that fails signature or
	// shape checks.
	ErrRefreshMalformed = errors.New("malformed refresh token")

	// ErrRefreshExpired is distinct from ErrRefreshMalformed so clients can
	// silently re-authenticate instead of surfacing an error.
	ErrRefreshExpired = errors.New("expired refresh token")

	// ErrRefreshReuse means a validly signed refresh token was presented that
	// is not the currently stored one. The stored session has already been
	// revoked by the time this error is returned.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrTwoFactorUnchanged rejects a toggle to the state the flag already
	// holds, surfacing client-side state bugs early.
	ErrTwoFactorUnchanged = errors.New("two-factor state unchanged")
)
