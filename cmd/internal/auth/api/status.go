package authapi

import (
	"errors"
	"net/http"

	"aegis/cmd/identity"
	"aegis/cmd/internal/auth/engine"
)

// ActionRevokeAllSessions tells the client to drop every cached session and
// force re-authentication on all devices.
const ActionRevokeAllSessions = "revoke_all_sessions"

// errorStatus is the single mapping from engine errors to the HTTP contract.
// It is a pure function; handlers never pick status codes ad hoc.
func errorStatus(err error) (status int, code, msg, action string) {
	switch {
	case errors.Is(err, engine.ErrUnsupportedLoginType):
		return http.StatusBadRequest, "invalid_request", "unsupported login type", ""
	case errors.Is(err, engine.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials", ""
	case errors.Is(err, engine.ErrLoginCodeInvalid):
		return http.StatusUnauthorized, "unauthorized", "login code rejected", ""
	case errors.Is(err, engine.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "user not found", ""
	case errors.Is(err, engine.ErrAccountLocked):
		return http.StatusLocked, "account_locked", "account is locked", ""
	case errors.Is(err, engine.ErrAccountBlocked):
		return http.StatusConflict, "account_blocked", "account is blocked", ""
	case errors.Is(err, engine.ErrOTPExpired):
		return http.StatusUnauthorized, "otp_expired", "otp expired, log in again", ""
	case errors.Is(err, engine.ErrOTPInvalid):
		return http.StatusUnauthorized, "invalid_otp", "invalid otp", ""
	case errors.Is(err, engine.ErrOTPLocked):
		return http.StatusUnauthorized, "otp_locked", "too many otp attempts", ""
	case errors.Is(err, engine.ErrRefreshExpired):
		// Distinct code so clients can silently re-authenticate.
		return http.StatusUnauthorized, "token_expired", "expired refresh token", ""
	case errors.Is(err, engine.ErrRefreshMalformed):
		return http.StatusUnauthorized, "unauthorized", "invalid refresh token", ""
	case errors.Is(err, engine.ErrRefreshReuse):
		return http.StatusForbidden, "reuse_detected", "refresh token reuse detected", ActionRevokeAllSessions
	case errors.Is(err, engine.ErrTwoFactorUnchanged):
		return http.StatusConflict, "conflict", "two-factor state unchanged", ""
	case identity.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_request", "invalid input", ""
	case identity.IsNotFound(err):
		return http.StatusNotFound, "not_found", "resource not found", ""
	case identity.IsConflict(err):
		return http.StatusConflict, "conflict", "state conflict", ""
	default:
		return http.StatusInternalServerError, "server_error", "internal error", ""
	}
}
