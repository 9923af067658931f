package authapi

import (
	"net/http"
	"testing"

	"aegis/cmd/identity"
	"aegis/cmd/internal/auth/engine"
)

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input kind", identity.OpError{Op: "identity.WithSchema", Kind: identity.ErrInvalidInput}, http.StatusBadRequest, "invalid_request"},
		{"not found kind", identity.NotFoundError{Op: "identity.GetCompany", Resource: "company"}, http.StatusNotFound, "not_found"},
		{"conflict kind", identity.ConflictError{Op: "identity.SetTwoFactor", Field: "two_factor_enabled"}, http.StatusConflict, "conflict"},
		{"expired refresh", engine.ErrRefreshExpired, http.StatusUnauthorized, "token_expired"},
		{"reuse", engine.ErrRefreshReuse, http.StatusForbidden, "reuse_detected"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, code, _, action := errorStatus(tc.err)
			if status != tc.wantStatus || code != tc.wantCode {
				t.Fatalf("errorStatus(%v) = %d %q, want %d %q", tc.err, status, code, tc.wantStatus, tc.wantCode)
			}
			if tc.err == engine.ErrRefreshReuse && action != ActionRevokeAllSessions {
				t.Fatalf("reuse action = %q, want %q", action, ActionRevokeAllSessions)
			}
		})
	}
}
