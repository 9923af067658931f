package engine

import (
	"testing"
	"time"

	"aegis/cmd/internal/auth/token"
)

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()

	iss, err := token.NewIssuer(token.Config{
		Issuer:        "aegis-test",
		AccessSecret:  []byte("test-access-secret-0123456789abcdef"),
		RefreshSecret: []byte("test-refresh-secret-0123456789abcde"),
		AccessTTL:     time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
		ClockSkew:     time.Minute,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}
