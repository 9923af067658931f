package codes

import (
	"crypto/sha256"
	"encoding/base64"
)

// ChallengeFromVerifier computes the S256 PKCE challenge:
// base64url(SHA-256(verifier)) without padding, per RFC 7636.
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
