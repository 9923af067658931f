package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the identity envelope embedded in access tokens.
// Validity is purely cryptographic + expiry; claims are never persisted.
type AccessClaims struct {
	UserID    string `json:"uid"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	CompanyID string `json:"cid,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the subject identity; everything else is
// re-resolved from the credential store at refresh time.
type RefreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies both token classes. It is stateless and safe
// for concurrent use.
type Issuer struct {
	cfg Config
}

// NewIssuer validates the config and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.cfg.AccessTTL }

// IssueAccess signs an access token. A signing failure is a configuration
// error and is not retried.
func (i *Issuer) IssueAccess(claims AccessClaims, now time.Time) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    i.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.AccessSecret)
}

// IssueRefresh signs a refresh token for the user.
func (i *Issuer) IssueRefresh(userID string, now time.Time) (string, error) {
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.RefreshSecret)
}

// VerifyAccess verifies signature + expiry of an access token.
func (i *Issuer) VerifyAccess(tokenStr string) (AccessClaims, error) {
	var claims AccessClaims
	if err := i.verify(tokenStr, &claims, i.cfg.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefresh verifies signature + expiry of a refresh token and returns
// the embedded user identity. Verification happens before any store lookup.
func (i *Issuer) VerifyRefresh(tokenStr string) (string, error) {
	var claims RefreshClaims
	if err := i.verify(tokenStr, &claims, i.cfg.RefreshSecret); err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", ErrTokenMalformed
	}
	return claims.UserID, nil
}

func (i *Issuer) verify(tokenStr string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithLeeway(i.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	)

	tok, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case err == nil && tok.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

// DecodeExpiry extracts the embedded expiry without re-verifying the
// signature. Only for computing a storage expiry from a token this same
// issuer just minted; never a validity check.
func DecodeExpiry(tokenStr string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, ErrTokenMalformed
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenMalformed
	}
	return claims.ExpiresAt.Time, nil
}
