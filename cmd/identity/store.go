package identity

import (
	"context"
	"time"
)

// Principal is the canonical security principal for authentication decisions.
// PasswordHash is nil for social-only accounts that never set a password.
type Principal struct {
	ID        string
	Email     string
	FirstName string
	LastName  string

	PasswordHash *string

	AccountBlocked   bool
	AccountLocked    bool
	TwoFactorEnabled bool

	Role      string
	CompanyID *string

	// Per-user metadata merged into the session projection after OTP step-up.
	CloudSyncEnabled bool
	Currency         string

	CreatedAt time.Time
}

// PasswordSet reports whether the principal has a password credential.
func (p Principal) PasswordSet() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// Company is the sanitized company projection returned alongside tokens.
type Company struct {
	ID       string
	Name     string
	Currency string
}

// CredentialStatus is the outcome of a primary credential check.
type CredentialStatus int

const (
	// CredentialValid means the credential matched an active account.
	CredentialValid CredentialStatus = iota
	// CredentialInvalid means the account exists but the credential did not match.
	CredentialInvalid
	// CredentialLocked means the account is locked and must not authenticate.
	CredentialLocked
	// CredentialNotFound means no account exists for the identifier.
	CredentialNotFound
)

// OTPVerdict is the outcome of an OTP step-up check. The store owns expiry
// and failure-counter policy; callers only branch on the verdict.
type OTPVerdict int

const (
	// OTPValid means the code matched and has been consumed.
	OTPValid OTPVerdict = iota
	// OTPExpired means the code is past its expiry (or none was issued).
	OTPExpired
	// OTPInvalid means the code did not match; the failure counter advanced.
	OTPInvalid
	// OTPLocked means repeated failures have locked the account.
	OTPLocked
)

// Store is the credential persistence boundary consumed by the
// authentication engine. Implementations must be safe for concurrent use.
type Store interface {
	// ValidateLoginCredential checks email+password. The returned Principal is
	// only meaningful when the status is CredentialValid.
	ValidateLoginCredential(ctx context.Context, email, password string) (CredentialStatus, Principal, error)

	// ValidateGoogleLoginCredential resolves a social login for an email that
	// was already proven via the code exchange. No password is involved.
	ValidateGoogleLoginCredential(ctx context.Context, email string) (CredentialStatus, Principal, error)

	// GenerateOTP mints a fresh one-time password for the user, persists its
	// hash + expiry, resets the failure counter, and returns the plain code
	// exactly once (for emailing). It must never be logged. A locked account
	// is refused with ErrLocked.
	GenerateOTP(ctx context.Context, userID string, now time.Time) (string, error)

	// ValidateCredentialAndOTP computes the OTP verdict for the account.
	// Lockout counting is internal; OTPValid consumes the code. The Principal
	// is populated for every verdict once the account row is found, so
	// callers can address notifications even on failure.
	ValidateCredentialAndOTP(ctx context.Context, email, otp string, now time.Time) (OTPVerdict, Principal, error)

	GetPrincipalByEmail(ctx context.Context, email string) (Principal, error)
	GetPrincipalByID(ctx context.Context, userID string) (Principal, error)

	GetCompany(ctx context.Context, companyID string) (Company, error)
	ListCompanyMembers(ctx context.Context, companyID string) ([]Principal, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error

	// SetTwoFactor flips the 2FA enrollment flag. The flag is a real boolean
	// end to end; string-typed representations are rejected at the boundary.
	// Setting the flag to its current value is ErrConflict.
	SetTwoFactor(ctx context.Context, userID string, enabled bool, now time.Time) error
}
