package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
//   - ValidateCredentialAndOTP serializes per-account OTP state via SELECT ... FOR UPDATE
//     so two concurrent submissions of the same code cannot both succeed.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "aegis").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return OpError{Op: "identity.WithSchema", Kind: ErrInvalidInput, Msg: "schema identifier"}
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "aegis",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, OpError{Op: "identity.NewPostgresStore", Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	return st, nil
}

func (s *PostgresStore) ident(table string) string {
	return `"` + s.schema + `"."` + table + `"`
}

const principalColumns = `
	id, email, first_name, last_name, password_hash,
	account_blocked, account_locked, two_factor_enabled,
	role, company_id, cloud_sync_enabled, currency, created_at
`

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.PasswordHash,
		&p.AccountBlocked,
		&p.AccountLocked,
		&p.TwoFactorEnabled,
		&p.Role,
		&p.CompanyID,
		&p.CloudSyncEnabled,
		&p.Currency,
		&p.CreatedAt,
	)
	return p, err
}

// GetPrincipalByEmail loads a principal by normalized email.
func (s *PostgresStore) GetPrincipalByEmail(ctx context.Context, email string) (Principal, error) {
	const op = "identity.GetPrincipalByEmail"

	p, err := scanPrincipal(s.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM `+s.ident("users")+` WHERE email_norm = $1`,
		NormalizeEmail(email),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}

// GetPrincipalByID loads a principal by ID.
func (s *PostgresStore) GetPrincipalByID(ctx context.Context, userID string) (Principal, error) {
	const op = "identity.GetPrincipalByID"

	p, err := scanPrincipal(s.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM `+s.ident("users")+` WHERE id = $1`,
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}

// ValidateLoginCredential checks a password login.
func (s *PostgresStore) ValidateLoginCredential(ctx context.Context, email, password string) (CredentialStatus, Principal, error) {
	p, err := s.GetPrincipalByEmail(ctx, email)
	if IsNotFound(err) {
		return CredentialNotFound, Principal{}, nil
	}
	if err != nil {
		return CredentialInvalid, Principal{}, err
	}
	if p.AccountLocked {
		return CredentialLocked, Principal{}, nil
	}
	if !p.PasswordSet() {
		// Social-only account: a password login can never match.
		return CredentialInvalid, Principal{}, nil
	}

	ok, err := VerifyPassword(password, *p.PasswordHash)
	if err != nil || !ok {
		return CredentialInvalid, Principal{}, nil
	}
	return CredentialValid, p, nil
}

// ValidateGoogleLoginCredential resolves a social login whose email was
// already proven by the code exchange.
func (s *PostgresStore) ValidateGoogleLoginCredential(ctx context.Context, email string) (CredentialStatus, Principal, error) {
	p, err := s.GetPrincipalByEmail(ctx, email)
	if IsNotFound(err) {
		return CredentialNotFound, Principal{}, nil
	}
	if err != nil {
		return CredentialInvalid, Principal{}, err
	}
	if p.AccountLocked {
		return CredentialLocked, Principal{}, nil
	}
	return CredentialValid, p, nil
}

// GenerateOTP mints a fresh code, persists hash + expiry, resets the failure
// counter, and returns the plain code exactly once.
func (s *PostgresStore) GenerateOTP(ctx context.Context, userID string, now time.Time) (string, error) {
	const op = "identity.GenerateOTP"

	code, err := newOTPCode()
	if err != nil {
		return "", err
	}

	// Locked accounts never get a fresh code, even if the credential check
	// raced with the lock.
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		 SET otp_hash = $2, otp_expires_at = $3, otp_attempts = 0, updated_at = $4
		 WHERE id = $1 AND account_locked = FALSE`,
		userID, hashOTP(code), now.Add(OTPLifetime), now,
	)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		var locked bool
		err := s.pool.QueryRow(ctx,
			`SELECT account_locked FROM `+s.ident("users")+` WHERE id = $1`,
			userID,
		).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", NotFoundError{Op: op, Resource: "user"}
		}
		if err != nil {
			return "", err
		}
		return "", OpError{Op: op, Kind: ErrLocked, Msg: "account locked"}
	}
	return code, nil
}

// ValidateCredentialAndOTP computes the OTP verdict for the account.
//
// Policy lives here: expiry, failure counting, and the lockout threshold.
// The row is locked for the duration of the check so concurrent submissions
// serialize; a correct code is consumed on first success.
func (s *PostgresStore) ValidateCredentialAndOTP(ctx context.Context, email, otp string, now time.Time) (OTPVerdict, Principal, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return OTPInvalid, Principal{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		p            Principal
		otpHash      *string
		otpExpiresAt *time.Time
		otpAttempts  int
	)
	err = tx.QueryRow(ctx,
		`SELECT `+principalColumns+`, otp_hash, otp_expires_at, otp_attempts
		 FROM `+s.ident("users")+`
		 WHERE email_norm = $1
		 FOR UPDATE`,
		NormalizeEmail(email),
	).Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.PasswordHash,
		&p.AccountBlocked, &p.AccountLocked, &p.TwoFactorEnabled,
		&p.Role, &p.CompanyID, &p.CloudSyncEnabled, &p.Currency, &p.CreatedAt,
		&otpHash, &otpExpiresAt, &otpAttempts,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return OTPInvalid, Principal{}, NotFoundError{Op: "identity.ValidateCredentialAndOTP", Resource: "user"}
	}
	if err != nil {
		return OTPInvalid, Principal{}, err
	}

	// Non-valid verdicts still carry the loaded principal so callers can
	// notify the account owner.
	if p.AccountLocked {
		return OTPLocked, p, nil
	}
	if otpHash == nil || otpExpiresAt == nil || !otpExpiresAt.After(now) {
		return OTPExpired, p, nil
	}

	if !otpHashEqual(hashOTP(otp), *otpHash) {
		otpAttempts++
		locked := otpAttempts >= otpMaxAttempts
		_, err = tx.Exec(ctx,
			`UPDATE `+s.ident("users")+`
			 SET otp_attempts = $2, account_locked = account_locked OR $3, updated_at = $4
			 WHERE id = $1`,
			p.ID, otpAttempts, locked, now,
		)
		if err != nil {
			return OTPInvalid, Principal{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return OTPInvalid, Principal{}, err
		}
		if locked {
			return OTPLocked, p, nil
		}
		return OTPInvalid, p, nil
	}

	// Consume the code on success.
	_, err = tx.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		 SET otp_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = $2
		 WHERE id = $1`,
		p.ID, now,
	)
	if err != nil {
		return OTPInvalid, Principal{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return OTPInvalid, Principal{}, err
	}
	return OTPValid, p, nil
}

// GetCompany loads the sanitized company projection.
func (s *PostgresStore) GetCompany(ctx context.Context, companyID string) (Company, error) {
	const op = "identity.GetCompany"

	var c Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, currency FROM `+s.ident("companies")+` WHERE id = $1`,
		companyID,
	).Scan(&c.ID, &c.Name, &c.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, NotFoundError{Op: op, Resource: "company"}
	}
	if err != nil {
		return Company{}, err
	}
	return c, nil
}

// ListCompanyMembers returns all principals attached to a company.
func (s *PostgresStore) ListCompanyMembers(ctx context.Context, companyID string) ([]Principal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+principalColumns+` FROM `+s.ident("users")+` WHERE company_id = $1 ORDER BY id`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, p)
	}
	return members, rows.Err()
}

// UpdatePassword replaces the stored password hash.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePassword"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+` SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SetTwoFactor flips the 2FA enrollment flag. The guard lives in the UPDATE
// itself so a toggle to the current state surfaces as a conflict instead of
// a silent no-op, even under concurrent toggles.
func (s *PostgresStore) SetTwoFactor(ctx context.Context, userID string, enabled bool, now time.Time) error {
	const op = "identity.SetTwoFactor"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		 SET two_factor_enabled = $2, updated_at = $3
		 WHERE id = $1 AND two_factor_enabled <> $2`,
		userID, enabled, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+s.ident("users")+` WHERE id = $1)`,
			userID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ConflictError{Op: op, Field: "two_factor_enabled"}
		}
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}
