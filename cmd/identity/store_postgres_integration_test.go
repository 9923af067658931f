package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are opt-in and require AEGIS_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_ValidateLoginCredential(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAuthSchema(t, pool, schema)

	s := mustNewStore(t, pool, schema)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	hash, err := HashPassword("very-strong-password-1", DefaultArgon2idParams())
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	mustInsertUser(t, pool, schema, testUser{id: newTestID(), email: "Alice@Example.com", passwordHash: &hash})
	mustInsertUser(t, pool, schema, testUser{id: newTestID(), email: "locked@example.com", passwordHash: &hash, locked: true})
	mustInsertUser(t, pool, schema, testUser{id: newTestID(), email: "social@example.com"})

	tests := []struct {
		name  string
		email string
		pw    string
		want  CredentialStatus
	}{
		{"valid, case-insensitive email", "alice@example.COM", "very-strong-password-1", CredentialValid},
		{"wrong password", "alice@example.com", "wrong", CredentialInvalid},
		{"unknown user", "ghost@example.com", "x", CredentialNotFound},
		{"locked account", "locked@example.com", "very-strong-password-1", CredentialLocked},
		{"social-only account", "social@example.com", "anything", CredentialInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _, err := s.ValidateLoginCredential(ctx, tc.email, tc.pw)
			if err != nil {
				t.Fatalf("ValidateLoginCredential: %v", err)
			}
			if status != tc.want {
				t.Fatalf("status = %v, want %v", status, tc.want)
			}
		})
	}
}

func TestPostgresStore_OTPLifecycle(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAuthSchema(t, pool, schema)

	s := mustNewStore(t, pool, schema)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userID := newTestID()
	mustInsertUser(t, pool, schema, testUser{id: userID, email: "otp@example.com", twoFactor: true})
	now := time.Now().UTC()

	code, err := s.GenerateOTP(ctx, userID, now)
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	if len(code) != otpDigits {
		t.Fatalf("code length = %d, want %d", len(code), otpDigits)
	}

	// Wrong code advances the failure counter. The principal still comes
	// back so callers can notify the account owner.
	verdict, rejected, err := s.ValidateCredentialAndOTP(ctx, "otp@example.com", "000000", now)
	if err != nil {
		t.Fatalf("ValidateCredentialAndOTP: %v", err)
	}
	if verdict != OTPInvalid {
		t.Fatalf("verdict = %v, want OTPInvalid", verdict)
	}
	if rejected.ID != userID {
		t.Fatalf("principal on invalid verdict = %+v, want user %s", rejected, userID)
	}

	// Correct code succeeds and is consumed.
	verdict, p, err := s.ValidateCredentialAndOTP(ctx, "otp@example.com", code, now)
	if err != nil {
		t.Fatalf("ValidateCredentialAndOTP: %v", err)
	}
	if verdict != OTPValid {
		t.Fatalf("verdict = %v, want OTPValid", verdict)
	}
	if p.ID != userID {
		t.Fatalf("principal = %+v", p)
	}

	verdict, _, err = s.ValidateCredentialAndOTP(ctx, "otp@example.com", code, now)
	if err != nil {
		t.Fatalf("ValidateCredentialAndOTP: %v", err)
	}
	if verdict != OTPExpired {
		t.Fatalf("replayed code verdict = %v, want OTPExpired", verdict)
	}

	// Past the lifetime the code is unusable.
	if _, err := s.GenerateOTP(ctx, userID, now); err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	verdict, _, err = s.ValidateCredentialAndOTP(ctx, "otp@example.com", code, now.Add(OTPLifetime+time.Minute))
	if err != nil {
		t.Fatalf("ValidateCredentialAndOTP: %v", err)
	}
	if verdict != OTPExpired {
		t.Fatalf("stale verdict = %v, want OTPExpired", verdict)
	}
}

func TestPostgresStore_OTPLockout(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAuthSchema(t, pool, schema)

	s := mustNewStore(t, pool, schema)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userID := newTestID()
	mustInsertUser(t, pool, schema, testUser{id: userID, email: "lockout@example.com", twoFactor: true})
	now := time.Now().UTC()

	code, err := s.GenerateOTP(ctx, userID, now)
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}

	var verdict OTPVerdict
	for i := 0; i < otpMaxAttempts; i++ {
		verdict, _, err = s.ValidateCredentialAndOTP(ctx, "lockout@example.com", "999999", now)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if verdict != OTPLocked {
		t.Fatalf("verdict after %d bad attempts = %v, want OTPLocked", otpMaxAttempts, verdict)
	}

	// The lock is persistent: even the correct code is rejected now.
	verdict, _, err = s.ValidateCredentialAndOTP(ctx, "lockout@example.com", code, now)
	if err != nil {
		t.Fatalf("ValidateCredentialAndOTP: %v", err)
	}
	if verdict != OTPLocked {
		t.Fatalf("verdict = %v, want OTPLocked", verdict)
	}

	status, _, err := s.ValidateLoginCredential(ctx, "lockout@example.com", "anything")
	if err != nil {
		t.Fatalf("ValidateLoginCredential: %v", err)
	}
	if status != CredentialLocked {
		t.Fatalf("login status = %v, want CredentialLocked", status)
	}

	// A locked account cannot be issued a fresh code either.
	if _, err := s.GenerateOTP(ctx, userID, now); !IsLocked(err) {
		t.Fatalf("GenerateOTP on locked account err = %v, want locked", err)
	}
}

func TestPostgresStore_SetTwoFactorAndCompany(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAuthSchema(t, pool, schema)

	s := mustNewStore(t, pool, schema)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	companyID := newTestID()
	mustExec(t, pool,
		`INSERT INTO `+pgIdent(schema, "companies")+` (id, name, currency) VALUES ($1, $2, $3)`,
		companyID, "Reed GmbH", "EUR",
	)

	u1, u2 := newTestID(), newTestID()
	mustInsertUser(t, pool, schema, testUser{id: u1, email: "m1@example.com", companyID: &companyID})
	mustInsertUser(t, pool, schema, testUser{id: u2, email: "m2@example.com", companyID: &companyID})

	now := time.Now().UTC()
	if err := s.SetTwoFactor(ctx, u1, true, now); err != nil {
		t.Fatalf("SetTwoFactor: %v", err)
	}
	if err := s.SetTwoFactor(ctx, u1, true, now); !IsConflict(err) {
		t.Fatalf("redundant toggle err = %v, want conflict", err)
	}
	if err := s.SetTwoFactor(ctx, newTestID(), true, now); !IsNotFound(err) {
		t.Fatalf("unknown user err = %v, want not found", err)
	}

	members, err := s.ListCompanyMembers(ctx, companyID)
	if err != nil {
		t.Fatalf("ListCompanyMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	c, err := s.GetCompany(ctx, companyID)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if c.Name != "Reed GmbH" || c.Currency != "EUR" {
		t.Fatalf("company = %+v", c)
	}
}

// ---- helpers ----

type testUser struct {
	id           string
	email        string
	passwordHash *string
	locked       bool
	blocked      bool
	twoFactor    bool
	companyID    *string
}

func mustInsertUser(t *testing.T, pool *pgxpool.Pool, schema string, u testUser) {
	t.Helper()

	mustExec(t, pool,
		`INSERT INTO `+pgIdent(schema, "users")+`
		 (id, email, email_norm, first_name, last_name, password_hash,
		  account_blocked, account_locked, two_factor_enabled, role, company_id)
		 VALUES ($1, $2, $3, '', '', $4, $5, $6, $7, 'member', $8)`,
		u.id, u.email, NormalizeEmail(u.email), u.passwordHash, u.blocked, u.locked, u.twoFactor, u.companyID,
	)
}

func mustNewStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("AEGIS_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: AEGIS_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse AEGIS_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (AEGIS_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "aegis_it_" + strings.ToLower(newTestID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplyAuthSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NULL,
  account_blocked BOOLEAN NOT NULL DEFAULT FALSE,
  account_locked BOOLEAN NOT NULL DEFAULT FALSE,
  two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  role TEXT NOT NULL DEFAULT '',
  company_id TEXT NULL REFERENCES %s(id) ON DELETE SET NULL,
  cloud_sync_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  currency TEXT NOT NULL DEFAULT '',
  otp_hash TEXT NULL,
  otp_expires_at TIMESTAMPTZ NULL,
  otp_attempts INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_users_email_norm UNIQUE (email_norm),
  CONSTRAINT chk_users_otp_attempts CHECK (otp_attempts >= 0)
);

CREATE INDEX IF NOT EXISTS idx_users_company_id ON %s (company_id);
`,
		pgIdent(schema, "companies"),
		pgIdent(schema, "users"),
		pgIdent(schema, "companies"),
		pgIdent(schema, "users"),
	)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
}

func newTestID() string {
	return ulid.Make().String()
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
