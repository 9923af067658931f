package session

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are opt-in and require AEGIS_DATABASE_URL. The store
// addresses the fixed aegis.refresh_tokens table, so the test provisions it
// in place and cleans up its own rows.

func TestPostgresStore_ReplaceRotateRevoke(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	mustProvisionTable(t, pool)

	store := NewPostgresStore(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	userID := ulid.Make().String()
	t.Cleanup(func() { _ = store.Revoke(context.Background(), userID) })

	now := time.Now().UTC()
	exp := now.Add(30 * 24 * time.Hour)

	if _, err := store.Get(ctx, userID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Get before Replace err = %v, want ErrNoSession", err)
	}

	if err := store.Replace(ctx, now, userID, "tok-1", exp); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	// Upsert: a second login replaces the record, never adds one.
	if err := store.Replace(ctx, now.Add(time.Second), userID, "tok-2", exp); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	var count int
	err := pool.QueryRow(ctx, `SELECT count(*) FROM aegis.refresh_tokens WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want exactly 1", count)
	}

	if err := store.Rotate(ctx, now, userID, "tok-1", "tok-3", exp); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("superseded rotate err = %v, want ErrTokenMismatch", err)
	}
	if err := store.Rotate(ctx, now, userID, "tok-2", "tok-3", exp); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	rec, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Token != "tok-3" {
		t.Fatalf("token = %q, want tok-3", rec.Token)
	}

	if err := store.Revoke(ctx, userID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, userID); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if _, err := store.Get(ctx, userID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Get after Revoke err = %v, want ErrNoSession", err)
	}
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

func mustProvisionTable(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS aegis;
		CREATE TABLE IF NOT EXISTS aegis.refresh_tokens (
		  user_id TEXT PRIMARY KEY,
		  token TEXT NOT NULL,
		  expires_at TIMESTAMPTZ NOT NULL,
		  updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("provision refresh_tokens: %v", err)
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
