package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (aegis.refresh_tokens).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get loads the refresh record for a user.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Record, error) {
	var rec Record

	err := s.pool.QueryRow(ctx, `
		SELECT user_id, token, expires_at, updated_at
		FROM aegis.refresh_tokens
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.Token, &rec.ExpiresAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNoSession
	}
	if err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Replace upserts the record in a single statement, so no reader can observe
// a window with the old token deleted and the new one not yet inserted.
func (s *PostgresStore) Replace(ctx context.Context, now time.Time, userID, tok string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aegis.refresh_tokens (user_id, token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
	`, userID, tok, expiresAt, now)
	return err
}

// Rotate performs the compare-and-swap: the update only applies when the
// stored token equals the presented one. Zero rows affected means the
// presented token is not current (missing row included), which is reuse.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, userID, presented, next string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE aegis.refresh_tokens
		SET token = $3, expires_at = $4, updated_at = $5
		WHERE user_id = $1 AND token = $2
	`, userID, presented, next, expiresAt, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenMismatch
	}
	return nil
}

// Revoke deletes the record (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM aegis.refresh_tokens
		WHERE user_id = $1
	`, userID)
	return err
}
