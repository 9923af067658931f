package session

import (
	"context"
	"time"
)

// Record is the stored refresh state for a user. UserID is the unique key.
type Record struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Store abstracts persistence for refresh token records.
//
// Implementations must make Replace and Rotate atomic: a racing reader must
// never observe a deleted-but-not-yet-replaced record.
type Store interface {
	// Get loads the single record for a user. Returns ErrNoSession when absent.
	Get(ctx context.Context, userID string) (Record, error)

	// Replace upserts the record for a user, superseding any prior token.
	// Used on login/OTP success where no prior token is being spent.
	Replace(ctx context.Context, now time.Time, userID, tok string, expiresAt time.Time) error

	// Rotate swaps the stored token for next if and only if the stored token
	// is byte-identical to presented. Returns ErrTokenMismatch when no record
	// exists or the presented token is not current.
	Rotate(ctx context.Context, now time.Time, userID, presented, next string, expiresAt time.Time) error

	// Revoke deletes the record for a user (idempotent). Used on reuse
	// detection to kill the one legitimate session as well.
	Revoke(ctx context.Context, userID string) error
}
