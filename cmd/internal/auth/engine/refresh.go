package engine

import (
	"context"
	"errors"
	"time"

	"aegis/cmd/identity"
	"aegis/cmd/internal/auth/session"
	"aegis/cmd/internal/auth/token"
)

// Refresh rotates a refresh token. Identity is recovered from the token's
// own signed claims; signature and expiry are checked before any store
// lookup.
//
// Reuse model: only one refresh token is ever live per user, so a validly
// signed token that is not byte-identical to the stored one can only be a
// superseded token from another device or a replayed stolen token. Both are
// treated identically: the stored session is revoked before the error is
// returned, forcing a full re-authentication everywhere.
func (e *Engine) Refresh(ctx context.Context, now time.Time, presented string) (*Session, error) {
	aid := attemptID()
	log := e.log.With("attempt", aid)

	userID, err := e.issuer.VerifyRefresh(presented)
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		log.Info("auth.refresh.fail", "reason", "expired")
		return nil, ErrRefreshExpired
	case err != nil:
		log.Info("auth.refresh.fail", "reason", "malformed")
		return nil, ErrRefreshMalformed
	}

	p, err := e.creds.GetPrincipalByID(ctx, userID)
	if identity.IsNotFound(err) {
		// Validly signed token for a principal that no longer exists. The
		// token cannot be honored; reject without touching the session store.
		log.Warn("auth.refresh.fail", "reason", "unknown_principal", "user_id", userID)
		return nil, ErrRefreshMalformed
	}
	if err != nil {
		return nil, err
	}

	if p.AccountBlocked {
		log.Info("auth.refresh.fail", "reason", "blocked", "user_id", p.ID)
		return nil, ErrAccountBlocked
	}

	m, err := e.mintPair(ctx, now, p)
	if err != nil {
		return nil, err
	}

	// Compare-and-swap: the rotation only lands if the presented token is the
	// currently stored one. Zero rows swapped means reuse.
	err = e.sessions.Rotate(ctx, now, p.ID, presented, m.refresh, m.refreshExp)
	if errors.Is(err, session.ErrTokenMismatch) {
		// Fail closed: revoke the one legitimate session too, and only then
		// answer. The compensating write is part of the response contract.
		if revokeErr := e.sessions.Revoke(ctx, p.ID); revokeErr != nil {
			return nil, revokeErr
		}
		log.Warn("auth.refresh.reuse_detected", "user_id", p.ID)
		return nil, ErrRefreshReuse
	}
	if err != nil {
		return nil, err
	}

	log.Info("auth.refresh.ok", "user_id", p.ID)
	return e.buildSession(p, m, false), nil
}
