// Package session persists the single live refresh token per user.
//
// The invariant is one non-expired record per user: every rotation replaces
// the record atomically, so any presented refresh token that is not
// byte-identical to the stored one is by definition stale or reused.
package session
