package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and DB-less development.
// Operations are serialized under one mutex, which gives the same atomicity
// guarantees the Postgres statements provide.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get loads the refresh record for a user.
func (s *MemoryStore) Get(_ context.Context, userID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record{}, ErrNoSession
	}
	return rec, nil
}

// Replace upserts the record for a user.
func (s *MemoryStore) Replace(_ context.Context, now time.Time, userID, tok string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[userID] = Record{UserID: userID, Token: tok, ExpiresAt: expiresAt, UpdatedAt: now}
	return nil
}

// Rotate swaps the stored token iff the presented token is current.
func (s *MemoryStore) Rotate(_ context.Context, now time.Time, userID, presented, next string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok || rec.Token != presented {
		return ErrTokenMismatch
	}
	s.records[userID] = Record{UserID: userID, Token: next, ExpiresAt: expiresAt, UpdatedAt: now}
	return nil
}

// Revoke deletes the record (idempotent).
func (s *MemoryStore) Revoke(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}
