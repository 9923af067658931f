package codes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestLoginCodeRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	challenge := ChallengeFromVerifier("verifier-123")
	code, err := store.CreateLoginCode(ctx, "alice@example.com", challenge, time.Minute)
	if err != nil {
		t.Fatalf("CreateLoginCode: %v", err)
	}
	if code == "" {
		t.Fatal("CreateLoginCode returned empty code")
	}

	email, err := store.ConsumeLoginCode(ctx, code, challenge)
	if err != nil {
		t.Fatalf("ConsumeLoginCode: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("email = %q, want alice@example.com", email)
	}
}

func TestLoginCodeSingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	challenge := ChallengeFromVerifier("verifier-123")
	code, err := store.CreateLoginCode(ctx, "alice@example.com", challenge, time.Minute)
	if err != nil {
		t.Fatalf("CreateLoginCode: %v", err)
	}

	if _, err := store.ConsumeLoginCode(ctx, code, challenge); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := store.ConsumeLoginCode(ctx, code, challenge); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("second consume err = %v, want ErrCodeNotFound", err)
	}
}

func TestLoginCodeChallengeMismatchDoesNotConsume(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	challenge := ChallengeFromVerifier("verifier-123")
	code, err := store.CreateLoginCode(ctx, "alice@example.com", challenge, time.Minute)
	if err != nil {
		t.Fatalf("CreateLoginCode: %v", err)
	}

	if _, err := store.ConsumeLoginCode(ctx, code, ChallengeFromVerifier("wrong")); !errors.Is(err, ErrChallengeMismatch) {
		t.Fatalf("mismatched consume err = %v, want ErrChallengeMismatch", err)
	}

	// The code must survive a failed verification.
	email, err := store.ConsumeLoginCode(ctx, code, challenge)
	if err != nil {
		t.Fatalf("consume after mismatch: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("email = %q, want alice@example.com", email)
	}
}

func TestLoginCodeExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	challenge := ChallengeFromVerifier("verifier-123")
	code, err := store.CreateLoginCode(ctx, "alice@example.com", challenge, time.Minute)
	if err != nil {
		t.Fatalf("CreateLoginCode: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.ConsumeLoginCode(ctx, code, challenge); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expired consume err = %v, want ErrCodeNotFound", err)
	}
}

func TestLoginCodeUnknown(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.ConsumeLoginCode(context.Background(), "nope", "c"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("unknown consume err = %v, want ErrCodeNotFound", err)
	}
}
