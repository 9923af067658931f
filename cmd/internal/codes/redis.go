package codes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const loginCodePrefix = "login_code:"

// Consume must verify and delete in one atomic step; a plain GET/DEL pair
// would let two concurrent presentations both succeed.
const consumeLoginCodeScript = `
local stored = redis.call("HGET", KEYS[1], "challenge")
if not stored then
  return {0, ""}
end
if stored ~= ARGV[1] then
  return {1, ""}
end
local email = redis.call("HGET", KEYS[1], "email")
redis.call("DEL", KEYS[1])
return {2, email}
`

const (
	consumeStatusMissing  int64 = 0
	consumeStatusMismatch int64 = 1
	consumeStatusConsumed int64 = 2
)

var consumeLoginCodeLua = redis.NewScript(consumeLoginCodeScript)

// RedisStore implements Store on Redis. Keys carry the configured TTL, so
// expiry needs no sweeper.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed code store. The client is owned by
// the caller.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// CreateLoginCode stores a fresh single-use code under login_code:{code}.
func (s *RedisStore) CreateLoginCode(ctx context.Context, email, challenge string, ttl time.Duration) (string, error) {
	code := uuid.NewString()
	key := loginCodePrefix + code

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "email", email, "challenge", challenge)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return code, nil
}

// ConsumeLoginCode atomically verifies the challenge and deletes the code.
func (s *RedisStore) ConsumeLoginCode(ctx context.Context, code, challenge string) (string, error) {
	res, err := consumeLoginCodeLua.Run(ctx, s.client, []string{loginCodePrefix + code}, challenge).Result()
	if err != nil {
		return "", err
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return "", fmt.Errorf("codes: unexpected consume reply %T", res)
	}
	status, _ := reply[0].(int64)

	switch status {
	case consumeStatusMissing:
		return "", ErrCodeNotFound
	case consumeStatusMismatch:
		return "", ErrChallengeMismatch
	case consumeStatusConsumed:
		email, _ := reply[1].(string)
		return email, nil
	default:
		return "", fmt.Errorf("codes: unexpected consume status %d", status)
	}
}
