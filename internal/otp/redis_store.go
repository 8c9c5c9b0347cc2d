package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:v1:"

// consumeScript performs the test-and-set in one step so two concurrent
// verifications of the same code cannot both succeed.
var consumeScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'code_hash', 'consumed', 'expires_at')
if not h[1] or h[1] ~= ARGV[1] then
  return 0
end
if h[2] == '1' then
  return 0
end
if tonumber(h[3]) <= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return 1
`)

// replacePendingScript swaps in a new challenge only while the current one is
// unconsumed and unexpired.
var replacePendingScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'consumed', 'expires_at')
if not h[2] or h[1] == '1' or tonumber(h[2]) <= tonumber(ARGV[5]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'code_hash', ARGV[1], 'consumed', '0', 'expires_at', ARGV[2], 'created_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// RedisStore keeps challenges as Redis hashes that expire with the code.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(email string, purpose Purpose) string {
	return keyPrefix + string(purpose) + ":" + email
}

func (s *RedisStore) Replace(ctx context.Context, ch Challenge) error {
	ttl := ch.ExpiresAt.Sub(ch.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("otp: challenge already expired")
	}
	key := challengeKey(ch.Email, ch.Purpose)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"code_hash":  ch.Digest,
			"consumed":   "0",
			"expires_at": ch.ExpiresAt.UnixMilli(),
			"created_at": ch.CreatedAt.UnixMilli(),
		})
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) ReplacePending(ctx context.Context, ch Challenge, now time.Time) (bool, error) {
	ttl := ch.ExpiresAt.Sub(ch.CreatedAt)
	if ttl <= 0 {
		return false, fmt.Errorf("otp: challenge already expired")
	}
	n, err := replacePendingScript.Run(ctx, s.client, []string{challengeKey(ch.Email, ch.Purpose)},
		ch.Digest, ch.ExpiresAt.UnixMilli(), ch.CreatedAt.UnixMilli(), ttl.Milliseconds(), now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("replace otp challenge: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Consume(ctx context.Context, email string, purpose Purpose, digest string, now time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{challengeKey(email, purpose)}, digest, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("consume otp challenge: %w", err)
	}
	return n == 1, nil
}
