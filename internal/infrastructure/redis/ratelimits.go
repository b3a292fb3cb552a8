package redisinfra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

// acquireScript runs the whole check-and-increment server side.
// KEYS[1] counter hash; ARGV max, window_ms, now_ms.
// Returns {allowed 0|1, attempts, reset_in_ms}.
var acquireScript = redis.NewScript(`
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset_at') or '0')
local now = tonumber(ARGV[3])
if reset <= now then
  attempts = 0
  reset = now + tonumber(ARGV[2])
end
if attempts >= tonumber(ARGV[1]) then
  return {0, attempts, reset - now}
end
attempts = attempts + 1
redis.call('HSET', KEYS[1], 'attempts', attempts, 'reset_at', reset, 'last_attempt_at', now)
redis.call('PEXPIREAT', KEYS[1], reset)
return {1, attempts, reset - now}
`)

// releaseScript decrements only inside the live window and never below zero.
var releaseScript = redis.NewScript(`
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset_at') or '0')
if reset <= tonumber(ARGV[1]) then
  return 0
end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
if attempts <= 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'attempts', -1)
return 1
`)

// RateLimitRepo keeps counters as hashes that expire with their window.
type RateLimitRepo struct {
	client redis.Cmdable
}

func NewRateLimitRepo(client redis.Cmdable) *RateLimitRepo {
	return &RateLimitRepo{client: client}
}

func counterKey(subjectKey string, purpose domain.Purpose) string {
	return "ratelimit:" + domain.RateLimitKey(subjectKey, purpose)
}

func (r *RateLimitRepo) Acquire(ctx context.Context, subjectKey string, purpose domain.Purpose, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	res, err := acquireScript.Run(ctx, r.client, []string{counterKey(subjectKey, purpose)},
		max, window.Milliseconds(), now.UnixMilli()).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis acquire: %w", err)
	}
	return decodeDecision(res)
}

func decodeDecision(res []int64) (domain.RateLimitDecision, error) {
	if len(res) != 3 {
		return domain.RateLimitDecision{}, fmt.Errorf("redis acquire: unexpected reply %v", res)
	}
	return domain.RateLimitDecision{
		Allowed:  res[0] == 1,
		Attempts: int(res[1]),
		ResetIn:  time.Duration(res[2]) * time.Millisecond,
	}, nil
}

func (r *RateLimitRepo) Release(ctx context.Context, subjectKey string, purpose domain.Purpose, now time.Time) error {
	err := releaseScript.Run(ctx, r.client, []string{counterKey(subjectKey, purpose)}, now.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

func (r *RateLimitRepo) Get(ctx context.Context, subjectKey string, purpose domain.Purpose) (*domain.RateLimitCounter, error) {
	vals, err := r.client.HGetAll(ctx, counterKey(subjectKey, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("rate limit not found: %w", domain.ErrNotFound)
	}
	return decodeCounter(subjectKey, purpose, vals)
}

func decodeCounter(subjectKey string, purpose domain.Purpose, vals map[string]string) (*domain.RateLimitCounter, error) {
	attempts, err := strconv.Atoi(vals["attempts"])
	if err != nil {
		return nil, fmt.Errorf("redis counter attempts: %w", err)
	}
	resetMs, err := strconv.ParseInt(vals["reset_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis counter reset_at: %w", err)
	}
	lastMs, _ := strconv.ParseInt(vals["last_attempt_at"], 10, 64)
	return &domain.RateLimitCounter{
		ID:            domain.RateLimitKey(subjectKey, purpose),
		SubjectKey:    subjectKey,
		Purpose:       purpose,
		Attempts:      attempts,
		LastAttemptAt: time.UnixMilli(lastMs).UTC(),
		ResetAt:       time.UnixMilli(resetMs).UTC(),
	}, nil
}

// DeleteExpired is a no-op: counters carry their own key expiry.
func (r *RateLimitRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
