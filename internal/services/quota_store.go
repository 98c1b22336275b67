package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript admits or rejects one attempt against a fixed window in a single round trip.
// Compare and increment happen inside the script so concurrent workers cannot overshoot.
//
// KEYS[1] quota counter, KEYS[2] rejected-attempts counter
// ARGV[1] limit (-1 = no cap), ARGV[2] window in milliseconds
// Returns {admitted, count, ttl_ms}
var consumeScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local raw = redis.call('GET', KEYS[1])
local count = 0
local ttl = window
if raw then
  count = tonumber(raw)
  ttl = redis.call('PTTL', KEYS[1])
  if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], window)
    ttl = window
  end
end
if limit >= 0 and count >= limit then
  redis.call('INCR', KEYS[2])
  if redis.call('PTTL', KEYS[2]) < 0 then
    redis.call('PEXPIRE', KEYS[2], ttl)
  end
  return {0, count, ttl}
end
if not raw then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end
local n = redis.call('INCR', KEYS[1])
return {1, n, ttl}
`)

// ConsumeResult is the raw answer of the counter store for one attempt
type ConsumeResult struct {
	Admitted bool
	Count    int64         // counter value after the attempt
	TTL      time.Duration // time until the window rolls over
}

// QuotaCounter is the shared atomic counter the admission controller depends on
type QuotaCounter interface {
	Consume(ctx context.Context, identity, endpoint string, limit int64, window time.Duration) (ConsumeResult, error)
}

// RedisQuotaStore implements QuotaCounter on Redis with a Lua script
type RedisQuotaStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisQuotaStore creates a quota store. prefix defaults to "quota".
func NewRedisQuotaStore(client redis.Scripter, prefix string) *RedisQuotaStore {
	if prefix == "" {
		prefix = "quota"
	}
	return &RedisQuotaStore{client: client, prefix: prefix}
}

// CounterKey returns the key of the counter for one (identity, endpoint) pair
func (s *RedisQuotaStore) CounterKey(identity, endpoint string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sanitizeKeyPart(endpoint), identity)
}

// RejectedKey returns the key of the rejected-attempts bookkeeping counter
func (s *RedisQuotaStore) RejectedKey(identity, endpoint string) string {
	return s.CounterKey(identity, endpoint) + ":rejected"
}

// Consume runs the admission script for one attempt
func (s *RedisQuotaStore) Consume(ctx context.Context, identity, endpoint string, limit int64, window time.Duration) (ConsumeResult, error) {
	if window <= 0 {
		return ConsumeResult{}, fmt.Errorf("quota window must be positive, got %s", window)
	}
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	keys := []string{s.CounterKey(identity, endpoint), s.RejectedKey(identity, endpoint)}
	vals, err := consumeScript.Run(ctx, s.client, keys, limit, windowMs).Int64Slice()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("quota script failed: %w", err)
	}
	if len(vals) != 3 {
		return ConsumeResult{}, fmt.Errorf("quota script returned %d values, want 3", len(vals))
	}

	return ConsumeResult{
		Admitted: vals[0] == 1,
		Count:    vals[1],
		TTL:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

func sanitizeKeyPart(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "/")
	if s == "" {
		return "default"
	}
	return strings.ReplaceAll(s, "/", ".")
}
