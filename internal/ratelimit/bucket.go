// Package ratelimit implements the per-channel token bucket on Redis, shared
// across all API and worker processes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes atomically. KEYS[1] holds the bucket
// hash {tokens, ts}; ARGV are capacity, refill rate per second, now (unix
// micros), and cost. Returns {allowed, remaining, retry_after_micros}.
var tokenBucketScript = redis.NewScript(`
local key      = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate     = tonumber(ARGV[2])
local now      = tonumber(ARGV[3])
local cost     = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts     = tonumber(bucket[2])

if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts) / 1000000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local retry_after = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_after = math.ceil((cost - tokens) / rate * 1000000)
end

redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', key, math.max(60, math.ceil(capacity / rate) * 2))

return {allowed, tokens, retry_after}
`)

// Decision is the outcome of one bucket consultation.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// Limiter consults per-channel buckets. A Redis outage fails open: messaging
// keeps flowing and the provider's own limits become the backstop.
type Limiter struct {
	rdb *redis.Client
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

func bucketKey(channelID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:channel:%s", channelID)
}

func throttleKey(channelID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:throttle:%s", channelID)
}

// Allow consumes one token from the channel's bucket. capacity doubles as the
// refill rate per second, matching the provider's published per-second limit.
func (l *Limiter) Allow(ctx context.Context, channelID uuid.UUID, capacity int) (Decision, error) {
	if capacity <= 0 {
		capacity = 80
	}

	res, err := tokenBucketScript.Run(ctx, l.rdb, []string{bucketKey(channelID)},
		capacity, capacity, time.Now().UnixMicro(), 1).Slice()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("token bucket unavailable: %w", err)
	}
	if len(res) != 3 {
		return Decision{Allowed: true}, fmt.Errorf("unexpected token bucket reply: %v", res)
	}

	allowed, _ := res[0].(int64)
	var remaining float64
	switch v := res[1].(type) {
	case int64:
		remaining = float64(v)
	case string:
		fmt.Sscanf(v, "%f", &remaining)
	}
	retryMicros, _ := res[2].(int64)

	return Decision{
		Allowed:    allowed == 1,
		Remaining:  remaining,
		RetryAfter: time.Duration(retryMicros) * time.Microsecond,
	}, nil
}

// Throttle pauses a channel until the given time, used when the provider
// reports a rate-limit error code on a status callback.
func (l *Limiter) Throttle(ctx context.Context, channelID uuid.UUID, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return l.rdb.Set(ctx, throttleKey(channelID), until.UTC().Format(time.RFC3339), ttl).Err()
}

// Throttled reports whether the channel is currently paused and until when.
func (l *Limiter) Throttled(ctx context.Context, channelID uuid.UUID) (bool, time.Time, error) {
	val, err := l.rdb.Get(ctx, throttleKey(channelID)).Result()
	if err == redis.Nil {
		return false, time.Time{}, nil
	}
	if err != nil {
		// Fail open, same as Allow.
		return false, time.Time{}, fmt.Errorf("throttle check unavailable: %w", err)
	}
	until, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return false, time.Time{}, nil
	}
	return true, until, nil
}
