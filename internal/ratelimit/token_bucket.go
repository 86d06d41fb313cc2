// Package ratelimit implements a Redis-backed token bucket shared by every
// API replica.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "trackprep:ratelimit"

type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

type Options struct {
	Capacity  int
	Window    time.Duration
	KeyPrefix string
}

// TokenBucket refills Capacity tokens per Window for every subject. State
// lives in one Redis hash per subject and expires after two idle windows.
type TokenBucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now_ms

tokens = math.min(capacity, tokens + math.max(0, now_ms - ts) * refill_per_ms)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait_ms = math.ceil((1 - tokens) / refill_per_ms)
end

redis.call("HSET", key, "tokens", tokens, "ts", now_ms)
redis.call("PEXPIRE", key, ttl_ms)

return {allowed, math.floor(tokens), wait_ms}
`)

func NewTokenBucket(client redis.UniversalClient, opts Options) (*TokenBucket, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Capacity <= 0 {
		return nil, errors.New("capacity must be positive")
	}
	if opts.Window <= 0 {
		return nil, errors.New("window must be positive")
	}

	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	windowMS := max(opts.Window.Milliseconds(), 1)

	return &TokenBucket{
		client:      client,
		capacity:    int64(opts.Capacity),
		refillPerMS: float64(opts.Capacity) / float64(windowMS),
		ttl:         2 * opts.Window,
		keyPrefix:   prefix,
		now:         time.Now,
	}, nil
}

// Ping checks that Redis is reachable.
func (b *TokenBucket) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *TokenBucket) Close() error {
	return b.client.Close()
}

// Allow takes one token from subject's bucket.
func (b *TokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	raw, err := tokenBucketScript.Run(
		ctx,
		b.client,
		[]string{b.key(subject)},
		b.capacity,
		b.refillPerMS,
		b.now().UTC().UnixMilli(),
		b.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}

	d, err := parseDecision(raw)
	if err != nil {
		return Decision{}, err
	}
	d.Limit = b.capacity
	return d, nil
}

func (b *TokenBucket) key(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return b.keyPrefix + ":" + subject
}

func parseDecision(raw any) (Decision, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket reply %v", raw)
	}

	var parsed [3]int64
	for i, v := range values {
		n, err := toInt64(v)
		if err != nil {
			return Decision{}, fmt.Errorf("parse token bucket reply field %d: %w", i, err)
		}
		parsed[i] = n
	}

	return Decision{
		Allowed:    parsed[0] == 1,
		Remaining:  parsed[1],
		RetryAfter: time.Duration(parsed[2]) * time.Millisecond,
	}, nil
}

func toInt64(in any) (int64, error) {
	switch v := in.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", in)
	}
}
