package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] bucket key; ARGV: now (float seconds), rate (tokens/s), capacity, cost.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local capacity = tonumber(ARGV[3])
	local cost = tonumber(ARGV[4]) or 1

	local tokens = tonumber(redis.call('HGET', key, 'tokens'))
	local last_refill = tonumber(redis.call('HGET', key, 'last_refill'))

	if tokens == nil then
		tokens = capacity
		last_refill = now
	end

	local elapsed = math.max(0, now - last_refill)
	tokens = math.min(tokens + elapsed * rate, capacity)

	local allowed = tokens >= cost
	if allowed then
		tokens = tokens - cost
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', tostring(now))
	redis.call('EXPIRE', key, math.ceil(capacity / rate * 2))

	local retry_after = 0
	if not allowed then
		retry_after = math.ceil((cost - tokens) / rate * 1000)
	end

	return {allowed and 1 or 0, math.floor(tokens), retry_after}
`)

// RedisLimiterConfig contains the collaborators of the Redis limiter
type RedisLimiterConfig struct {
	Client redis.UniversalClient
	Limits *Config
	Logger *zap.Logger
	// Now overrides the clock, for tests
	Now func() time.Time
}

// RedisLimiter implements Limiter using Redis with a token bucket algorithm
type RedisLimiter struct {
	client redis.UniversalClient
	config *Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a new Redis-backed rate limiter
func NewRedisLimiter(cfg *RedisLimiterConfig) (*RedisLimiter, error) {
	if cfg == nil || cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Limits == nil {
		cfg.Limits = DefaultConfig()
	}
	if cfg.Limits.Window <= 0 {
		cfg.Limits.Window = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &RedisLimiter{
		client: cfg.Client,
		config: cfg.Limits,
		logger: cfg.Logger,
		now:    cfg.Now,
	}, nil
}

func (rl *RedisLimiter) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.config.KeyPrefix, key)
}

// Allow checks if a single request is allowed for the given key
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := rl.now()
	limit := rl.config.GetLimit(key)
	if limit <= 0 {
		return &Result{Allowed: true, ResetTime: now}, nil
	}
	capacity := rl.config.GetCapacity(key)
	refillRate := float64(limit) / rl.config.Window.Seconds()

	raw, err := tokenBucketScript.Run(
		ctx,
		rl.client,
		[]string{rl.redisKey(key)},
		float64(now.UnixNano())/1e9,
		refillRate,
		capacity,
		1,
	).Result()
	if err != nil {
		if rl.config.FailOpen {
			rl.logger.Warn("Rate limiter unavailable, allowing request", zap.String("class", KeyClass(key)), zap.Error(err))
			return &Result{Allowed: true, Remaining: capacity, Limit: limit, ResetTime: now.Add(rl.config.Window)}, nil
		}
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("invalid script result: %v", raw)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	retryMs, _ := values[2].(int64)

	res := &Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		Limit:     limit,
		ResetTime: now.Add(rl.config.Window),
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration(retryMs) * time.Millisecond
		res.ResetTime = now.Add(res.RetryAfter)
	}
	return res, nil
}

// Reset clears the rate limit for a key
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := rl.client.Del(ctx, rl.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

// Limit returns the refill rate applied to key
func (rl *RedisLimiter) Limit(key string) int {
	return rl.config.GetLimit(key)
}
