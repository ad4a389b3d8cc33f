// Package ratelimit implements a Redis-backed token bucket limiter keyed by
// request class.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Key classes, used as key prefixes and metric labels
const (
	ClassAuth = "auth"
	ClassUser = "user"
	ClassIP   = "ip"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow consumes one token for key
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset clears the bucket for a key
	Reset(ctx context.Context, key string) error

	// Limit returns the refill rate applied to key
	Limit(key string) int
}

// Result holds the result of a rate limit check
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetTime time.Time
	// RetryAfter is set when the request was rejected
	RetryAfter time.Duration
}

// Config holds rate limiter configuration
type Config struct {
	// AuthRPS is the rate for auth:<path>:<ip> keys; their capacity equals the rate
	AuthRPS int

	// UserRPS is the rate for user:<subject> keys
	UserRPS int

	// DefaultRPS is the rate for ip:<ip> and unclassified keys
	DefaultRPS int

	// Burst is the capacity of ip: buckets; zero means DefaultRPS
	Burst int

	// Window is the period over which a rate's tokens are refilled
	Window time.Duration

	// KeyPrefix is the Redis key prefix
	KeyPrefix string

	// FailOpen allows requests when Redis is unavailable
	FailOpen bool
}

// DefaultConfig returns default rate limiter configuration
func DefaultConfig() *Config {
	return &Config{
		AuthRPS:    10,
		UserRPS:    200,
		DefaultRPS: 100,
		Burst:      200,
		Window:     time.Second,
		KeyPrefix:  "ratelimit",
		FailOpen:   true,
	}
}

// KeyClass returns the class prefix of a key, defaulting to ClassIP
func KeyClass(key string) string {
	switch {
	case strings.HasPrefix(key, ClassAuth+":"):
		return ClassAuth
	case strings.HasPrefix(key, ClassUser+":"):
		return ClassUser
	default:
		return ClassIP
	}
}

// GetLimit returns the refill rate for a given key
func (c *Config) GetLimit(key string) int {
	switch KeyClass(key) {
	case ClassAuth:
		return c.AuthRPS
	case ClassUser:
		if c.UserRPS > 0 {
			return c.UserRPS
		}
	}
	return c.DefaultRPS
}

// GetCapacity returns the bucket size for a given key
func (c *Config) GetCapacity(key string) int {
	limit := c.GetLimit(key)
	if KeyClass(key) == ClassIP && c.Burst > limit {
		return c.Burst
	}
	return limit
}
