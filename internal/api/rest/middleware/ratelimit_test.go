package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/biblioteca/catalog-api/internal/auth"
	"github.com/biblioteca/catalog-api/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLimiter records keys and answers from a fixed result
type stubLimiter struct {
	keys   []string
	result *ratelimit.Result
	err    error
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

func (s *stubLimiter) Reset(ctx context.Context, key string) error { return nil }

func (s *stubLimiter) Limit(key string) int { return 10 }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestMiddleware(t *testing.T, limiter ratelimit.Limiter) *RateLimitMiddleware {
	t.Helper()
	m, err := NewRateLimitMiddleware(&RateLimitConfig{Limiter: limiter})
	require.NoError(t, err)
	return m
}

func TestNewRateLimitMiddleware(t *testing.T) {
	_, err := NewRateLimitMiddleware(nil)
	assert.Error(t, err)
	_, err = NewRateLimitMiddleware(&RateLimitConfig{})
	assert.Error(t, err)
}

func TestRateLimitMiddleware_Allowed(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{Allowed: true, Remaining: 7, Limit: 10, ResetTime: time.Unix(1700000000, 0)}}
	h := newTestMiddleware(t, limiter).Handler(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000000", rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, []string{"auth:/api/v1/auth/login:192.0.2.1"}, limiter.keys)
}

func TestRateLimitMiddleware_Rejected(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{Allowed: false, Limit: 10, RetryAfter: 1500 * time.Millisecond, ResetTime: time.Now()}}
	h := newTestMiddleware(t, limiter).Handler(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body auth.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Too Many Requests", body.Error)
	assert.Equal(t, MsgTooManyRequests, body.Message)
}

func TestRateLimitMiddleware_LimiterError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	h := newTestMiddleware(t, limiter).Handler(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/livros", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitMiddleware_KeyClasses(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{Allowed: true}}
	m := newTestMiddleware(t, limiter)

	t.Run("authenticated subject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/livros", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{Subject: "alice"}))
		assert.Equal(t, "user:alice", m.buildRateLimitKey(req, "192.0.2.1"))
	})

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/livros", nil)
		assert.Equal(t, "ip:192.0.2.1", m.buildRateLimitKey(req, "192.0.2.1"))
	})
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name       string
		proxies    TrustedProxies
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{name: "no proxies trusted ignores headers", remoteAddr: "198.51.100.7:1234", xff: "203.0.113.1", realIP: "203.0.113.9", want: "198.51.100.7"},
		{name: "untrusted peer ignores headers", proxies: proxies, remoteAddr: "198.51.100.7:1234", xff: "203.0.113.1", want: "198.51.100.7"},
		{name: "trusted peer forwards client", proxies: proxies, remoteAddr: "10.1.2.3:1234", xff: "203.0.113.1", want: "203.0.113.1"},
		{name: "spoofed leftmost hop is skipped", proxies: proxies, remoteAddr: "10.1.2.3:1234", xff: "1.1.1.1, 203.0.113.1, 10.0.0.5", want: "203.0.113.1"},
		{name: "all hops trusted returns leftmost", proxies: proxies, remoteAddr: "192.0.2.10:80", xff: "10.0.0.7, 10.0.0.5", want: "10.0.0.7"},
		{name: "garbage hop stops the walk", proxies: proxies, remoteAddr: "10.1.2.3:1234", xff: "203.0.113.1, not-an-ip", want: "10.1.2.3"},
		{name: "real ip from trusted peer", proxies: proxies, remoteAddr: "192.0.2.10:80", realIP: " 203.0.113.9 ", want: "203.0.113.9"},
		{name: "remote addr without port", remoteAddr: "198.51.100.7", want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "proxy.local", "10.0.0"} {
		_, err := ParseTrustedProxies([]string{entry})
		assert.Error(t, err, entry)
	}
}

func TestRateLimitMiddleware_RotatingForwardedForStillLimited(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
		// Disable CLIENT SETINFO for miniredis compatibility
		DisableIndentity: true,
	})
	t.Cleanup(func() { client.Close() })

	now := time.Unix(1_700_000_000, 0)
	limiter, err := ratelimit.NewRedisLimiter(&ratelimit.RedisLimiterConfig{
		Client: client,
		Limits: &ratelimit.Config{AuthRPS: 10, DefaultRPS: 100, Window: time.Second, KeyPrefix: "test"},
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	h := newTestMiddleware(t, limiter).Handler(okHandler())

	rejected := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}

	assert.Equal(t, 40, rejected)
}
