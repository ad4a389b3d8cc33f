// Package middleware contains HTTP middleware shared by the REST server
package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/biblioteca/catalog-api/internal/auth"
	"github.com/biblioteca/catalog-api/internal/metrics"
	"github.com/biblioteca/catalog-api/internal/ratelimit"
	"go.uber.org/zap"
)

// MsgTooManyRequests is the message of a 429 response
const MsgTooManyRequests = "muitas requisições"

// RateLimitConfig holds configuration for rate limit middleware
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	// AuthPrefix selects the auth:<path>:<ip> key class
	AuthPrefix string
	// Proxies decides whose forwarding headers identify the client
	Proxies TrustedProxies
	Logger  *zap.Logger
	Metrics metrics.Metrics
}

// RateLimitMiddleware implements HTTP rate limiting middleware
type RateLimitMiddleware struct {
	limiter    ratelimit.Limiter
	authPrefix string
	proxies    TrustedProxies
	logger     *zap.Logger
	metrics    metrics.Metrics
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(cfg *RateLimitConfig) (*RateLimitMiddleware, error) {
	if cfg == nil || cfg.Limiter == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	if cfg.AuthPrefix == "" {
		cfg.AuthPrefix = "/api/v1/auth/"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoOpMetrics()
	}

	return &RateLimitMiddleware{
		limiter:    cfg.Limiter,
		authPrefix: cfg.AuthPrefix,
		proxies:    cfg.Proxies,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.buildRateLimitKey(r, m.proxies.ClientIP(r))

		res, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.Error("Rate limit check failed", zap.String("class", ratelimit.KeyClass(key)), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "serviço indisponível")
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

		if !res.Allowed {
			class := ratelimit.KeyClass(key)
			m.metrics.RecordRateLimitRejection(class)
			m.logger.Info("Rate limit exceeded",
				zap.String("class", class),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)

			retry := int64(math.Ceil(res.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			h.Set("Retry-After", strconv.FormatInt(retry, 10))
			writeError(w, http.StatusTooManyRequests, MsgTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// buildRateLimitKey constructs the rate limit key based on endpoint and client
func (m *RateLimitMiddleware) buildRateLimitKey(r *http.Request, clientIP string) string {
	if strings.HasPrefix(r.URL.Path, m.authPrefix) {
		return fmt.Sprintf("%s:%s:%s", ratelimit.ClassAuth, r.URL.Path, clientIP)
	}

	if id, err := auth.GetIdentity(r.Context()); err == nil && id.Subject != "" {
		return fmt.Sprintf("%s:%s", ratelimit.ClassUser, id.Subject)
	}

	return fmt.Sprintf("%s:%s", ratelimit.ClassIP, clientIP)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(auth.ErrorBody{
		Error:   http.StatusText(status),
		Message: message,
	})
}
