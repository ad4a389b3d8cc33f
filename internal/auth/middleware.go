// Package auth authenticates API callers: it issues bearer tokens at login,
// registers principals and verifies the token on every inbound request.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/biblioteca/catalog-api/internal/audit"
	"github.com/biblioteca/catalog-api/internal/auth/jwt"
	"github.com/biblioteca/catalog-api/internal/metrics"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Messages returned in the 401 body
const (
	MsgTokenExpired = "Token expirado"
	MsgTokenInvalid = "Token inválido"
	MsgAuthFailed   = "Falha na autenticação"
	MsgAuthRequired = "Autenticação necessária"
	MsgAccessDenied = "Acesso negado"
)

// DefaultBypassPrefixes are the path prefixes that skip token verification
var DefaultBypassPrefixes = []string{
	"/api/v1/auth/",
	"/swagger-ui/",
	"/v3/api-docs/",
}

// TokenDecoder decodes a bearer token into its claims
type TokenDecoder interface {
	Decode(encoded string) (*jwt.Claims, error)
}

// AuthenticatorConfig contains configuration for the request authenticator
type AuthenticatorConfig struct {
	Decoder        TokenDecoder
	BypassPrefixes []string
	Logger         *zap.Logger
	Metrics        metrics.Metrics
	Audit          *audit.Logger
}

// Authenticator is the bearer-token filter. For every request it either
// passes through (with or without an installed Identity) or answers 401.
type Authenticator struct {
	decoder        TokenDecoder
	bypassPrefixes []string
	logger         *zap.Logger
	metrics        metrics.Metrics
	audit          *audit.Logger
}

// ErrorBody is the JSON body of 401 and 403 responses
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewAuthenticator creates a new request authenticator
func NewAuthenticator(cfg *AuthenticatorConfig) (*Authenticator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Decoder == nil {
		return nil, fmt.Errorf("token decoder is required")
	}
	if cfg.BypassPrefixes == nil {
		cfg.BypassPrefixes = DefaultBypassPrefixes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoOpMetrics()
	}

	return &Authenticator{
		decoder:        cfg.Decoder,
		bypassPrefixes: cfg.BypassPrefixes,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		audit:          cfg.Audit,
	}, nil
}

// Handler returns an HTTP middleware handler
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, reason := a.authenticate(r)
		if reason != "" {
			a.audit.Record(r.Context(), audit.Event{
				EventType:  audit.EventTypeTokenRejected,
				RemoteAddr: r.RemoteAddr,
				Reason:     reason,
			})
			respondError(w, http.StatusUnauthorized, reason)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) shouldBypass(path string) bool {
	for _, prefix := range a.bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// authenticate returns the context to continue with, or a non-empty
// rejection reason. Panics are recovered into the generic reason.
func (a *Authenticator) authenticate(r *http.Request) (ctx context.Context, reason string) {
	ctx = r.Context()

	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("Authentication error",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
			)
			a.metrics.RecordTokenDecode(metrics.OutcomeOther)
			ctx, reason = r.Context(), MsgAuthFailed
		}
	}()

	header := r.Header.Get(authorizationHeader)
	if !strings.HasPrefix(header, bearerPrefix) {
		return ctx, ""
	}
	token := header[len(bearerPrefix):]

	if _, err := GetIdentity(ctx); err == nil {
		return ctx, ""
	}

	claims, err := a.decoder.Decode(token)
	if err != nil {
		return ctx, a.rejectReason(r, err)
	}
	a.metrics.RecordTokenDecode(metrics.OutcomeOK)

	if claims.Subject == "" {
		return ctx, ""
	}

	identity := &Identity{
		Subject:     claims.Subject,
		Authorities: Authorities(claims.Roles),
		RemoteAddr:  r.RemoteAddr,
	}

	a.logger.Debug("Request authenticated",
		zap.String("subject", identity.Subject),
		zap.Strings("authorities", identity.Authorities),
		zap.String("path", r.URL.Path),
	)

	return WithIdentity(ctx, identity), ""
}

func (a *Authenticator) rejectReason(r *http.Request, err error) string {
	var decodeErr *jwt.DecodeError
	if !errors.As(err, &decodeErr) {
		a.logger.Error("Authentication error", zap.Error(err), zap.String("path", r.URL.Path))
		a.metrics.RecordTokenDecode(metrics.OutcomeOther)
		return MsgAuthFailed
	}

	fields := []zap.Field{zap.Error(decodeErr.Err), zap.String("path", r.URL.Path)}
	switch decodeErr.Kind {
	case jwt.DecodeExpired:
		a.logger.Warn("Token expired", fields...)
		a.metrics.RecordTokenDecode(metrics.OutcomeExpired)
		return MsgTokenExpired
	case jwt.DecodeMalformed:
		a.logger.Warn("Token invalid", fields...)
		a.metrics.RecordTokenDecode(metrics.OutcomeMalformed)
		return MsgTokenInvalid
	default:
		a.logger.Warn("Token processing failed", fields...)
		a.metrics.RecordTokenDecode(metrics.OutcomeOther)
		return MsgAuthFailed
	}
}

// RequireAnyAuthority returns middleware that requires an identity holding
// at least one of the authorities
func RequireAnyAuthority(authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := GetIdentity(r.Context())
			if err != nil {
				respondError(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}

			if !identity.HasAnyAuthority(authorities...) {
				respondError(w, http.StatusForbidden, MsgAccessDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// respondError writes {"error": <status text>, "message": message}
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorBody{
		Error:   http.StatusText(status),
		Message: message,
	})
}
