// Package jwt issues and decodes the signed bearer tokens handed out at login
package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// DefaultLifetime matches the default of 3,600,000 ms
	DefaultLifetime = time.Hour

	// MinSecretBytes is the minimum decoded length accepted for the HS256 secret
	MinSecretBytes = 32
)

// Claims is the token payload: subject, roles, issued-at and expiry
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// CodecConfig contains configuration for the token codec
type CodecConfig struct {
	// Secret is the raw HS256 key, see DecodeSecret for the base64 form
	Secret   []byte
	Lifetime time.Duration
	Logger   *zap.Logger

	// Now overrides the clock, used by tests
	Now func() time.Time
}

// Codec signs and verifies HS256 tokens with a single process-wide secret
type Codec struct {
	secret   []byte
	lifetime time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// DecodeSecret decodes the base64-encoded signing secret from configuration
func DecodeSecret(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("signing secret is not valid base64: %w", err)
	}
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretBytes, len(secret))
	}
	return secret, nil
}

// NewCodec creates a new token codec
func NewCodec(cfg *CodecConfig) (*Codec, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.Lifetime < 0 {
		return nil, fmt.Errorf("lifetime must be positive")
	}

	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{
		secret:   secret,
		lifetime: cfg.Lifetime,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// Lifetime returns the configured token lifetime
func (c *Codec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue signs a token for subject carrying roles, valid from now for the configured lifetime
func (c *Codec) Issue(subject string, roles []string) (string, error) {
	now := c.now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
		Roles: normalizeRoles(roles),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	c.logger.Debug("Token issued",
		zap.String("subject", subject),
		zap.Time("expires_at", claims.ExpiresAt.Time),
	)
	return signed, nil
}

// Decode verifies the signature and expiry of encoded and returns its claims.
// Every failure is a *DecodeError.
func (c *Codec) Decode(encoded string) (*Claims, error) {
	if encoded == "" {
		return nil, &DecodeError{Kind: DecodeMalformed, Err: jwt.ErrTokenMalformed}
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(encoded, claims, c.keyFunc,
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, &DecodeError{Kind: classify(err), Err: err}
	}

	claims.Roles = normalizeRoles(claims.Roles)
	return claims, nil
}

func (c *Codec) keyFunc(token *jwt.Token) (interface{}, error) {
	// Only HS256 is ever issued; anything else (including "none") is refused
	if token.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unsupported signing algorithm: %v", token.Header["alg"])
	}
	return c.secret, nil
}

func classify(err error) DecodeKind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return DecodeExpired
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return DecodeMalformed
	default:
		return DecodeOther
	}
}

// normalizeRoles drops empties and duplicates and sorts, roles are a set
func normalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
