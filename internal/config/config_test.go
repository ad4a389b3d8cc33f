package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validSecret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(3_600_000), cfg.JWT.ExpirationMS)
	assert.Equal(t, time.Hour, cfg.JWTLifetime())
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.True(t, cfg.RateLimit.FailOpen)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  read_timeout: 3s
  cors_origins: ["https://biblioteca.example"]
jwt:
  secret: `+validSecret+`
  expiration_ms: 60000
cache:
  backend: none
  ttl: 1m
rate_limit:
  trusted_proxies: ["10.0.0.0/8", "192.0.2.10"]
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://biblioteca.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.JWTLifetime())
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.RateLimit.TrustedProxies)
	// untouched sections keep defaults
	assert.Equal(t, 9090, cfg.Metrics.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"CATALOG_JWT_SECRET":        validSecret,
		"CATALOG_JWT_EXPIRATION_MS": "120000",
		"CATALOG_DATABASE_URL":      "postgres://localhost/catalog",
		"CATALOG_REDIS_ADDR":        "localhost:6379",
		"CATALOG_HTTP_PORT":         "8181",
		"CATALOG_LOG_LEVEL":         "warn",
		"CATALOG_CORS_ORIGINS":      "https://a.example, https://b.example,",
		"CATALOG_TRUSTED_PROXIES":   "10.0.0.1, 10.0.0.2",
	}))
	require.NoError(t, err)

	assert.Equal(t, validSecret, cfg.JWT.Secret)
	assert.Equal(t, 2*time.Minute, cfg.JWTLifetime())
	assert.Equal(t, "postgres://localhost/catalog", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.RateLimit.TrustedProxies)
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	assert.Error(t, Default().ApplyEnv(envMap(map[string]string{"CATALOG_HTTP_PORT": "eighty"})))
	assert.Error(t, Default().ApplyEnv(envMap(map[string]string{"CATALOG_JWT_EXPIRATION_MS": "1h"})))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.JWT.Secret = validSecret
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }},
		{"secret not base64", func(c *Config) { c.JWT.Secret = "not base64!!" }},
		{"secret too short", func(c *Config) { c.JWT.Secret = base64.StdEncoding.EncodeToString([]byte("short")) }},
		{"zero lifetime", func(c *Config) { c.JWT.ExpirationMS = 0 }},
		{"negative lifetime", func(c *Config) { c.JWT.ExpirationMS = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis cache without redis", func(c *Config) { c.Cache.Backend = "redis" }},
		{"file audit without path", func(c *Config) { c.Audit.Sink = "file" }},
		{"unknown audit sink", func(c *Config) { c.Audit.Sink = "syslog" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestJWTSecret(t *testing.T) {
	cfg := Default()
	cfg.JWT.Secret = validSecret
	secret, err := cfg.JWTSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}
