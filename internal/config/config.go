// Package config loads the catalog server configuration from a YAML file
// and CATALOG_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/biblioteca/catalog-api/internal/auth/jwt"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CATALOG_"

// Config is the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	JWT       JWTConfig       `yaml:"jwt"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig configures the HTTP API listener
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// MetricsConfig configures the Prometheus listener
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// JWTConfig configures token signing
type JWTConfig struct {
	// Secret is the base64 encoded HMAC key, at least 32 bytes decoded
	Secret       string `yaml:"secret"`
	ExpirationMS int64  `yaml:"expiration_ms"`
}

// DatabaseConfig configures PostgreSQL. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// RedisConfig configures Redis. An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig configures the token buckets
type RateLimitConfig struct {
	AuthRPS    int           `yaml:"auth_rps"`
	UserRPS    int           `yaml:"user_rps"`
	DefaultRPS int           `yaml:"default_rps"`
	Burst      int           `yaml:"burst"`
	Window     time.Duration `yaml:"window"`
	FailOpen   bool          `yaml:"fail_open"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is believed
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// CacheConfig configures the catalog read cache
type CacheConfig struct {
	Backend string        `yaml:"backend"` // memory, redis, none
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AuditConfig configures the audit trail
type AuditConfig struct {
	Sink string `yaml:"sink"` // stdout, file, none
	File string `yaml:"file"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		JWT: JWTConfig{
			ExpirationMS: jwt.DefaultLifetime.Milliseconds(),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			MigrateOnStart:  true,
		},
		RateLimit: RateLimitConfig{
			AuthRPS:    10,
			UserRPS:    200,
			DefaultRPS: 100,
			Burst:      200,
			Window:     time.Second,
			FailOpen:   true,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    1000,
			TTL:     5 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
		},
		Audit: AuditConfig{
			Sink: "stdout",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CATALOG_* variables returned by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("JWT_SECRET", &c.JWT.Secret)
	str("DATABASE_URL", &c.Database.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("AUDIT_SINK", &c.Audit.Sink)
	str("AUDIT_FILE", &c.Audit.File)

	if v, ok := lookup(EnvPrefix + "JWT_EXPIRATION_MS"); ok {
		ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sJWT_EXPIRATION_MS: %w", EnvPrefix, err)
		}
		c.JWT.ExpirationMS = ms
	}
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "TRUSTED_PROXIES"); ok {
		c.RateLimit.TrustedProxies = splitList(v)
	}

	for name, dst := range map[string]*int{
		"HTTP_PORT":    &c.Server.Port,
		"METRICS_PORT": &c.Metrics.Port,
		"REDIS_DB":     &c.Redis.DB,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if _, err := jwt.DecodeSecret(c.JWT.Secret); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	if c.JWT.ExpirationMS <= 0 {
		return fmt.Errorf("jwt: expiration_ms must be positive, got %d", c.JWT.ExpirationMS)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics: invalid port %d", c.Metrics.Port)
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("cache: redis backend requires redis.addr")
		}
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}
	switch c.Audit.Sink {
	case "stdout", "none", "":
	case "file":
		if c.Audit.File == "" {
			return fmt.Errorf("audit: file sink requires audit.file")
		}
	default:
		return fmt.Errorf("audit: unknown sink %q", c.Audit.Sink)
	}
	return nil
}

// JWTSecret returns the decoded signing key
func (c *Config) JWTSecret() ([]byte, error) {
	return jwt.DecodeSecret(c.JWT.Secret)
}

// JWTLifetime returns the token lifetime
func (c *Config) JWTLifetime() time.Duration {
	return time.Duration(c.JWT.ExpirationMS) * time.Millisecond
}
