// Package main provides the entry point for the catalog server
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/biblioteca/catalog-api/internal/api/rest"
	"github.com/biblioteca/catalog-api/internal/api/rest/middleware"
	"github.com/biblioteca/catalog-api/internal/audit"
	"github.com/biblioteca/catalog-api/internal/auth"
	"github.com/biblioteca/catalog-api/internal/auth/jwt"
	"github.com/biblioteca/catalog-api/internal/cache"
	"github.com/biblioteca/catalog-api/internal/catalog"
	"github.com/biblioteca/catalog-api/internal/config"
	"github.com/biblioteca/catalog-api/internal/db"
	"github.com/biblioteca/catalog-api/internal/logging"
	"github.com/biblioteca/catalog-api/internal/metrics"
	"github.com/biblioteca/catalog-api/internal/ratelimit"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to the YAML configuration file")
		port        = flag.Int("port", 0, "HTTP port, overrides the configuration")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides the configuration")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("catalog-server %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logs, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logs.Close()
	logger := logs.Logger

	logger.Info("Starting catalog server",
		zap.String("version", Version),
		zap.Int("http_port", cfg.Server.Port),
	)

	if err := run(cfg, logs, *configPath); err != nil {
		logger.Error("Server failed", zap.Error(err))
		logs.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

func run(cfg *config.Config, logs *logging.Handle, configPath string) error {
	logger := logs.Logger
	ctx := context.Background()

	auditCfg := audit.DefaultConfig()
	auditCfg.Sink = cfg.Audit.Sink
	auditCfg.FilePath = cfg.Audit.File
	auditLog, err := audit.New(auditCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}
	defer auditLog.Close()

	var m metrics.Metrics = metrics.NewNoOpMetrics()
	if cfg.Metrics.Enabled {
		m = metrics.NewPrometheusMetrics("catalog")
	}

	principals, catalogStore, database, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	secret, err := cfg.JWTSecret()
	if err != nil {
		return err
	}
	codec, err := jwt.NewCodec(&jwt.CodecConfig{
		Secret:   secret,
		Lifetime: cfg.JWTLifetime(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	authService, err := auth.NewService(&auth.ServiceConfig{
		Store:  principals,
		Issuer: codec,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	authenticator, err := auth.NewAuthenticator(&auth.AuthenticatorConfig{
		Decoder: codec,
		Logger:  logger,
		Metrics: m,
		Audit:   auditLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	catalogService, err := catalog.NewService(&catalog.ServiceConfig{
		Store:   catalogStore,
		Cache:   newCache(cfg, redisClient),
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog service: %w", err)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}

	svc := rest.Services{
		Auth:          authService,
		Catalog:       catalogService,
		Authenticator: authenticator,
		Audit:         auditLog,
		Metrics:       m,
	}
	if database != nil {
		svc.DB = database
	}
	if redisClient != nil {
		svc.RateLimit, err = newRateLimit(cfg, redisClient, proxies, logger, m)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("Redis not configured, rate limiting disabled")
	}

	restCfg := rest.DefaultConfig()
	restCfg.Port = cfg.Server.Port
	restCfg.ReadTimeout = cfg.Server.ReadTimeout
	restCfg.WriteTimeout = cfg.Server.WriteTimeout
	restCfg.IdleTimeout = cfg.Server.IdleTimeout
	restCfg.CORSOrigins = cfg.Server.CORSOrigins
	restCfg.Proxies = proxies
	restCfg.Version = Version

	apiSrv, err := rest.New(restCfg, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to create REST server: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", m.HTTPHandler())
		metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		metricsSrv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
	}

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
			logs.SetLevel(next.Log.Level)
			logger.Info("Configuration reloaded", zap.String("log_level", next.Log.Level))
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		if err := watcher.Watch(watchCtx); err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Stop()
	}

	errChan := make(chan error, 2)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		errChan <- apiSrv.Start()
	}()

	if metricsSrv != nil {
		go func() {
			logger.Info("Starting metrics server", zap.Int("port", cfg.Metrics.Port))
			errChan <- metricsSrv.ListenAndServe()
		}()
	}

	startup := audit.NewEvent(audit.EventTypeSystemStartup)
	startup.Success = true
	auditLog.Record(ctx, startup)

	var runErr error
	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("Stopping HTTP servers")
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("REST server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	shutdown := audit.NewEvent(audit.EventTypeSystemShutdown)
	shutdown.Success = runErr == nil
	auditLog.Record(ctx, shutdown)

	return runErr
}

// openStores selects PostgreSQL when a database URL is configured and
// in-memory stores otherwise
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.PrincipalStore, catalog.Store, *sql.DB, error) {
	if cfg.Database.URL == "" {
		logger.Warn("No database configured, using in-memory stores")
		return auth.NewMemoryPrincipalStore(), catalog.NewMemoryStore(), nil, nil
	}

	dbCfg := db.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	if cfg.Database.MigrateOnStart {
		if err := db.MigrateUp(ctx, dbCfg, logger); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	conn, err := db.Open(ctx, dbCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("Connected to database",
		zap.Int("max_open_conns", dbCfg.MaxOpenConns),
		zap.Bool("migrated", cfg.Database.MigrateOnStart),
	)
	return auth.NewPostgresPrincipalStore(conn), catalog.NewPostgresStore(conn), conn, nil
}

func newCache(cfg *config.Config, client *redis.Client) cache.Cache {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(client, "catalog-cache", cfg.Cache.TTL)
	case "none":
		return cache.Nop{}
	default:
		return cache.NewLRU(cfg.Cache.Size, cfg.Cache.TTL)
	}
}

func newRateLimit(cfg *config.Config, client *redis.Client, proxies middleware.TrustedProxies, logger *zap.Logger, m metrics.Metrics) (*middleware.RateLimitMiddleware, error) {
	limits := ratelimit.DefaultConfig()
	limits.AuthRPS = cfg.RateLimit.AuthRPS
	limits.UserRPS = cfg.RateLimit.UserRPS
	limits.DefaultRPS = cfg.RateLimit.DefaultRPS
	limits.Burst = cfg.RateLimit.Burst
	limits.Window = cfg.RateLimit.Window
	limits.FailOpen = cfg.RateLimit.FailOpen

	limiter, err := ratelimit.NewRedisLimiter(&ratelimit.RedisLimiterConfig{
		Client: client,
		Limits: limits,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	rl, err := middleware.NewRateLimitMiddleware(&middleware.RateLimitConfig{
		Limiter: limiter,
		Proxies: proxies,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit middleware: %w", err)
	}
	return rl, nil
}
