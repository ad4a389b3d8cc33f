package catalog

import (
	"context"
	"fmt"

	"github.com/biblioteca/catalog-api/internal/cache"
	"github.com/biblioteca/catalog-api/internal/metrics"
	"go.uber.org/zap"
)

// Cache key prefixes, suffixed with the entity id
const (
	authorKeyPrefix = "catalog:autor:"
	genreKeyPrefix  = "catalog:genero:"
	bookKeyPrefix   = "catalog:livro:"
)

// ServiceConfig contains the collaborators of the catalog service
type ServiceConfig struct {
	Store   Store
	Cache   cache.Cache
	Metrics metrics.Metrics
	Logger  *zap.Logger
}

// Service implements the catalog use cases
type Service struct {
	store   Store
	cache   cache.Cache
	metrics metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a new catalog service
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Nop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoOpMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Service{
		store:   cfg.Store,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

func cacheKey(prefix string, id int64) string {
	return fmt.Sprintf("%s%d", prefix, id)
}

// readThrough returns the cached value for key or loads and caches it.
// Cache failures are logged and never fail the read.
func readThrough[T any](ctx context.Context, s *Service, key string, load func() (*T, error)) (*T, error) {
	var v T
	found, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		s.metrics.RecordCacheHit()
		return &v, nil
	}
	s.metrics.RecordCacheMiss()

	loaded, err := load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, loaded); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return loaded, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
