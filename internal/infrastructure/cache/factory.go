package cache

import (
	"fmt"
	"time"

	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ConfigCacheFactory creates statement config caches based on configuration
type ConfigCacheFactory struct {
	redisConfig           config.RedisConfig
	defaultTTL            time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ConfigCacheFactoryOption is a functional option for configuring the factory
type ConfigCacheFactoryOption func(*ConfigCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ConfigCacheFactoryOption {
	return func(f *ConfigCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) ConfigCacheFactoryOption {
	return func(f *ConfigCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewConfigCacheFactory creates a new factory
func NewConfigCacheFactory(redisCfg config.RedisConfig, defaultTTL time.Duration, opts ...ConfigCacheFactoryOption) *ConfigCacheFactory {
	f := &ConfigCacheFactory{
		redisConfig:           redisCfg,
		defaultTTL:            defaultTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-backed statement config cache
func (f *ConfigCacheFactory) CreateRedisCache() (billing.ConfigCache, error) {
	cache, err := NewRedisConfigCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.defaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis config cache: %w", err)
	}
	return cache, nil
}

// CreateInMemoryCache creates a process-local statement config cache
func (f *ConfigCacheFactory) CreateInMemoryCache() billing.ConfigCache {
	return NewInMemoryConfigCache(
		WithInMemoryTTL(f.defaultTTL),
		WithInMemoryLogger(f.logger),
	)
}

// CreateCache tries Redis first and falls back to an in-memory cache when
// Redis is unreachable and fallback is allowed. A stale in-memory entry on
// one instance only delays a policy change until the TTL expires, so the
// fallback is acceptable outside strict multi-instance deployments.
func (f *ConfigCacheFactory) CreateCache() (billing.ConfigCache, error) {
	cache, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis statement config cache")
		return cache, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for config cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory statement config cache",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
