package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// InMemoryConfigCache implements billing.ConfigCache with process-local
// storage. Suitable for single-instance deployments and tests; entries are
// not shared across processes, so a config update on one instance does not
// invalidate the others.
type InMemoryConfigCache struct {
	entries    sync.Map // map[uuid.UUID]*configEntry
	defaultTTL time.Duration
	logger     *zap.Logger
	stopCh     chan struct{}
	stopped    int32

	hits   int64
	misses int64
}

type configEntry struct {
	config    *billing.StatementConfig
	expiresAt time.Time
}

func (e *configEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryConfigCacheOption is a functional option for configuring the cache
type InMemoryConfigCacheOption func(*InMemoryConfigCache)

// WithInMemoryTTL sets the default TTL applied when Set receives a zero ttl
func WithInMemoryTTL(ttl time.Duration) InMemoryConfigCacheOption {
	return func(c *InMemoryConfigCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryConfigCacheOption {
	return func(c *InMemoryConfigCache) {
		c.logger = logger
	}
}

// NewInMemoryConfigCache creates a new in-memory statement config cache
func NewInMemoryConfigCache(opts ...InMemoryConfigCacheOption) *InMemoryConfigCache {
	cache := &InMemoryConfigCache{
		defaultTTL: defaultConfigTTL,
		logger:     zap.NewNop(),
		stopCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves a cached config, returning nil on a miss
func (c *InMemoryConfigCache) Get(ctx context.Context, channelID uuid.UUID) (*billing.StatementConfig, error) {
	if value, ok := c.entries.Load(channelID); ok {
		entry := value.(*configEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("statement config cache hit", zap.String("channel_id", channelID.String()))
			return entry.config, nil
		}
		c.entries.Delete(channelID)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("statement config cache miss", zap.String("channel_id", channelID.String()))
	return nil, nil
}

// Set stores a config under its channel key
func (c *InMemoryConfigCache) Set(ctx context.Context, config *billing.StatementConfig, ttl time.Duration) error {
	if config == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.entries.Store(config.ChannelID, &configEntry{
		config:    config,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Invalidate removes a channel's config from the cache
func (c *InMemoryConfigCache) Invalidate(ctx context.Context, channelID uuid.UUID) error {
	c.entries.Delete(channelID)
	return nil
}

// Close stops the background cleanup goroutine
func (c *InMemoryConfigCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns cache hit and miss counters
func (c *InMemoryConfigCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// cleanupExpired periodically removes expired entries
func (c *InMemoryConfigCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.entries.Range(func(key, value any) bool {
				if value.(*configEntry).isExpired() {
					c.entries.Delete(key)
				}
				return true
			})
		}
	}
}

// Ensure InMemoryConfigCache implements ConfigCache
var _ billing.ConfigCache = (*InMemoryConfigCache)(nil)
