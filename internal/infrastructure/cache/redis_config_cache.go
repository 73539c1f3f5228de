package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const defaultConfigTTL = 10 * time.Minute

// RedisConfigCache implements billing.ConfigCache using Redis.
// This is suitable for distributed deployments where multiple instances
// need to share the resolved statement configs.
type RedisConfigCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisConfigCache creates a Redis-backed statement config cache
func NewRedisConfigCache(cfg RedisConfig, defaultTTL time.Duration) (*RedisConfigCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisConfigCacheWithClient(client, "", defaultTTL), nil
}

// NewRedisConfigCacheWithClient creates a cache with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisConfigCacheWithClient(client *redis.Client, keyPrefix string, defaultTTL time.Duration) *RedisConfigCache {
	if keyPrefix == "" {
		keyPrefix = "billing:config:"
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultConfigTTL
	}
	return &RedisConfigCache{
		client:     client,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

// cachedConfig is the wire form of a statement config. Domain events never
// survive a cache round trip, which is fine for a read-through cache.
type cachedConfig struct {
	ID                  uuid.UUID        `json:"id"`
	TenantID            uuid.UUID        `json:"tenant_id"`
	Version             int              `json:"version"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	ChannelID           uuid.UUID        `json:"channel_id"`
	BillingCycleDays    int              `json:"billing_cycle_days"`
	BalanceThreshold    *decimal.Decimal `json:"balance_threshold,omitempty"`
	OrderCountThreshold *int             `json:"order_count_threshold,omitempty"`
	EscalationDays      int              `json:"escalation_days"`
	PaymentInstructions string           `json:"payment_instructions,omitempty"`
}

func toCachedConfig(config *billing.StatementConfig) *cachedConfig {
	return &cachedConfig{
		ID:                  config.ID,
		TenantID:            config.TenantID,
		Version:             config.Version,
		CreatedAt:           config.CreatedAt,
		UpdatedAt:           config.UpdatedAt,
		ChannelID:           config.ChannelID,
		BillingCycleDays:    config.BillingCycleDays,
		BalanceThreshold:    config.BalanceThreshold,
		OrderCountThreshold: config.OrderCountThreshold,
		EscalationDays:      config.EscalationDays,
		PaymentInstructions: config.PaymentInstructions,
	}
}

func (c *cachedConfig) toDomain() *billing.StatementConfig {
	config := &billing.StatementConfig{
		ChannelID:           c.ChannelID,
		BillingCycleDays:    c.BillingCycleDays,
		BalanceThreshold:    c.BalanceThreshold,
		OrderCountThreshold: c.OrderCountThreshold,
		EscalationDays:      c.EscalationDays,
		PaymentInstructions: c.PaymentInstructions,
	}
	config.TenantAggregateRoot = shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        c.ID,
				CreatedAt: c.CreatedAt,
				UpdatedAt: c.UpdatedAt,
			},
			Version: c.Version,
		},
		TenantID: c.TenantID,
	}
	return config
}

func (c *RedisConfigCache) key(channelID uuid.UUID) string {
	return c.keyPrefix + channelID.String()
}

// Get retrieves a cached config, returning nil on a miss
func (c *RedisConfigCache) Get(ctx context.Context, channelID uuid.UUID) (*billing.StatementConfig, error) {
	data, err := c.client.Get(ctx, c.key(channelID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read statement config from cache: %w", err)
	}

	var cached cachedConfig
	if err := json.Unmarshal(data, &cached); err != nil {
		// A corrupt entry is treated as a miss so the caller re-resolves
		_ = c.client.Del(ctx, c.key(channelID)).Err()
		return nil, nil
	}
	return cached.toDomain(), nil
}

// Set stores a config under its channel key
func (c *RedisConfigCache) Set(ctx context.Context, config *billing.StatementConfig, ttl time.Duration) error {
	if config == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(toCachedConfig(config))
	if err != nil {
		return fmt.Errorf("failed to marshal statement config: %w", err)
	}
	if err := c.client.Set(ctx, c.key(config.ChannelID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache statement config: %w", err)
	}
	return nil
}

// Invalidate removes a channel's config from the cache
func (c *RedisConfigCache) Invalidate(ctx context.Context, channelID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(channelID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate statement config: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisConfigCache) Close() error {
	return c.client.Close()
}

// Ensure RedisConfigCache implements ConfigCache
var _ billing.ConfigCache = (*RedisConfigCache)(nil)
