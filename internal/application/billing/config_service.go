package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const configCacheTTL = 10 * time.Minute

// ConfigService manages per-channel billing policies. Reads go through the
// injected cache; any write invalidates the channel's cached policy.
type ConfigService struct {
	channelRepo billing.ChannelRepository
	configRepo  billing.StatementConfigRepository
	cache       billing.ConfigCache
	logger      *zap.Logger
}

// NewConfigService creates a new ConfigService
func NewConfigService(
	channelRepo billing.ChannelRepository,
	configRepo billing.StatementConfigRepository,
	cache billing.ConfigCache,
	logger *zap.Logger,
) *ConfigService {
	return &ConfigService{
		channelRepo: channelRepo,
		configRepo:  configRepo,
		cache:       cache,
		logger:      logger,
	}
}

// StatementConfigResponse represents a billing policy in API responses
type StatementConfigResponse struct {
	ChannelID           uuid.UUID        `json:"channel_id"`
	BillingCycleDays    int              `json:"billing_cycle_days"`
	BalanceThreshold    *decimal.Decimal `json:"balance_threshold,omitempty"`
	OrderCountThreshold *int             `json:"order_count_threshold,omitempty"`
	EscalationDays      int              `json:"escalation_days"`
	PaymentInstructions string           `json:"payment_instructions,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ToStatementConfigResponse converts a domain config to a response
func ToStatementConfigResponse(cfg *billing.StatementConfig) *StatementConfigResponse {
	return &StatementConfigResponse{
		ChannelID:           cfg.ChannelID,
		BillingCycleDays:    cfg.BillingCycleDays,
		BalanceThreshold:    cfg.BalanceThreshold,
		OrderCountThreshold: cfg.OrderCountThreshold,
		EscalationDays:      cfg.EscalationDays,
		PaymentInstructions: cfg.PaymentInstructions,
		UpdatedAt:           cfg.UpdatedAt,
	}
}

// GetConfig returns the effective billing policy for a channel, creating the
// default lazily on first access.
func (s *ConfigService) GetConfig(ctx context.Context, tenantID, channelID uuid.UUID) (*StatementConfigResponse, error) {
	cfg, err := s.ResolveConfig(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	return ToStatementConfigResponse(cfg), nil
}

// ResolveConfig returns the domain config for internal callers (statement and
// reminder passes). Cache misses fall through to the repository; a channel
// without a stored config gets the default policy persisted on the spot.
func (s *ConfigService) ResolveConfig(ctx context.Context, tenantID, channelID uuid.UUID) (*billing.StatementConfig, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, channelID)
		if err != nil {
			s.logger.Warn("config cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	cfg, err := s.configRepo.FindByChannel(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if _, err := s.channelRepo.FindByID(ctx, tenantID, channelID); err != nil {
			return nil, err
		}
		cfg = billing.NewDefaultStatementConfig(tenantID, channelID)
		if err := s.configRepo.Save(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cfg, configCacheTTL); err != nil {
			s.logger.Warn("config cache write failed", zap.Error(err))
		}
	}
	return cfg, nil
}

// UpdateConfigInput carries the updatable policy fields. Nil means unchanged;
// the Clear flags reset a threshold so the trigger stops firing.
type UpdateConfigInput struct {
	BillingCycleDays         *int
	BalanceThreshold         *decimal.Decimal
	ClearBalanceThreshold    bool
	OrderCountThreshold      *int
	ClearOrderCountThreshold bool
	EscalationDays           *int
	PaymentInstructions      *string
}

// UpdateConfig applies a policy change and invalidates the cache
func (s *ConfigService) UpdateConfig(ctx context.Context, tenantID, channelID uuid.UUID, input UpdateConfigInput) (*StatementConfigResponse, error) {
	cfg, err := s.ResolveConfig(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}

	update := billing.StatementConfigUpdate{
		BillingCycleDays:    input.BillingCycleDays,
		EscalationDays:      input.EscalationDays,
		PaymentInstructions: input.PaymentInstructions,
	}
	if input.ClearBalanceThreshold {
		var cleared *decimal.Decimal
		update.BalanceThreshold = &cleared
	} else if input.BalanceThreshold != nil {
		v := input.BalanceThreshold
		update.BalanceThreshold = &v
	}
	if input.ClearOrderCountThreshold {
		var cleared *int
		update.OrderCountThreshold = &cleared
	} else if input.OrderCountThreshold != nil {
		v := input.OrderCountThreshold
		update.OrderCountThreshold = &v
	}

	if err := cfg.Apply(update); err != nil {
		return nil, err
	}
	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, channelID); err != nil {
			s.logger.Warn("config cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("billing policy updated", zap.String("channel_id", channelID.String()))
	return ToStatementConfigResponse(cfg), nil
}
