package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Default policy values applied when a channel has no explicit configuration.
const (
	DefaultBillingCycleDays = 14
	DefaultEscalationDays   = 7
)

// StatementConfig is the per-channel billing policy: how long a billing cycle
// runs ("Net X"), which unbilled-balance or order-count thresholds force an
// early statement, and when overdue statements escalate internally.
// It is created lazily with defaults on first access and never deleted while
// the channel exists.
type StatementConfig struct {
	shared.TenantAggregateRoot
	ChannelID           uuid.UUID
	BillingCycleDays    int
	BalanceThreshold    *decimal.Decimal
	OrderCountThreshold *int
	EscalationDays      int
	PaymentInstructions string
}

// NewDefaultStatementConfig creates a config with default policy for a channel
func NewDefaultStatementConfig(tenantID, channelID uuid.UUID) *StatementConfig {
	return &StatementConfig{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ChannelID:           channelID,
		BillingCycleDays:    DefaultBillingCycleDays,
		EscalationDays:      DefaultEscalationDays,
	}
}

// StatementConfigUpdate carries the updatable policy fields. Nil pointers mean
// "leave unchanged"; thresholds use a double pointer so callers can distinguish
// "unchanged" from "clear the threshold".
type StatementConfigUpdate struct {
	BillingCycleDays    *int
	BalanceThreshold    **decimal.Decimal
	OrderCountThreshold **int
	EscalationDays      *int
	PaymentInstructions *string
}

// Apply validates and applies an update to the config
func (c *StatementConfig) Apply(update StatementConfigUpdate) error {
	if update.BillingCycleDays != nil {
		if *update.BillingCycleDays < 1 {
			return shared.NewDomainError("INVALID_CYCLE", "Billing cycle must be at least 1 day")
		}
		c.BillingCycleDays = *update.BillingCycleDays
	}
	if update.EscalationDays != nil {
		if *update.EscalationDays < 0 {
			return shared.NewDomainError("INVALID_ESCALATION", "Escalation days cannot be negative")
		}
		c.EscalationDays = *update.EscalationDays
	}
	if update.BalanceThreshold != nil {
		threshold := *update.BalanceThreshold
		if threshold != nil && threshold.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_THRESHOLD", "Balance threshold must be positive")
		}
		c.BalanceThreshold = threshold
	}
	if update.OrderCountThreshold != nil {
		threshold := *update.OrderCountThreshold
		if threshold != nil && *threshold < 1 {
			return shared.NewDomainError("INVALID_THRESHOLD", "Order count threshold must be at least 1")
		}
		c.OrderCountThreshold = threshold
	}
	if update.PaymentInstructions != nil {
		c.PaymentInstructions = *update.PaymentInstructions
	}

	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// CycleDuration returns the billing cycle as a duration
func (c *StatementConfig) CycleDuration() time.Duration {
	return time.Duration(c.BillingCycleDays) * 24 * time.Hour
}

// ReminderDueSoonAfter returns how long after statement creation the
// "due soon" reminder fires (half the billing cycle, floored).
func (c *StatementConfig) ReminderDueSoonAfter() int {
	return c.BillingCycleDays / 2
}

// ConfigCache is an injectable cache for statement configs. Implementations
// decide TTL and invalidation strategy; tests can plug a pass-through.
type ConfigCache interface {
	// Get returns the cached config for a channel, or nil on a miss
	Get(ctx context.Context, channelID uuid.UUID) (*StatementConfig, error)
	// Set stores the config; a zero ttl means the implementation default
	Set(ctx context.Context, config *StatementConfig, ttl time.Duration) error
	// Invalidate removes a channel's config from the cache
	Invalidate(ctx context.Context, channelID uuid.UUID) error
}
