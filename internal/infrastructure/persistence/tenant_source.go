package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// GormTenantSource lists tenants that have at least one active channel.
// The scheduler uses it to fan scheduled passes out per tenant.
type GormTenantSource struct {
	db *gorm.DB
}

// NewGormTenantSource creates a new tenant source
func NewGormTenantSource(db *gorm.DB) *GormTenantSource {
	return &GormTenantSource{db: db}
}

// ActiveTenants returns the distinct tenant IDs with active channels
func (s *GormTenantSource) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	err := s.db.WithContext(ctx).
		Table("billing_channels").
		Where("status = ?", billing.ChannelStatusActive.String()).
		Distinct("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return tenantIDs, nil
}
