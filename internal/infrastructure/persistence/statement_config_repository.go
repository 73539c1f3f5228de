package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/partnerbill/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStatementConfigRepository implements StatementConfigRepository using GORM
type GormStatementConfigRepository struct {
	db *gorm.DB
}

// NewGormStatementConfigRepository creates a new GormStatementConfigRepository
func NewGormStatementConfigRepository(db *gorm.DB) *GormStatementConfigRepository {
	return &GormStatementConfigRepository{db: db}
}

// FindByChannel finds the config for a channel. A missing config is not an
// error: the caller falls back to defaults.
func (r *GormStatementConfigRepository) FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*billing.StatementConfig, error) {
	var model models.StatementConfigModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ?", tenantID, channelID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a config
func (r *GormStatementConfigRepository) Save(ctx context.Context, cfg *billing.StatementConfig) error {
	model := models.StatementConfigModelFromDomain(cfg)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a channel's config so defaults apply again
func (r *GormStatementConfigRepository) Delete(ctx context.Context, tenantID, channelID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.StatementConfigModel{}, "tenant_id = ? AND channel_id = ?", tenantID, channelID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormStatementConfigRepository implements StatementConfigRepository
var _ billing.StatementConfigRepository = (*GormStatementConfigRepository)(nil)
