package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/partnerbill/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormChannelRepository implements ChannelRepository using GORM
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// FindByID finds a channel by ID for a tenant
func (r *GormChannelRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Channel, error) {
	var model models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a channel by its unique code for a tenant
func (r *GormChannelRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*billing.Channel, error) {
	var model models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds channels for a tenant with filtering and pagination
func (r *GormChannelRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.ChannelFilter) (*shared.Paginated[*billing.Channel], error) {
	query := r.db.WithContext(ctx).Model(&models.ChannelModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyChannelFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var channelModels []models.ChannelModel
	if err := query.
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&channelModels).Error; err != nil {
		return nil, err
	}

	channels := make([]*billing.Channel, len(channelModels))
	for i := range channelModels {
		channels[i] = channelModels[i].ToDomain()
	}
	return shared.NewPaginated(channels, total, filter.Page, filter.PageSize), nil
}

// FindActive finds all active channels for a tenant, unpaginated
func (r *GormChannelRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]*billing.Channel, error) {
	var channelModels []models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, billing.ChannelStatusActive).
		Order("created_at ASC").
		Find(&channelModels).Error; err != nil {
		return nil, err
	}
	channels := make([]*billing.Channel, len(channelModels))
	for i := range channelModels {
		channels[i] = channelModels[i].ToDomain()
	}
	return channels, nil
}

// Save creates or updates a channel
func (r *GormChannelRepository) Save(ctx context.Context, ch *billing.Channel) error {
	model := models.ChannelModelFromDomain(ch)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormChannelRepository) SaveWithLock(ctx context.Context, ch *billing.Channel) error {
	model := models.ChannelModelFromDomain(ch)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", ch.ID, ch.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete removes a channel for a tenant
func (r *GormChannelRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ChannelModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyChannelFilter applies filter options without pagination
func (r *GormChannelRepository) applyChannelFilter(query *gorm.DB, filter billing.ChannelFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.MinBalance != nil {
		query = query.Where("current_balance >= ?", *filter.MinBalance)
	}
	return query
}

// Ensure GormChannelRepository implements ChannelRepository
var _ billing.ChannelRepository = (*GormChannelRepository)(nil)
