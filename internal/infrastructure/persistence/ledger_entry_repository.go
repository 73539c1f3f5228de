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

// GormLedgerEntryRepository implements LedgerEntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// FindByID finds a ledger entry by ID for a tenant
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.LedgerEntry, error) {
	var model models.LedgerEntryModel
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

// FindAll finds ledger entries for a tenant with filtering and pagination
func (r *GormLedgerEntryRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.LedgerEntryFilter) (*shared.Paginated[*billing.LedgerEntry], error) {
	query := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyEntryFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var entryModels []models.LedgerEntryModel
	if err := query.
		Order("created_at ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&entryModels).Error; err != nil {
		return nil, err
	}

	return shared.NewPaginated(toDomainEntries(entryModels), total, filter.Page, filter.PageSize), nil
}

// FindByChannel finds all entries for a channel ordered oldest first
func (r *GormLedgerEntryRepository) FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ?", tenantID, channelID).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// FindUnbilledReceivables finds receivable entries for a channel not yet
// attached to any statement, oldest first
func (r *GormLedgerEntryRepository) FindUnbilledReceivables(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ? AND type = ? AND statement_id IS NULL",
			tenantID, channelID, billing.EntryTypeReceivable).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// FindOutstandingReceivables finds receivable entries for a channel with a
// positive remaining amount, oldest first
func (r *GormLedgerEntryRepository) FindOutstandingReceivables(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ? AND type = ? AND status IN ?",
			tenantID, channelID, billing.EntryTypeReceivable,
			[]billing.EntryStatus{billing.EntryStatusUnpaid, billing.EntryStatusPartiallyPaid}).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// CountUnbilledReceivables counts a channel's receivable entries not yet
// attached to any statement. Manual adjustments without an order link count
// the same as order receivables.
func (r *GormLedgerEntryRepository) CountUnbilledReceivables(ctx context.Context, tenantID, channelID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("tenant_id = ? AND channel_id = ? AND type = ? AND statement_id IS NULL",
			tenantID, channelID, billing.EntryTypeReceivable).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a ledger entry
func (r *GormLedgerEntryRepository) Save(ctx context.Context, entry *billing.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveAll persists a batch of entries in one call
func (r *GormLedgerEntryRepository) SaveAll(ctx context.Context, entries []*billing.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	entryModels := make([]*models.LedgerEntryModel, len(entries))
	for i, entry := range entries {
		entryModels[i] = models.LedgerEntryModelFromDomain(entry)
	}
	return r.db.WithContext(ctx).Save(entryModels).Error
}

func (r *GormLedgerEntryRepository) applyEntryFilter(query *gorm.DB, filter billing.LedgerEntryFilter) *gorm.DB {
	if filter.ChannelID != nil {
		query = query.Where("channel_id = ?", *filter.ChannelID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StatementID != nil {
		query = query.Where("statement_id = ?", *filter.StatementID)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	return query
}

func toDomainEntries(entryModels []models.LedgerEntryModel) []*billing.LedgerEntry {
	entries := make([]*billing.LedgerEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries
}

// Ensure GormLedgerEntryRepository implements LedgerEntryRepository
var _ billing.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
