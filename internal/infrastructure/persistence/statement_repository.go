package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/partnerbill/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStatementRepository implements StatementRepository using GORM
type GormStatementRepository struct {
	db *gorm.DB
}

// NewGormStatementRepository creates a new GormStatementRepository
func NewGormStatementRepository(db *gorm.DB) *GormStatementRepository {
	return &GormStatementRepository{db: db}
}

// FindByID finds a statement by ID for a tenant
func (r *GormStatementRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Statement, error) {
	var model models.StatementModel
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

// FindByNumber finds a statement by its number for a tenant
func (r *GormStatementRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*billing.Statement, error) {
	var model models.StatementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND statement_number = ?", tenantID, number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds statements for a tenant with filtering and pagination
func (r *GormStatementRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.StatementFilter) (*shared.Paginated[*billing.Statement], error) {
	query := r.db.WithContext(ctx).Model(&models.StatementModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyStatementFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var statementModels []models.StatementModel
	if err := query.
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&statementModels).Error; err != nil {
		return nil, err
	}

	return shared.NewPaginated(toDomainStatements(statementModels), total, filter.Page, filter.PageSize), nil
}

// FindOpenByChannel finds a channel's statements that are not fully paid, oldest first
func (r *GormStatementRepository) FindOpenByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.Statement, error) {
	var statementModels []models.StatementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ? AND status IN ?",
			tenantID, channelID, billing.OpenStatementStatuses()).
		Order("created_at ASC").
		Find(&statementModels).Error; err != nil {
		return nil, err
	}
	return toDomainStatements(statementModels), nil
}

// FindOpen finds all open statements for a tenant, oldest first
func (r *GormStatementRepository) FindOpen(ctx context.Context, tenantID uuid.UUID) ([]*billing.Statement, error) {
	var statementModels []models.StatementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, billing.OpenStatementStatuses()).
		Order("created_at ASC").
		Find(&statementModels).Error; err != nil {
		return nil, err
	}
	return toDomainStatements(statementModels), nil
}

// FindByChannel finds all statements for a channel, newest first
func (r *GormStatementRepository) FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.Statement, error) {
	var statementModels []models.StatementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ?", tenantID, channelID).
		Order("created_at DESC").
		Find(&statementModels).Error; err != nil {
		return nil, err
	}
	return toDomainStatements(statementModels), nil
}

// NextStatementNumber generates the next statement number for the day.
// Format: ST-YYYYMMDD-XXXXX, sequential per tenant per day.
func (r *GormStatementRepository) NextStatementNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error) {
	prefix := fmt.Sprintf("ST-%s-", date.Format("20060102"))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.StatementModel{}).
		Select("statement_number").
		Where("tenant_id = ? AND statement_number LIKE ?", tenantID, prefix+"%").
		Order("statement_number DESC").
		Limit(1).
		Pluck("statement_number", &maxNumber).Error; err != nil {
		return "", err
	}

	var nextNum int
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			fmt.Sscanf(parts[2], "%d", &nextNum)
		}
	}
	nextNum++

	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

// Save creates or updates a statement
func (r *GormStatementRepository) Save(ctx context.Context, s *billing.Statement) error {
	model := models.StatementModelFromDomain(s)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormStatementRepository) SaveWithLock(ctx context.Context, s *billing.Statement) error {
	model := models.StatementModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormStatementRepository) applyStatementFilter(query *gorm.DB, filter billing.StatementFilter) *gorm.DB {
	if filter.ChannelID != nil {
		query = query.Where("channel_id = ?", *filter.ChannelID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	return query
}

func toDomainStatements(statementModels []models.StatementModel) []*billing.Statement {
	statements := make([]*billing.Statement, len(statementModels))
	for i := range statementModels {
		statements[i] = statementModels[i].ToDomain()
	}
	return statements
}

// Ensure GormStatementRepository implements StatementRepository
var _ billing.StatementRepository = (*GormStatementRepository)(nil)
