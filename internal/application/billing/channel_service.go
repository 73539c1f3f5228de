package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChannelService provides application-level channel operations
type ChannelService struct {
	channelRepo    billing.ChannelRepository
	configRepo     billing.StatementConfigRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewChannelService creates a new ChannelService
func NewChannelService(
	channelRepo billing.ChannelRepository,
	configRepo billing.StatementConfigRepository,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
) *ChannelService {
	return &ChannelService{
		channelRepo:    channelRepo,
		configRepo:     configRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// ChannelResponse represents a channel in API responses
type ChannelResponse struct {
	ID              uuid.UUID       `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	ContactEmail    string          `json:"contact_email"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	PendingBalance  decimal.Decimal `json:"pending_balance"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	LastStatementAt *time.Time      `json:"last_statement_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// ToChannelResponse converts a domain channel to a response
func ToChannelResponse(ch *billing.Channel) *ChannelResponse {
	return &ChannelResponse{
		ID:              ch.ID,
		Code:            ch.Code,
		Name:            ch.Name,
		ContactEmail:    ch.ContactEmail,
		Type:            ch.Type.String(),
		Status:          ch.Status.String(),
		CurrentBalance:  ch.CurrentBalance,
		PendingBalance:  ch.PendingBalance,
		AvailableCredit: ch.AvailableCredit(),
		LastStatementAt: ch.LastStatementAt,
		CreatedAt:       ch.CreatedAt,
		UpdatedAt:       ch.UpdatedAt,
		Version:         ch.GetVersion(),
	}
}

// CreateChannelInput carries the fields for creating a channel
type CreateChannelInput struct {
	Code         string
	Name         string
	ContactEmail string
	Type         string
}

// CreateChannel onboards a new partner channel with a default billing policy
func (s *ChannelService) CreateChannel(ctx context.Context, tenantID uuid.UUID, input CreateChannelInput) (*ChannelResponse, error) {
	existing, err := s.channelRepo.FindByCode(ctx, tenantID, input.Code)
	if err != nil && err != shared.ErrNotFound {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_CODE", "A channel with this code already exists")
	}

	ch, err := billing.NewChannel(tenantID, input.Code, input.Name, input.ContactEmail, billing.ChannelType(input.Type))
	if err != nil {
		return nil, err
	}

	if err := s.channelRepo.Save(ctx, ch); err != nil {
		return nil, err
	}
	if err := s.configRepo.Save(ctx, billing.NewDefaultStatementConfig(tenantID, ch.ID)); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, ch)
	s.logger.Info("channel created",
		zap.String("channel_id", ch.ID.String()),
		zap.String("code", ch.Code))

	return ToChannelResponse(ch), nil
}

// GetChannel returns a channel by ID
func (s *ChannelService) GetChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*ChannelResponse, error) {
	ch, err := s.channelRepo.FindByID(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	return ToChannelResponse(ch), nil
}

// ChannelListFilter defines filtering options for channel list queries
type ChannelListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	Type     string `form:"type"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ListChannels returns channels for a tenant with filtering and pagination
func (s *ChannelService) ListChannels(ctx context.Context, tenantID uuid.UUID, filter ChannelListFilter) (*shared.Paginated[*ChannelResponse], error) {
	domainFilter := billing.ChannelFilter{Filter: shared.DefaultFilter()}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	domainFilter.Search = filter.Search
	if filter.Status != "" {
		status := billing.ChannelStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_STATUS", "Unknown channel status")
		}
		domainFilter.Status = &status
	}
	if filter.Type != "" {
		chType := billing.ChannelType(filter.Type)
		if !chType.IsValid() {
			return nil, shared.NewDomainError("INVALID_TYPE", "Unknown channel type")
		}
		domainFilter.Type = &chType
	}

	page, err := s.channelRepo.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]*ChannelResponse, 0, len(page.Items))
	for _, ch := range page.Items {
		items = append(items, ToChannelResponse(ch))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// PauseChannel pauses a channel so batch billing skips it
func (s *ChannelService) PauseChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*ChannelResponse, error) {
	ch, err := s.channelRepo.FindByID(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	if err := ch.Pause(); err != nil {
		return nil, err
	}
	if err := s.channelRepo.SaveWithLock(ctx, ch); err != nil {
		return nil, err
	}
	return ToChannelResponse(ch), nil
}

// ActivateChannel re-activates a paused channel
func (s *ChannelService) ActivateChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*ChannelResponse, error) {
	ch, err := s.channelRepo.FindByID(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	if err := ch.Activate(); err != nil {
		return nil, err
	}
	if err := s.channelRepo.SaveWithLock(ctx, ch); err != nil {
		return nil, err
	}
	return ToChannelResponse(ch), nil
}

// DeleteChannel soft deletes a channel with no outstanding balance
func (s *ChannelService) DeleteChannel(ctx context.Context, tenantID, channelID uuid.UUID) error {
	ch, err := s.channelRepo.FindByID(ctx, tenantID, channelID)
	if err != nil {
		return err
	}
	if !ch.CurrentBalance.IsZero() {
		return shared.NewDomainError("BALANCE_NOT_ZERO", "Cannot delete a channel with a non-zero balance")
	}
	return s.channelRepo.Delete(ctx, tenantID, channelID)
}

func (s *ChannelService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	events := shared.DrainEvents(aggregates...)
	if len(events) == 0 || s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events", zap.Error(err))
	}
}
