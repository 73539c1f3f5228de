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

// LedgerService provides application-level ledger operations
type LedgerService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	auditor        *billing.BalanceAuditor
	logger         *zap.Logger
	nowFn          func() time.Time
}

// LedgerServiceOption is a functional option for configuring LedgerService
type LedgerServiceOption func(*LedgerService)

// WithLedgerClock overrides the clock, for tests
func WithLedgerClock(fn func() time.Time) LedgerServiceOption {
	return func(s *LedgerService) {
		s.nowFn = fn
	}
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...LedgerServiceOption,
) *LedgerService {
	s := &LedgerService{
		txScope:        txScope,
		eventPublisher: eventPublisher,
		auditor:        billing.NewBalanceAuditor(),
		logger:         logger,
		nowFn:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID              uuid.UUID       `json:"id"`
	ChannelID       uuid.UUID       `json:"channel_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	StatementID     *uuid.UUID      `json:"statement_id,omitempty"`
	OrderID         *uuid.UUID      `json:"order_id,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToLedgerEntryResponse converts a domain entry to a response
func ToLedgerEntryResponse(e *billing.LedgerEntry) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:              e.ID,
		ChannelID:       e.ChannelID,
		Type:            e.Type.String(),
		Amount:          e.Amount,
		RemainingAmount: e.RemainingAmount,
		Status:          e.Status.String(),
		StatementID:     e.StatementID,
		OrderID:         e.OrderID,
		ReferenceID:     e.ReferenceID,
		Description:     e.Description,
		CreatedAt:       e.CreatedAt,
	}
}

// RecordReceivableInput carries the fields for recording a receivable
type RecordReceivableInput struct {
	ChannelID   uuid.UUID
	Amount      decimal.Decimal
	OrderID     *uuid.UUID
	ReferenceID string
	Description string
}

// RecordReceivableResult is the outcome of recording a receivable
type RecordReceivableResult struct {
	Entry         *LedgerEntryResponse `json:"entry"`
	CreditApplied decimal.Decimal      `json:"credit_applied"`
}

// RecordReceivable appends a receivable to a channel's ledger. Stored credit
// on the channel is consumed immediately: it reduces the entry's remaining
// amount at creation instead of waiting for a later reconciliation pass.
// The entry and the channel's running balances commit in one transaction.
func (s *LedgerService) RecordReceivable(ctx context.Context, tenantID uuid.UUID, input RecordReceivableInput) (*RecordReceivableResult, error) {
	var (
		entry         *billing.LedgerEntry
		creditApplied decimal.Decimal
		channel       *billing.Channel
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ch, err := repos.Channels().FindByID(ctx, tenantID, input.ChannelID)
		if err != nil {
			return err
		}

		creditApplied = decimal.Min(ch.AvailableCredit(), input.Amount)

		entry, err = billing.NewReceivableEntry(tenantID, input.ChannelID, input.Amount,
			input.OrderID, input.ReferenceID, input.Description, creditApplied)
		if err != nil {
			return err
		}
		if err := repos.Entries().Save(ctx, entry); err != nil {
			return err
		}

		if err := ch.ApplyReceivable(input.Amount); err != nil {
			return err
		}
		if err := repos.Channels().SaveWithLock(ctx, ch); err != nil {
			return err
		}
		channel = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, channel, billing.NewReceivableRecordedEvent(entry, creditApplied))
	s.logger.Info("receivable recorded",
		zap.String("channel_id", input.ChannelID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("amount", input.Amount.String()),
		zap.String("credit_applied", creditApplied.String()))

	return &RecordReceivableResult{
		Entry:         ToLedgerEntryResponse(entry),
		CreditApplied: creditApplied,
	}, nil
}

// LedgerListFilter defines filtering options for ledger list queries
type LedgerListFilter struct {
	ChannelID   *uuid.UUID `form:"channel_id"`
	Type        string     `form:"type"`
	Status      string     `form:"status"`
	StatementID *uuid.UUID `form:"statement_id"`
	FromDate    *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate      *time.Time `form:"to_date" time_format:"2006-01-02"`
	Page        int        `form:"page"`
	PageSize    int        `form:"page_size"`
}

// ListEntries returns ledger entries for a tenant with filtering and pagination
func (s *LedgerService) ListEntries(ctx context.Context, tenantID uuid.UUID, filter LedgerListFilter) (*shared.Paginated[*LedgerEntryResponse], error) {
	domainFilter := billing.LedgerEntryFilter{Filter: shared.DefaultFilter()}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	domainFilter.ChannelID = filter.ChannelID
	domainFilter.StatementID = filter.StatementID
	domainFilter.FromDate = filter.FromDate
	domainFilter.ToDate = filter.ToDate
	if filter.Type != "" {
		entryType := billing.EntryType(filter.Type)
		if !entryType.IsValid() {
			return nil, shared.NewDomainError("INVALID_TYPE", "Unknown entry type")
		}
		domainFilter.Type = &entryType
	}
	if filter.Status != "" {
		status := billing.EntryStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_STATUS", "Unknown entry status")
		}
		domainFilter.Status = &status
	}

	var page *shared.Paginated[*billing.LedgerEntry]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.Entries().FindAll(ctx, tenantID, domainFilter)
		return err
	})
	if err != nil {
		return nil, err
	}

	items := make([]*LedgerEntryResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, ToLedgerEntryResponse(e))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// BalanceDriftResponse represents a reconciliation report in API responses
type BalanceDriftResponse struct {
	ChannelID       uuid.UUID       `json:"channel_id"`
	ChannelCode     string          `json:"channel_code"`
	StoredCurrent   decimal.Decimal `json:"stored_current"`
	StoredPending   decimal.Decimal `json:"stored_pending"`
	ComputedCurrent decimal.Decimal `json:"computed_current"`
	ComputedPending decimal.Decimal `json:"computed_pending"`
	CurrentDrift    decimal.Decimal `json:"current_drift"`
	PendingDrift    decimal.Decimal `json:"pending_drift"`
	HasDrift        bool            `json:"has_drift"`
	EntryCount      int             `json:"entry_count"`
	CheckedAt       time.Time       `json:"checked_at"`
}

// RecomputeBalance replays a channel's full ledger and reports any drift
// between the stored running balances and the derived ones. Drift is an alarm
// about a broken write path; the stored balances are left untouched so the
// evidence survives for investigation.
func (s *LedgerService) RecomputeBalance(ctx context.Context, tenantID, channelID uuid.UUID) (*BalanceDriftResponse, error) {
	var drift *billing.BalanceDrift
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ch, err := repos.Channels().FindByID(ctx, tenantID, channelID)
		if err != nil {
			return err
		}
		entries, err := repos.Entries().FindByChannel(ctx, tenantID, channelID)
		if err != nil {
			return err
		}
		drift = s.auditor.Audit(ch, entries, s.nowFn())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if drift.HasDrift() {
		s.logger.Error("balance drift detected",
			zap.String("channel_id", channelID.String()),
			zap.String("channel_code", drift.ChannelCode),
			zap.String("current_drift", drift.CurrentDrift.String()),
			zap.String("pending_drift", drift.PendingDrift.String()))
	}

	return &BalanceDriftResponse{
		ChannelID:       drift.ChannelID,
		ChannelCode:     drift.ChannelCode,
		StoredCurrent:   drift.StoredCurrent,
		StoredPending:   drift.StoredPending,
		ComputedCurrent: drift.ComputedCurrent,
		ComputedPending: drift.ComputedPending,
		CurrentDrift:    drift.CurrentDrift,
		PendingDrift:    drift.PendingDrift,
		HasDrift:        drift.HasDrift(),
		EntryCount:      drift.EntryCount,
		CheckedAt:       drift.CheckedAt,
	}, nil
}

// LedgerExportRow is one line of a channel ledger export with a running balance
type LedgerExportRow struct {
	Date           time.Time
	Type           string
	ReferenceID    string
	Description    string
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
	Status         string
	StatementID    string
}

// ExportChannelLedger returns a channel's full ledger as export rows, oldest
// first, with a running balance column.
func (s *LedgerService) ExportChannelLedger(ctx context.Context, tenantID, channelID uuid.UUID) (string, []LedgerExportRow, error) {
	var (
		code    string
		entries []*billing.LedgerEntry
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ch, err := repos.Channels().FindByID(ctx, tenantID, channelID)
		if err != nil {
			return err
		}
		code = ch.Code
		entries, err = repos.Entries().FindByChannel(ctx, tenantID, channelID)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	rows := make([]LedgerExportRow, 0, len(entries))
	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.SignedAmount())
		stmtID := ""
		if e.StatementID != nil {
			stmtID = e.StatementID.String()
		}
		rows = append(rows, LedgerExportRow{
			Date:           e.CreatedAt,
			Type:           e.Type.String(),
			ReferenceID:    e.ReferenceID,
			Description:    e.Description,
			Amount:         e.SignedAmount(),
			RunningBalance: running,
			Status:         e.Status.String(),
			StatementID:    stmtID,
		})
	}
	return code, rows, nil
}

func (s *LedgerService) publish(ctx context.Context, aggregate shared.AggregateRoot, extra ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	events := extra
	if aggregate != nil {
		events = append(shared.DrainEvents(aggregate), extra...)
	}
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events", zap.Error(err))
	}
}
