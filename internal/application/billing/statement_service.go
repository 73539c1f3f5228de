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

// StatementService generates and serves partner statements
type StatementService struct {
	txScope        TransactionScope
	configSvc      *ConfigService
	notifier       billing.Notifier
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	nowFn          func() time.Time
}

// StatementServiceOption is a functional option for configuring StatementService
type StatementServiceOption func(*StatementService)

// WithStatementClock overrides the clock, for tests
func WithStatementClock(fn func() time.Time) StatementServiceOption {
	return func(s *StatementService) {
		s.nowFn = fn
	}
}

// NewStatementService creates a new StatementService
func NewStatementService(
	txScope TransactionScope,
	configSvc *ConfigService,
	notifier billing.Notifier,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...StatementServiceOption,
) *StatementService {
	s := &StatementService{
		txScope:        txScope,
		configSvc:      configSvc,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		logger:         logger,
		nowFn:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatementResponse represents a statement in API responses
type StatementResponse struct {
	ID              uuid.UUID       `json:"id"`
	StatementNumber string          `json:"statement_number"`
	ChannelID       uuid.UUID       `json:"channel_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	AmountDue       decimal.Decimal `json:"amount_due"`
	DueDate         time.Time       `json:"due_date"`
	Status          string          `json:"status"`
	TriggerReason   string          `json:"trigger_reason"`
	RemindersSent   int             `json:"reminders_sent"`
	LastReminderAt  *time.Time      `json:"last_reminder_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Version         int             `json:"version"`
}

// ToStatementResponse converts a domain statement to a response
func ToStatementResponse(stmt *billing.Statement) *StatementResponse {
	return &StatementResponse{
		ID:              stmt.ID,
		StatementNumber: stmt.StatementNumber,
		ChannelID:       stmt.ChannelID,
		TotalAmount:     stmt.TotalAmount,
		PaidAmount:      stmt.PaidAmount,
		AmountDue:       stmt.AmountDue(),
		DueDate:         stmt.DueDate,
		Status:          stmt.Status.String(),
		TriggerReason:   stmt.TriggerReason,
		RemindersSent:   stmt.RemindersSent,
		LastReminderAt:  stmt.LastReminderAt,
		CreatedAt:       stmt.CreatedAt,
		Version:         stmt.GetVersion(),
	}
}

// ChannelFailure records one channel that failed during a batch pass
type ChannelFailure struct {
	ChannelID   uuid.UUID `json:"channel_id"`
	ChannelCode string    `json:"channel_code"`
	Error       string    `json:"error"`
}

// GenerationSummary is the outcome of one statement generation pass
type GenerationSummary struct {
	ChannelsEvaluated int              `json:"channels_evaluated"`
	StatementsCreated int              `json:"statements_created"`
	Skipped           int              `json:"skipped"`
	Failures          []ChannelFailure `json:"failures"`
}

// GenerateStatements runs one generation pass over all active channels.
/// Each channel is processed in its own transaction: one broken channel must
// not block billing for the rest, so failures are collected and summarized
// instead of aborting the pass.
func (s *StatementService) GenerateStatements(ctx context.Context, tenantID uuid.UUID) (*GenerationSummary, error) {
	var channels []*billing.Channel
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		channels, err = repos.Channels().FindActive(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := &GenerationSummary{Failures: make([]ChannelFailure, 0)}
	for _, ch := range channels {
		summary.ChannelsEvaluated++

		created, err := s.generateForChannel(ctx, tenantID, ch.ID, "", false)
		if err != nil {
			s.logger.Error("statement generation failed for channel",
				zap.String("channel_id", ch.ID.String()),
				zap.String("channel_code", ch.Code),
				zap.Error(err))
			summary.Failures = append(summary.Failures, ChannelFailure{
				ChannelID:   ch.ID,
				ChannelCode: ch.Code,
				Error:       err.Error(),
			})
			continue
		}
		if created == nil {
			summary.Skipped++
			continue
		}
		summary.StatementsCreated++
	}

	s.logger.Info("statement generation pass finished",
		zap.Int("evaluated", summary.ChannelsEvaluated),
		zap.Int("created", summary.StatementsCreated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failures)))
	return summary, nil
}

// GenerateStatementForChannel creates a statement for one channel on demand,
// bypassing the trigger checks. Returns an error when the channel has no
// positive unbilled balance to bill.
func (s *StatementService) GenerateStatementForChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*StatementResponse, error) {
	stmt, err := s.generateForChannel(ctx, tenantID, channelID, billing.TriggerManual, true)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, shared.NewDomainError("NO_UNBILLED_BALANCE", "Channel has no positive unbilled balance to bill")
	}
	return ToStatementResponse(stmt), nil
}

// generateForChannel evaluates triggers (unless forced) and creates the
// statement in one transaction. A nil statement with a nil error means the
// channel was skipped.
func (s *StatementService) generateForChannel(ctx context.Context, tenantID, channelID uuid.UUID, forcedReason billing.TriggerReason, force bool) (*billing.Statement, error) {
	cfg, err := s.configSvc.ResolveConfig(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	var (
		stmt    *billing.Statement
		channel *billing.Channel
	)

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ch, err := repos.Channels().FindByID(ctx, tenantID, channelID)
		if err != nil {
			return err
		}
		if !force && !ch.IsActive() {
			return nil
		}

		reason := forcedReason
		if !force {
			unbilledCount, err := repos.Entries().CountUnbilledReceivables(ctx, tenantID, channelID)
			if err != nil {
				return err
			}
			fired := false
			reason, fired = billing.EvaluateTriggers(cfg, ch, unbilledCount, now)
			if !fired {
				return nil
			}
		}

		entries, err := repos.Entries().FindUnbilledReceivables(ctx, tenantID, channelID)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, e := range entries {
			total = total.Add(e.RemainingAmount)
		}
		// Nothing positive to bill: no statement, entries stay unbilled.
		// Covers both an empty ledger and a fully credited one.
		if total.LessThanOrEqual(decimal.Zero) {
			return nil
		}

		number, err := repos.Statements().NextStatementNumber(ctx, tenantID, now)
		if err != nil {
			return err
		}

		stmt, err = billing.NewStatement(tenantID, channelID, number, total,
			now.Add(cfg.CycleDuration()), reason.String())
		if err != nil {
			return err
		}
		if err := repos.Statements().Save(ctx, stmt); err != nil {
			return err
		}

		// settled-but-unbilled entries ride along with a zero contribution so
		// they stop accumulating on the channel
		for _, e := range entries {
			if err := e.AttachToStatement(stmt.ID); err != nil {
				return err
			}
		}
		if err := repos.Entries().SaveAll(ctx, entries); err != nil {
			return err
		}

		ch.MarkStatemented(total, now)
		if err := repos.Channels().SaveWithLock(ctx, ch); err != nil {
			return err
		}
		channel = ch
		return nil
	})
	if err != nil || stmt == nil {
		return nil, err
	}

	s.publish(ctx, stmt, channel)
	s.notify(ctx, billing.EmailRequest{
		Kind:            billing.NotificationStatementIssued,
		Recipient:       channel.ContactEmail,
		ChannelID:       channel.ID,
		ChannelName:     channel.Name,
		StatementNumber: stmt.StatementNumber,
		AmountDue:       stmt.AmountDue(),
		DueDate:         stmt.DueDate,
		Instructions:    cfg.PaymentInstructions,
	})

	s.logger.Info("statement issued",
		zap.String("channel_id", channel.ID.String()),
		zap.String("statement_number", stmt.StatementNumber),
		zap.String("total", stmt.TotalAmount.String()),
		zap.String("trigger", stmt.TriggerReason))
	return stmt, nil
}

// GetStatement returns a statement by ID
func (s *StatementService) GetStatement(ctx context.Context, tenantID, statementID uuid.UUID) (*StatementResponse, error) {
	var stmt *billing.Statement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		stmt, err = repos.Statements().FindByID(ctx, tenantID, statementID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ToStatementResponse(stmt), nil
}

// StatementListFilter defines filtering options for statement list queries
type StatementListFilter struct {
	ChannelID *uuid.UUID `form:"channel_id"`
	Status    string     `form:"status"`
	FromDate  *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate    *time.Time `form:"to_date" time_format:"2006-01-02"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// ListStatements returns statements for a tenant with filtering and pagination
func (s *StatementService) ListStatements(ctx context.Context, tenantID uuid.UUID, filter StatementListFilter) (*shared.Paginated[*StatementResponse], error) {
	domainFilter := billing.StatementFilter{Filter: shared.DefaultFilter()}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	domainFilter.ChannelID = filter.ChannelID
	domainFilter.FromDate = filter.FromDate
	domainFilter.ToDate = filter.ToDate
	if filter.Status != "" {
		status := billing.StatementStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_STATUS", "Unknown statement status")
		}
		domainFilter.Status = &status
	}

	var page *shared.Paginated[*billing.Statement]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.Statements().FindAll(ctx, tenantID, domainFilter)
		return err
	})
	if err != nil {
		return nil, err
	}

	items := make([]*StatementResponse, 0, len(page.Items))
	for _, stmt := range page.Items {
		items = append(items, ToStatementResponse(stmt))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// StatementEntries returns the ledger entries captured on a statement
func (s *StatementService) StatementEntries(ctx context.Context, tenantID, statementID uuid.UUID) ([]*LedgerEntryResponse, error) {
	var entries []*billing.LedgerEntry
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Statements().FindByID(ctx, tenantID, statementID); err != nil {
			return err
		}
		filter := billing.LedgerEntryFilter{Filter: shared.Filter{Page: 1, PageSize: 1000, OrderBy: "created_at", OrderDir: "asc"}}
		filter.StatementID = &statementID
		page, err := repos.Entries().FindAll(ctx, tenantID, filter)
		if err != nil {
			return err
		}
		entries = page.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]*LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, ToLedgerEntryResponse(e))
	}
	return items, nil
}

func (s *StatementService) publish(ctx context.Context, aggregates ...shared.AggregateRoot) {
	if s.eventPublisher == nil {
		return
	}
	events := shared.DrainEvents(aggregates...)
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events", zap.Error(err))
	}
}

func (s *StatementService) notify(ctx context.Context, req billing.EmailRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, req); err != nil {
		s.logger.Warn("notification send failed",
			zap.String("kind", req.Kind.String()),
			zap.String("channel_id", req.ChannelID.String()),
			zap.Error(err))
	}
}
