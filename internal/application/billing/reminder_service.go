package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ReminderCooldown is the minimum gap between reminder emails for one
// statement. Just under a day so a daily pass drifts forward instead of
// skipping a day when consecutive runs land minutes apart.
const ReminderCooldown = 20 * time.Hour

// ReminderService runs the reminder cadence over open statements
type ReminderService struct {
	txScope        TransactionScope
	configSvc      *ConfigService
	notifier       billing.Notifier
	eventPublisher shared.EventPublisher
	financeEmail   string
	logger         *zap.Logger
	nowFn          func() time.Time
}

// ReminderServiceOption is a functional option for configuring ReminderService
type ReminderServiceOption func(*ReminderService)

// WithReminderClock overrides the clock, for tests
func WithReminderClock(fn func() time.Time) ReminderServiceOption {
	return func(s *ReminderService) {
		s.nowFn = fn
	}
}

// NewReminderService creates a new ReminderService. financeEmail receives
// internal escalation notices for long-overdue statements.
func NewReminderService(
	txScope TransactionScope,
	configSvc *ConfigService,
	notifier billing.Notifier,
	eventPublisher shared.EventPublisher,
	financeEmail string,
	logger *zap.Logger,
	opts ...ReminderServiceOption,
) *ReminderService {
	s := &ReminderService{
		txScope:        txScope,
		configSvc:      configSvc,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		financeEmail:   financeEmail,
		logger:         logger,
		nowFn:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReminderSummary is the outcome of one reminder pass
type ReminderSummary struct {
	StatementsChecked int              `json:"statements_checked"`
	RemindersSent     int              `json:"reminders_sent"`
	OverdueMarked     int              `json:"overdue_marked"`
	Escalations       int              `json:"escalations"`
	Skipped           int              `json:"skipped"`
	Failures          []ChannelFailure `json:"failures"`
}

// SendPaymentReminders runs one reminder pass over every open statement.
// The cadence per statement: "due soon" nudges from the cycle midpoint
// onward, a "due today" notice on the due date, and an overdue notice on
// every pass after that. Statements overdue past the escalation window
// additionally copy the finance desk on every pass until someone intervenes.
// A 20 hour cooldown spaces the automated touches so one statement never
// gets two emails in a day. Statements are processed independently: one
// failure is recorded and the pass moves on.
func (s *ReminderService) SendPaymentReminders(ctx context.Context, tenantID uuid.UUID) (*ReminderSummary, error) {
	var open []*billing.Statement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		open, err = repos.Statements().FindOpen(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := &ReminderSummary{Failures: make([]ChannelFailure, 0)}
	for _, stmt := range open {
		summary.StatementsChecked++

		outcome, err := s.remindStatement(ctx, tenantID, stmt.ID, false)
		if err != nil {
			s.logger.Error("reminder failed for statement",
				zap.String("statement_id", stmt.ID.String()),
				zap.String("statement_number", stmt.StatementNumber),
				zap.Error(err))
			summary.Failures = append(summary.Failures, ChannelFailure{
				ChannelID:   stmt.ChannelID,
				ChannelCode: stmt.StatementNumber,
				Error:       err.Error(),
			})
			continue
		}

		if outcome.reminded {
			summary.RemindersSent++
		} else {
			summary.Skipped++
		}
		if outcome.markedOverdue {
			summary.OverdueMarked++
		}
		if outcome.escalated {
			summary.Escalations++
		}
	}

	s.logger.Info("reminder pass finished",
		zap.Int("checked", summary.StatementsChecked),
		zap.Int("sent", summary.RemindersSent),
		zap.Int("overdue_marked", summary.OverdueMarked),
		zap.Int("escalations", summary.Escalations),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failures)))
	return summary, nil
}

// SendManualReminder sends a reminder for one statement on demand. Both the
// cadence and the cooldown are bypassed: a manual trigger always sends unless
// the statement is already settled.
func (s *ReminderService) SendManualReminder(ctx context.Context, tenantID, statementID uuid.UUID) (*StatementResponse, error) {
	outcome, err := s.remindStatement(ctx, tenantID, statementID, true)
	if err != nil {
		return nil, err
	}
	if outcome.healed {
		return nil, shared.NewDomainError("ALREADY_PAID", "Statement is already fully paid")
	}
	return ToStatementResponse(outcome.statement), nil
}

type reminderOutcome struct {
	statement     *billing.Statement
	reminded      bool
	markedOverdue bool
	escalated     bool
	healed        bool
}

func (s *ReminderService) remindStatement(ctx context.Context, tenantID, statementID uuid.UUID, manual bool) (*reminderOutcome, error) {
	now := s.nowFn()
	outcome := &reminderOutcome{}

	var (
		channel *billing.Channel
		req     *billing.EmailRequest
		escReq  *billing.EmailRequest
		events  []shared.DomainEvent
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		stmt, err := repos.Statements().FindByID(ctx, tenantID, statementID)
		if err != nil {
			return err
		}
		outcome.statement = stmt

		if !stmt.Status.IsOpen() {
			return shared.NewDomainError("ALREADY_PAID", "Statement is already fully paid")
		}
		// an open status with nothing due is stale: correct it instead of
		// dunning a partner who already settled
		if stmt.IsFullyPaid() {
			stmt.MarkPaid()
			if err := repos.Statements().SaveWithLock(ctx, stmt); err != nil {
				return err
			}
			events = shared.DrainEvents(stmt)
			outcome.healed = true
			return nil
		}
		// the cooldown gates the automated pass, including overdue flips and
		// escalation; manual triggers go through regardless
		if !manual && stmt.InCooldown(now, ReminderCooldown) {
			return nil
		}

		ch, err := repos.Channels().FindByID(ctx, tenantID, stmt.ChannelID)
		if err != nil {
			return err
		}
		cfg, err := s.configSvc.ResolveConfig(ctx, tenantID, stmt.ChannelID)
		if err != nil {
			return err
		}

		kind := billing.NotificationPaymentReminder
		if stmt.IsOverdueAt(now) {
			if stmt.Status != billing.StatementStatusOverdue {
				if err := stmt.MarkOverdue(); err != nil {
					return err
				}
				outcome.markedOverdue = true
			}
			kind = billing.NotificationOverdueNotice

			if cfg.EscalationDays > 0 && stmt.DaysOverdue(now) >= cfg.EscalationDays && s.financeEmail != "" {
				escReq = &billing.EmailRequest{
					Kind:            billing.NotificationPaymentEscalation,
					Recipient:       s.financeEmail,
					ChannelID:       ch.ID,
					ChannelName:     ch.Name,
					StatementNumber: stmt.StatementNumber,
					AmountDue:       stmt.AmountDue(),
					DueDate:         stmt.DueDate,
					DaysOverdue:     stmt.DaysOverdue(now),
				}
				outcome.escalated = true
			}
		} else if !manual {
			// before the due date nudges start at the cycle midpoint and
			// repeat on every cooldown-spaced pass until the statement is
			// overdue or paid
			dueToday := now.Year() == stmt.DueDate.Year() && now.YearDay() == stmt.DueDate.YearDay()
			dueSoon := stmt.DaysSinceIssued(now) >= cfg.ReminderDueSoonAfter()
			if !dueToday && !dueSoon {
				return nil
			}
		}

		stmt.RecordReminder(now)
		if err := repos.Statements().SaveWithLock(ctx, stmt); err != nil {
			return err
		}

		req = &billing.EmailRequest{
			Kind:            kind,
			Recipient:       ch.ContactEmail,
			ChannelID:       ch.ID,
			ChannelName:     ch.Name,
			StatementNumber: stmt.StatementNumber,
			AmountDue:       stmt.AmountDue(),
			DueDate:         stmt.DueDate,
			DaysOverdue:     stmt.DaysOverdue(now),
			Instructions:    cfg.PaymentInstructions,
		}
		channel = ch
		events = shared.DrainEvents(stmt)
		outcome.reminded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(events) > 0 && s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish domain events", zap.Error(err))
		}
	}
	if outcome.healed {
		s.logger.Warn("statement status self-healed to PAID",
			zap.String("statement_number", outcome.statement.StatementNumber))
	}
	if req != nil {
		s.notify(ctx, *req)
		s.logger.Info("payment reminder sent",
			zap.String("statement_number", outcome.statement.StatementNumber),
			zap.String("channel_id", channel.ID.String()),
			zap.String("kind", req.Kind.String()))
	}
	if escReq != nil {
		s.notify(ctx, *escReq)
		s.logger.Warn("overdue statement escalated to finance",
			zap.String("statement_number", outcome.statement.StatementNumber),
			zap.Int("days_overdue", escReq.DaysOverdue))
	}
	return outcome, nil
}

func (s *ReminderService) notify(ctx context.Context, req billing.EmailRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, req); err != nil {
		s.logger.Warn("notification send failed",
			zap.String("kind", req.Kind.String()),
			zap.String("statement_number", req.StatementNumber),
			zap.Error(err))
	}
}
