package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StatementStatus represents the lifecycle status of a statement
type StatementStatus string

const (
	StatementStatusSent          StatementStatus = "SENT"
	StatementStatusPartiallyPaid StatementStatus = "PARTIALLY_PAID"
	StatementStatusPaid          StatementStatus = "PAID"
	StatementStatusOverdue       StatementStatus = "OVERDUE"
)

// IsValid checks if the status is a valid StatementStatus
func (s StatementStatus) IsValid() bool {
	switch s {
	case StatementStatusSent, StatementStatusPartiallyPaid, StatementStatusPaid, StatementStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of StatementStatus
func (s StatementStatus) String() string {
	return string(s)
}

// IsOpen returns true for statements that still require collection
func (s StatementStatus) IsOpen() bool {
	return s != StatementStatusPaid
}

// OpenStatementStatuses returns the statuses the reminder pass scans
func OpenStatementStatuses() []StatementStatus {
	return []StatementStatus{StatementStatusSent, StatementStatusPartiallyPaid, StatementStatusOverdue}
}

// Statement is an immutable billing snapshot of a channel's unbilled entries.
// TotalAmount is fixed at creation; the set of ledger entries pointing at the
// statement never changes afterwards. Later unbilled entries go on a new
// statement - a statement is never re-opened.
type Statement struct {
	shared.TenantAggregateRoot
	StatementNumber string
	ChannelID       uuid.UUID
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	DueDate         time.Time
	Status          StatementStatus
	TriggerReason   string
	RemindersSent   int
	LastReminderAt  *time.Time
}

// NewStatement creates a statement from a positive unbilled total
func NewStatement(tenantID, channelID uuid.UUID, number string, total decimal.Decimal, dueDate time.Time, triggerReason string) (*Statement, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Statement number cannot be empty")
	}
	if channelID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel ID cannot be empty")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Statement total must be positive")
	}

	s := &Statement{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		StatementNumber:     number,
		ChannelID:           channelID,
		TotalAmount:         total,
		PaidAmount:          decimal.Zero,
		DueDate:             dueDate,
		Status:              StatementStatusSent,
		TriggerReason:       triggerReason,
	}

	s.AddDomainEvent(NewStatementIssuedEvent(s))

	return s, nil
}

// AmountDue returns the outstanding amount on the statement
func (s *Statement) AmountDue() decimal.Decimal {
	return s.TotalAmount.Sub(s.PaidAmount)
}

// IsFullyPaid returns true when nothing is due
func (s *Statement) IsFullyPaid() bool {
	return s.AmountDue().LessThanOrEqual(decimal.Zero)
}

// IsOverdueAt returns true if the due date has passed at the given time
func (s *Statement) IsOverdueAt(now time.Time) bool {
	return now.After(s.DueDate)
}

// RecordPayment increases the paid amount and moves the status to
// PARTIALLY_PAID or PAID accordingly. The paid amount only ever increases and
// is capped at the total: allocations that net against unbilled payments in
// the snapshot can otherwise overshoot it.
func (s *Statement) RecordPayment(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if s.Status == StatementStatusPaid {
		return shared.NewDomainError("ALREADY_PAID",
			fmt.Sprintf("Statement %s is already fully paid", s.StatementNumber))
	}

	due := s.AmountDue()
	if amount.GreaterThan(due) {
		amount = due
	}
	s.PaidAmount = s.PaidAmount.Add(amount)

	if s.IsFullyPaid() {
		s.Status = StatementStatusPaid
		s.AddDomainEvent(NewStatementPaidEvent(s))
	} else {
		s.Status = StatementStatusPartiallyPaid
	}
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// MarkOverdue flips an open statement to OVERDUE. The transition is one-way
// and only triggered by the reminder pass or an explicit check.
func (s *Statement) MarkOverdue() error {
	switch s.Status {
	case StatementStatusSent, StatementStatusPartiallyPaid:
		s.Status = StatementStatusOverdue
		s.UpdatedAt = time.Now()
		s.IncrementVersion()
		s.AddDomainEvent(NewStatementOverdueEvent(s))
		return nil
	case StatementStatusOverdue:
		return nil
	default:
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot mark statement in %s status as overdue", s.Status))
	}
}

// MarkPaid corrects the status to PAID when nothing is due. Self-healing for
// stale state; a no-op when already PAID.
func (s *Statement) MarkPaid() {
	if s.Status == StatementStatusPaid {
		return
	}
	s.Status = StatementStatusPaid
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(NewStatementPaidEvent(s))
}

// RecordReminder bumps the reminder counter and timestamp after an email was
// queued for the partner.
func (s *Statement) RecordReminder(now time.Time) {
	s.RemindersSent++
	s.LastReminderAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()
}

// MarkContacted updates the last-interaction timestamp without counting a
// reminder (used when settling a statement closes the conversation).
func (s *Statement) MarkContacted(now time.Time) {
	s.LastReminderAt = &now
	s.UpdatedAt = now
}

// InCooldown returns true if a reminder went out within the given window
func (s *Statement) InCooldown(now time.Time, window time.Duration) bool {
	if s.LastReminderAt == nil {
		return false
	}
	return now.Sub(*s.LastReminderAt) < window
}

// DaysSinceIssued returns whole days since the statement was created
func (s *Statement) DaysSinceIssued(now time.Time) int {
	return int(now.Sub(s.CreatedAt).Hours() / 24)
}

// DaysOverdue returns whole days past the due date (0 if not overdue)
func (s *Statement) DaysOverdue(now time.Time) int {
	if !s.IsOverdueAt(now) {
		return 0
	}
	return int(now.Sub(s.DueDate).Hours() / 24)
}
