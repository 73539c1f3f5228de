package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants for the billing domain
const (
	EventTypeChannelCreated     = "billing.channel.created"
	EventTypeReceivableRecorded = "billing.receivable.recorded"
	EventTypePaymentRecorded    = "billing.payment.recorded"
	EventTypeStatementIssued    = "billing.statement.issued"
	EventTypeStatementPaid      = "billing.statement.paid"
	EventTypeStatementOverdue   = "billing.statement.overdue"
)

// ChannelCreatedEvent is raised when a new sales channel is onboarded
type ChannelCreatedEvent struct {
	shared.BaseDomainEvent
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	ChannelType ChannelType `json:"channel_type"`
}

// NewChannelCreatedEvent creates a new channel created event
func NewChannelCreatedEvent(ch *Channel) *ChannelCreatedEvent {
	return &ChannelCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChannelCreated, "Channel", ch.ID, ch.TenantID),
		Code:            ch.Code,
		Name:            ch.Name,
		ChannelType:     ch.Type,
	}
}

// ReceivableRecordedEvent is raised when a receivable entry hits the ledger
type ReceivableRecordedEvent struct {
	shared.BaseDomainEvent
	ChannelID     uuid.UUID       `json:"channel_id"`
	Amount        decimal.Decimal `json:"amount"`
	CreditApplied decimal.Decimal `json:"credit_applied"`
	ReferenceID   string          `json:"reference_id"`
}

// NewReceivableRecordedEvent creates a new receivable recorded event
func NewReceivableRecordedEvent(e *LedgerEntry, creditApplied decimal.Decimal) *ReceivableRecordedEvent {
	return &ReceivableRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceivableRecorded, "LedgerEntry", e.ID, e.TenantID),
		ChannelID:       e.ChannelID,
		Amount:          e.Amount,
		CreditApplied:   creditApplied,
		ReferenceID:     e.ReferenceID,
	}
}

// PaymentRecordedEvent is raised when a payment entry hits the ledger
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	ChannelID      uuid.UUID       `json:"channel_id"`
	Amount         decimal.Decimal `json:"amount"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	CreditCreated  decimal.Decimal `json:"credit_created"`
	ReferenceID    string          `json:"reference_id"`
}

// NewPaymentRecordedEvent creates a new payment recorded event
func NewPaymentRecordedEvent(e *LedgerEntry, plan *AllocationPlan) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "LedgerEntry", e.ID, e.TenantID),
		ChannelID:       e.ChannelID,
		Amount:          e.Amount,
		TotalAllocated:  plan.TotalAllocated,
		CreditCreated:   plan.RemainingCredit,
		ReferenceID:     e.ReferenceID,
	}
}

// StatementIssuedEvent is raised when a statement is generated for a channel
type StatementIssuedEvent struct {
	shared.BaseDomainEvent
	StatementNumber string          `json:"statement_number"`
	ChannelID       uuid.UUID       `json:"channel_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DueDate         time.Time       `json:"due_date"`
	TriggerReason   string          `json:"trigger_reason"`
}

// NewStatementIssuedEvent creates a new statement issued event
func NewStatementIssuedEvent(s *Statement) *StatementIssuedEvent {
	return &StatementIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatementIssued, "Statement", s.ID, s.TenantID),
		StatementNumber: s.StatementNumber,
		ChannelID:       s.ChannelID,
		TotalAmount:     s.TotalAmount,
		DueDate:         s.DueDate,
		TriggerReason:   s.TriggerReason,
	}
}

// StatementPaidEvent is raised when a statement is settled in full
type StatementPaidEvent struct {
	shared.BaseDomainEvent
	StatementNumber string          `json:"statement_number"`
	ChannelID       uuid.UUID       `json:"channel_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// NewStatementPaidEvent creates a new statement paid event
func NewStatementPaidEvent(s *Statement) *StatementPaidEvent {
	return &StatementPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatementPaid, "Statement", s.ID, s.TenantID),
		StatementNumber: s.StatementNumber,
		ChannelID:       s.ChannelID,
		TotalAmount:     s.TotalAmount,
	}
}

// StatementOverdueEvent is raised when an open statement passes its due date
type StatementOverdueEvent struct {
	shared.BaseDomainEvent
	StatementNumber string          `json:"statement_number"`
	ChannelID       uuid.UUID       `json:"channel_id"`
	AmountDue       decimal.Decimal `json:"amount_due"`
	DueDate         time.Time       `json:"due_date"`
}

// NewStatementOverdueEvent creates a new statement overdue event
func NewStatementOverdueEvent(s *Statement) *StatementOverdueEvent {
	return &StatementOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatementOverdue, "Statement", s.ID, s.TenantID),
		StatementNumber: s.StatementNumber,
		ChannelID:       s.ChannelID,
		AmountDue:       s.AmountDue(),
		DueDate:         s.DueDate,
	}
}
