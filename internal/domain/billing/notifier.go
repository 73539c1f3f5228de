package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationKind identifies which email template to render
type NotificationKind string

const (
	NotificationStatementIssued   NotificationKind = "STATEMENT_ISSUED"
	NotificationPaymentReminder   NotificationKind = "PAYMENT_REMINDER"
	NotificationOverdueNotice     NotificationKind = "OVERDUE_NOTICE"
	NotificationPaymentEscalation NotificationKind = "PAYMENT_ESCALATION"
)

// IsValid checks if the kind is a valid NotificationKind
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationStatementIssued, NotificationPaymentReminder,
		NotificationOverdueNotice, NotificationPaymentEscalation:
		return true
	}
	return false
}

// String returns the string representation of NotificationKind
func (k NotificationKind) String() string {
	return string(k)
}

// EmailRequest carries everything the transport needs to send one billing
// email. The domain fills in the data; rendering happens in the
// notification layer.
type EmailRequest struct {
	Kind            NotificationKind
	Recipient       string
	ChannelID       uuid.UUID
	ChannelName     string
	StatementNumber string
	AmountDue       decimal.Decimal
	DueDate         time.Time
	DaysOverdue     int
	Instructions    string
}

// Notifier is the outbound port for billing emails. Implementations must not
// block the caller: statement generation and the reminder pass treat a send
// as fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, req EmailRequest) error
}

// NoOpNotifier discards all notifications. Used in tests and as a fallback
// when no transport is configured.
type NoOpNotifier struct{}

// Send implements Notifier
func (NoOpNotifier) Send(ctx context.Context, req EmailRequest) error {
	return nil
}
