package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ChannelStatus represents the status of a partner channel
type ChannelStatus string

const (
	ChannelStatusActive ChannelStatus = "ACTIVE"
	ChannelStatusPaused ChannelStatus = "PAUSED"
)

// IsValid checks if the status is a valid ChannelStatus
func (s ChannelStatus) IsValid() bool {
	return s == ChannelStatusActive || s == ChannelStatusPaused
}

// String returns the string representation of ChannelStatus
func (s ChannelStatus) String() string {
	return string(s)
}

// ChannelType represents the kind of sales counterparty
type ChannelType string

const (
	ChannelTypePartner  ChannelType = "PARTNER"
	ChannelTypeDropship ChannelType = "DROPSHIP"
)

// IsValid checks if the channel type is valid
func (t ChannelType) IsValid() bool {
	return t == ChannelTypePartner || t == ChannelTypeDropship
}

// String returns the string representation of ChannelType
func (t ChannelType) String() string {
	return string(t)
}

// Channel represents a partner/dropship sales counterparty that is billed
// periodically. CurrentBalance is the total owed (receivables minus payments);
// PendingBalance is the portion not yet captured on any statement. Both are
// denormalized running totals maintained transactionally with every ledger
// mutation - they are never recomputed during normal operation.
type Channel struct {
	shared.TenantAggregateRoot
	Code            string
	Name            string
	ContactEmail    string
	Type            ChannelType
	Status          ChannelStatus
	CurrentBalance  decimal.Decimal
	PendingBalance  decimal.Decimal
	LastStatementAt *time.Time
}

// NewChannel creates a new partner channel
func NewChannel(tenantID uuid.UUID, code, name, contactEmail string, channelType ChannelType) (*Channel, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Channel code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_CODE", "Channel code cannot exceed 50 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Channel name cannot be empty")
	}
	if contactEmail == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Channel contact email cannot be empty")
	}
	if !channelType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", "Channel type is not valid")
	}

	ch := &Channel{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		ContactEmail:        contactEmail,
		Type:                channelType,
		Status:              ChannelStatusActive,
		CurrentBalance:      decimal.Zero,
		PendingBalance:      decimal.Zero,
	}

	ch.AddDomainEvent(NewChannelCreatedEvent(ch))

	return ch, nil
}

// IsActive returns true if the channel is active
func (ch *Channel) IsActive() bool {
	return ch.Status == ChannelStatusActive
}

// Pause pauses the channel; paused channels are skipped by batch billing
func (ch *Channel) Pause() error {
	if ch.Status == ChannelStatusPaused {
		return shared.NewDomainError("INVALID_STATE", "Channel is already paused")
	}
	ch.Status = ChannelStatusPaused
	ch.UpdatedAt = time.Now()
	ch.IncrementVersion()
	return nil
}

// Activate re-activates a paused channel
func (ch *Channel) Activate() error {
	if ch.Status == ChannelStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Channel is already active")
	}
	ch.Status = ChannelStatusActive
	ch.UpdatedAt = time.Now()
	ch.IncrementVersion()
	return nil
}

// AvailableCredit returns the stored credit on the channel (zero when the
// channel owes money). A negative CurrentBalance means the partner has
// overpaid and the surplus is consumed by future receivables.
func (ch *Channel) AvailableCredit() decimal.Decimal {
	if ch.CurrentBalance.IsNegative() {
		return ch.CurrentBalance.Neg()
	}
	return decimal.Zero
}

// ApplyReceivable increases the running balances for a new receivable
func (ch *Channel) ApplyReceivable(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Receivable amount must be positive")
	}
	ch.CurrentBalance = ch.CurrentBalance.Add(amount)
	ch.PendingBalance = ch.PendingBalance.Add(amount)
	ch.UpdatedAt = time.Now()
	ch.IncrementVersion()
	return nil
}

// ApplyPayment decreases the running balances for a received payment.
// billedPortion is the part of the payment allocated to entries already on a
// statement: it settles billed debt, so it reduces the current balance but
// leaves the pending balance alone. The rest (unbilled allocations and
// leftover credit) comes off both. Balances may go negative: that is stored
// credit, not an error.
func (ch *Channel) ApplyPayment(amount, billedPortion decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if billedPortion.IsNegative() || billedPortion.GreaterThan(amount) {
		return shared.NewDomainError("INVALID_AMOUNT", "Billed portion must be between zero and the payment amount")
	}
	ch.CurrentBalance = ch.CurrentBalance.Sub(amount)
	ch.PendingBalance = ch.PendingBalance.Sub(amount.Sub(billedPortion))
	ch.UpdatedAt = time.Now()
	ch.IncrementVersion()
	return nil
}

// MarkStatemented records that a statement captured the given unbilled total.
// The captured amount moves out of the pending balance; the current balance is
// unchanged because the debt itself still exists.
func (ch *Channel) MarkStatemented(total decimal.Decimal, at time.Time) {
	ch.PendingBalance = ch.PendingBalance.Sub(total)
	ch.LastStatementAt = &at
	ch.UpdatedAt = at
	ch.IncrementVersion()
}

// BillingAnchor returns the reference time for the billing-cycle trigger:
// the last statement time, or channel creation when none exists yet.
func (ch *Channel) BillingAnchor() time.Time {
	if ch.LastStatementAt != nil {
		return *ch.LastStatementAt
	}
	return ch.CreatedAt
}

// String returns a short description for logging
func (ch *Channel) String() string {
	return fmt.Sprintf("channel %s (%s)", ch.Code, ch.ID)
}
