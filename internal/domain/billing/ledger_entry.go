package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntryType represents the type of a ledger entry
type EntryType string

const (
	EntryTypeReceivable EntryType = "RECEIVABLE" // money the channel owes
	EntryTypePayment    EntryType = "PAYMENT"    // money received from the channel
)

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	return t == EntryTypeReceivable || t == EntryTypePayment
}

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// EntryStatus represents the settlement status of a ledger entry
type EntryStatus string

const (
	EntryStatusUnpaid        EntryStatus = "UNPAID"
	EntryStatusPartiallyPaid EntryStatus = "PARTIALLY_PAID"
	EntryStatusPaid          EntryStatus = "PAID"
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusUnpaid, EntryStatusPartiallyPaid, EntryStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of EntryStatus
func (s EntryStatus) String() string {
	return string(s)
}

// IsOutstanding returns true if the entry still carries unpaid amount
func (s EntryStatus) IsOutstanding() bool {
	return s == EntryStatusUnpaid || s == EntryStatusPartiallyPaid
}

// StatusForRemaining derives the entry status from amount and remaining.
// The status and remaining amount must never diverge; every mutation goes
// through this derivation.
func StatusForRemaining(amount, remaining decimal.Decimal) EntryStatus {
	switch {
	case remaining.IsZero():
		return EntryStatusPaid
	case remaining.Equal(amount):
		return EntryStatusUnpaid
	default:
		return EntryStatusPartiallyPaid
	}
}

// LedgerEntry is an immutable record of a financial event for a channel.
// Amount is always positive; the direction is implied by Type. For a
// RECEIVABLE, RemainingAmount is the unpaid portion; PAYMENT entries are
// created fully settled. StatementID is nil while the entry is unbilled and is
// set exactly once when a statement captures it.
type LedgerEntry struct {
	shared.BaseEntity
	TenantID        uuid.UUID
	ChannelID       uuid.UUID
	Type            EntryType
	Amount          decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          EntryStatus
	StatementID     *uuid.UUID
	OrderID         *uuid.UUID
	ReferenceID     string
	Description     string
}

// NewReceivableEntry creates a receivable for a new order. creditApplied is
// the portion of stored channel credit consumed at creation time; it reduces
// the initial remaining amount so credit is absorbed immediately rather than
// reconciled later.
func NewReceivableEntry(tenantID, channelID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, referenceID, description string, creditApplied decimal.Decimal) (*LedgerEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Receivable amount must be positive")
	}
	if creditApplied.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Applied credit cannot be negative")
	}
	if creditApplied.GreaterThan(amount) {
		creditApplied = amount
	}

	remaining := amount.Sub(creditApplied)
	return &LedgerEntry{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		ChannelID:       channelID,
		Type:            EntryTypeReceivable,
		Amount:          amount,
		RemainingAmount: remaining,
		Status:          StatusForRemaining(amount, remaining),
		OrderID:         orderID,
		ReferenceID:     referenceID,
		Description:     description,
	}, nil
}

// NewPaymentEntry creates a payment entry. Payments are born fully settled:
// the allocation against receivables happens in their remaining amounts.
func NewPaymentEntry(tenantID, channelID uuid.UUID, amount decimal.Decimal, referenceID, description string) (*LedgerEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	return &LedgerEntry{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		ChannelID:       channelID,
		Type:            EntryTypePayment,
		Amount:          amount,
		RemainingAmount: decimal.Zero,
		Status:          EntryStatusPaid,
		ReferenceID:     referenceID,
		Description:     description,
	}, nil
}

// IsUnbilled returns true while the entry is not attached to a statement
func (e *LedgerEntry) IsUnbilled() bool {
	return e.StatementID == nil
}

// IsOutstanding returns true if the entry still carries unpaid amount
func (e *LedgerEntry) IsOutstanding() bool {
	return e.Type == EntryTypeReceivable && e.Status.IsOutstanding()
}

// SignedAmount returns the amount with the sign implied by the entry type
// (positive for receivables, negative for payments).
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Type == EntryTypePayment {
		return e.Amount.Neg()
	}
	return e.Amount
}

// ApplyAllocation consumes part of a payment against this receivable,
// reducing the remaining amount and re-deriving the status.
func (e *LedgerEntry) ApplyAllocation(amount decimal.Decimal) error {
	if e.Type != EntryTypeReceivable {
		return shared.NewDomainError("INVALID_STATE", "Allocations apply only to receivable entries")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.GreaterThan(e.RemainingAmount) {
		return shared.NewDomainError("EXCEEDS_REMAINING",
			fmt.Sprintf("Allocation %s exceeds remaining %s on entry %s", amount, e.RemainingAmount, e.ID))
	}

	e.RemainingAmount = e.RemainingAmount.Sub(amount)
	e.Status = StatusForRemaining(e.Amount, e.RemainingAmount)
	e.UpdatedAt = time.Now()
	return nil
}

// AttachToStatement points the entry at the statement that captured it.
// The link is set exactly once, from nil to a concrete statement.
func (e *LedgerEntry) AttachToStatement(statementID uuid.UUID) error {
	if statementID == uuid.Nil {
		return shared.NewDomainError("INVALID_STATEMENT", "Statement ID cannot be empty")
	}
	if e.StatementID != nil {
		return shared.NewDomainError("ALREADY_BILLED",
			fmt.Sprintf("Entry %s is already attached to statement %s", e.ID, *e.StatementID))
	}
	id := statementID
	e.StatementID = &id
	e.UpdatedAt = time.Now()
	return nil
}

// CheckInvariants verifies the remaining/status consistency of the entry.
// Used by tests and the reconciliation audit.
func (e *LedgerEntry) CheckInvariants() error {
	if e.RemainingAmount.IsNegative() || e.RemainingAmount.GreaterThan(e.Amount) {
		return fmt.Errorf("entry %s: remaining %s outside [0, %s]", e.ID, e.RemainingAmount, e.Amount)
	}
	if e.Type == EntryTypeReceivable && e.Status != StatusForRemaining(e.Amount, e.RemainingAmount) {
		return fmt.Errorf("entry %s: status %s diverged from remaining %s", e.ID, e.Status, e.RemainingAmount)
	}
	if e.Type == EntryTypePayment && (!e.RemainingAmount.IsZero() || e.Status != EntryStatusPaid) {
		return fmt.Errorf("entry %s: payment entries must be settled at creation", e.ID)
	}
	return nil
}
