package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputedBalances holds balances derived by replaying a channel's ledger
type ComputedBalances struct {
	CurrentBalance decimal.Decimal
	PendingBalance decimal.Decimal
	EntryCount     int
}

// BalanceDrift reports the difference between a channel's stored balances and
// the balances derived from its ledger. Drift means a write path skipped the
// balance update or applied it twice; it is reported, never silently fixed.
type BalanceDrift struct {
	ChannelID       uuid.UUID
	ChannelCode     string
	StoredCurrent   decimal.Decimal
	StoredPending   decimal.Decimal
	ComputedCurrent decimal.Decimal
	ComputedPending decimal.Decimal
	CurrentDrift    decimal.Decimal
	PendingDrift    decimal.Decimal
	EntryCount      int
	CheckedAt       time.Time
}

// HasDrift returns true if either balance disagrees with the ledger
func (d *BalanceDrift) HasDrift() bool {
	return !d.CurrentDrift.IsZero() || !d.PendingDrift.IsZero()
}

// BalanceAuditor replays ledger entries to derive what a channel's balances
// should be
type BalanceAuditor struct{}

// NewBalanceAuditor creates a new balance auditor
func NewBalanceAuditor() *BalanceAuditor {
	return &BalanceAuditor{}
}

// Replay derives balances from the full entry history of one channel. The
// current balance is the signed sum of all entries. The pending balance is
// what the next statement would capture, minus stored credit: the remaining
// amounts of receivables not yet on a statement, less any overpayment surplus.
func (a *BalanceAuditor) Replay(entries []*LedgerEntry) ComputedBalances {
	current := decimal.Zero
	unbilled := decimal.Zero
	for _, e := range entries {
		current = current.Add(e.SignedAmount())
		if e.Type == EntryTypeReceivable && e.IsUnbilled() {
			unbilled = unbilled.Add(e.RemainingAmount)
		}
	}

	credit := decimal.Zero
	if current.IsNegative() {
		credit = current.Neg()
	}

	return ComputedBalances{
		CurrentBalance: current,
		PendingBalance: unbilled.Sub(credit),
		EntryCount:     len(entries),
	}
}

// Audit compares a channel's stored balances against a ledger replay
func (a *BalanceAuditor) Audit(ch *Channel, entries []*LedgerEntry, now time.Time) *BalanceDrift {
	computed := a.Replay(entries)
	return &BalanceDrift{
		ChannelID:       ch.ID,
		ChannelCode:     ch.Code,
		StoredCurrent:   ch.CurrentBalance,
		StoredPending:   ch.PendingBalance,
		ComputedCurrent: computed.CurrentBalance,
		ComputedPending: computed.PendingBalance,
		CurrentDrift:    ch.CurrentBalance.Sub(computed.CurrentBalance),
		PendingDrift:    ch.PendingBalance.Sub(computed.PendingBalance),
		EntryCount:      computed.EntryCount,
		CheckedAt:       now,
	}
}
