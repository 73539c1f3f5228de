package billing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AllocationTarget represents an outstanding receivable entry a payment can
// be allocated against
type AllocationTarget struct {
	EntryID     uuid.UUID
	StatementID *uuid.UUID
	ReferenceID string
	Outstanding decimal.Decimal
	CreatedAt   int64 // unix nanos, keeps the sort stable across DB round trips
}

// AllocationResult represents a single planned allocation
type AllocationResult struct {
	EntryID     uuid.UUID
	StatementID *uuid.UUID
	Amount      decimal.Decimal
}

// AllocationPlan is the complete outcome of allocating a payment across
// outstanding receivables
type AllocationPlan struct {
	Allocations     []AllocationResult
	TotalAllocated  decimal.Decimal
	RemainingCredit decimal.Decimal // unallocated leftover, becomes channel credit
	FullyAllocated  bool
	EntriesSettled  []uuid.UUID
	EntriesPartial  []uuid.UUID
}

// StatementAllocated sums planned allocations per statement so the caller can
// update paid amounts in one pass.
func (p *AllocationPlan) StatementAllocated() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, a := range p.Allocations {
		if a.StatementID == nil {
			continue
		}
		out[*a.StatementID] = out[*a.StatementID].Add(a.Amount)
	}
	return out
}

// PaymentAllocator plans how an incoming payment is spread across a channel's
// outstanding receivables
type PaymentAllocator interface {
	// Allocate splits the amount over targets, oldest first
	Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error)
	// AllocateScoped settles targets on the given statement before any others
	AllocateScoped(amount decimal.Decimal, statementID uuid.UUID, targets []AllocationTarget) (*AllocationPlan, error)
}

// FIFOPaymentAllocator allocates to the oldest outstanding receivables first.
// Running every payment through the same FIFO pass keeps per-entry remaining
// amounts consistent no matter which API the payment arrived on.
type FIFOPaymentAllocator struct{}

// NewFIFOPaymentAllocator creates a FIFO payment allocator
func NewFIFOPaymentAllocator() *FIFOPaymentAllocator {
	return &FIFOPaymentAllocator{}
}

// Allocate allocates the amount to targets in FIFO order (oldest first)
func (a *FIFOPaymentAllocator) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})

	return run(amount, sorted), nil
}

// AllocateScoped allocates to the statement's own targets first (FIFO within
// the statement), then spills over to the remaining targets in FIFO order.
func (a *FIFOPaymentAllocator) AllocateScoped(amount decimal.Decimal, statementID uuid.UUID, targets []AllocationTarget) (*AllocationPlan, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if statementID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STATEMENT", "Statement ID cannot be empty")
	}

	scoped := make([]AllocationTarget, 0, len(targets))
	rest := make([]AllocationTarget, 0, len(targets))
	for _, t := range targets {
		if t.StatementID != nil && *t.StatementID == statementID {
			scoped = append(scoped, t)
		} else {
			rest = append(rest, t)
		}
	}
	byAge := func(s []AllocationTarget) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].CreatedAt < s[j].CreatedAt })
	}
	byAge(scoped)
	byAge(rest)

	return run(amount, append(scoped, rest...)), nil
}

func run(amount decimal.Decimal, ordered []AllocationTarget) *AllocationPlan {
	allocations := make([]AllocationResult, 0)
	settled := make([]uuid.UUID, 0)
	partial := make([]uuid.UUID, 0)
	remaining := amount
	totalAllocated := decimal.Zero

	for _, target := range ordered {
		if remaining.IsZero() {
			break
		}
		if target.Outstanding.LessThanOrEqual(decimal.Zero) {
			continue
		}

		allocAmount := decimal.Min(remaining, target.Outstanding)

		allocations = append(allocations, AllocationResult{
			EntryID:     target.EntryID,
			StatementID: target.StatementID,
			Amount:      allocAmount,
		})

		totalAllocated = totalAllocated.Add(allocAmount)
		remaining = remaining.Sub(allocAmount)

		if allocAmount.GreaterThanOrEqual(target.Outstanding) {
			settled = append(settled, target.EntryID)
		} else {
			partial = append(partial, target.EntryID)
		}
	}

	return &AllocationPlan{
		Allocations:     allocations,
		TotalAllocated:  totalAllocated,
		RemainingCredit: remaining,
		FullyAllocated:  remaining.IsZero(),
		EntriesSettled:  settled,
		EntriesPartial:  partial,
	}
}

// TargetsFromEntries converts outstanding receivable entries into allocation
// targets, skipping anything already settled.
func TargetsFromEntries(entries []*LedgerEntry) []AllocationTarget {
	targets := make([]AllocationTarget, 0, len(entries))
	for _, e := range entries {
		if e.Type != EntryTypeReceivable || !e.IsOutstanding() {
			continue
		}
		targets = append(targets, AllocationTarget{
			EntryID:     e.ID,
			StatementID: e.StatementID,
			ReferenceID: e.ReferenceID,
			Outstanding: e.RemainingAmount,
			CreatedAt:   e.CreatedAt.UnixNano(),
		})
	}
	return targets
}
