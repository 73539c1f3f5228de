package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func target(outstanding int64, createdAt time.Time, stmtID *uuid.UUID) AllocationTarget {
	return AllocationTarget{
		EntryID:     uuid.New(),
		StatementID: stmtID,
		Outstanding: decimal.NewFromInt(outstanding),
		CreatedAt:   createdAt.UnixNano(),
	}
}

func TestFIFOPaymentAllocator(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Allocate with zero amount returns error", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		_, err := alloc.Allocate(decimal.Zero, []AllocationTarget{target(100, base, nil)})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})

	t.Run("Allocate with no targets leaves everything as credit", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		plan, err := alloc.Allocate(decimal.NewFromInt(100), nil)
		require.NoError(t, err)
		assert.Empty(t, plan.Allocations)
		assert.True(t, plan.TotalAllocated.IsZero())
		assert.True(t, plan.RemainingCredit.Equal(decimal.NewFromInt(100)))
		assert.False(t, plan.FullyAllocated)
	})

	t.Run("Allocate settles oldest targets first", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		oldest := target(40, base, nil)
		middle := target(30, base.Add(time.Hour), nil)
		newest := target(50, base.Add(2*time.Hour), nil)

		// pass targets out of order on purpose
		plan, err := alloc.Allocate(decimal.NewFromInt(60), []AllocationTarget{newest, oldest, middle})
		require.NoError(t, err)

		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, oldest.EntryID, plan.Allocations[0].EntryID)
		assert.True(t, plan.Allocations[0].Amount.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, middle.EntryID, plan.Allocations[1].EntryID)
		assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromInt(20)))

		assert.True(t, plan.TotalAllocated.Equal(decimal.NewFromInt(60)))
		assert.True(t, plan.RemainingCredit.IsZero())
		assert.True(t, plan.FullyAllocated)
		assert.Equal(t, []uuid.UUID{oldest.EntryID}, plan.EntriesSettled)
		assert.Equal(t, []uuid.UUID{middle.EntryID}, plan.EntriesPartial)
	})

	t.Run("Allocate overpayment reports leftover credit", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		only := target(25, base, nil)
		plan, err := alloc.Allocate(decimal.NewFromInt(100), []AllocationTarget{only})
		require.NoError(t, err)

		assert.True(t, plan.TotalAllocated.Equal(decimal.NewFromInt(25)))
		assert.True(t, plan.RemainingCredit.Equal(decimal.NewFromInt(75)))
		assert.False(t, plan.FullyAllocated)
	})

	t.Run("Allocate skips settled targets", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		settled := target(0, base, nil)
		open := target(30, base.Add(time.Hour), nil)
		plan, err := alloc.Allocate(decimal.NewFromInt(30), []AllocationTarget{settled, open})
		require.NoError(t, err)

		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, open.EntryID, plan.Allocations[0].EntryID)
	})

	t.Run("AllocateScoped pays the statement's targets first", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		stmtID := uuid.New()

		older := target(50, base, nil)
		onStatement := target(40, base.Add(time.Hour), &stmtID)

		plan, err := alloc.AllocateScoped(decimal.NewFromInt(60), stmtID, []AllocationTarget{older, onStatement})
		require.NoError(t, err)

		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, onStatement.EntryID, plan.Allocations[0].EntryID)
		assert.True(t, plan.Allocations[0].Amount.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, older.EntryID, plan.Allocations[1].EntryID)
		assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("AllocateScoped rejects empty statement ID", func(t *testing.T) {
		alloc := NewFIFOPaymentAllocator()
		_, err := alloc.AllocateScoped(decimal.NewFromInt(10), uuid.Nil, nil)
		assert.Error(t, err)
	})
}

func TestAllocationPlanStatementAllocated(t *testing.T) {
	stmtA := uuid.New()
	stmtB := uuid.New()

	plan := &AllocationPlan{
		Allocations: []AllocationResult{
			{EntryID: uuid.New(), StatementID: &stmtA, Amount: decimal.NewFromInt(10)},
			{EntryID: uuid.New(), StatementID: &stmtA, Amount: decimal.NewFromInt(15)},
			{EntryID: uuid.New(), StatementID: &stmtB, Amount: decimal.NewFromInt(5)},
			{EntryID: uuid.New(), StatementID: nil, Amount: decimal.NewFromInt(7)},
		},
	}

	byStatement := plan.StatementAllocated()
	require.Len(t, byStatement, 2)
	assert.True(t, byStatement[stmtA].Equal(decimal.NewFromInt(25)))
	assert.True(t, byStatement[stmtB].Equal(decimal.NewFromInt(5)))
}

func TestTargetsFromEntries(t *testing.T) {
	tenantID := uuid.New()
	channelID := uuid.New()

	receivable, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(100), nil, "ORD-1", "", decimal.Zero)
	require.NoError(t, err)
	payment, err := NewPaymentEntry(tenantID, channelID, decimal.NewFromInt(50), "PAY-1", "")
	require.NoError(t, err)
	settled, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(20), nil, "ORD-2", "", decimal.NewFromInt(20))
	require.NoError(t, err)

	targets := TargetsFromEntries([]*LedgerEntry{receivable, payment, settled})
	require.Len(t, targets, 1)
	assert.Equal(t, receivable.ID, targets[0].EntryID)
	assert.True(t, targets[0].Outstanding.Equal(decimal.NewFromInt(100)))
}
