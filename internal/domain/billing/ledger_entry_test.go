package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForRemaining(t *testing.T) {
	amount := decimal.NewFromInt(100)

	assert.Equal(t, EntryStatusUnpaid, StatusForRemaining(amount, amount))
	assert.Equal(t, EntryStatusPartiallyPaid, StatusForRemaining(amount, decimal.NewFromInt(40)))
	assert.Equal(t, EntryStatusPaid, StatusForRemaining(amount, decimal.Zero))
}

func TestNewReceivableEntry(t *testing.T) {
	tenantID := uuid.New()
	channelID := uuid.New()

	t.Run("creates unpaid entry without credit", func(t *testing.T) {
		orderID := uuid.New()
		e, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(100), &orderID, "ORD-001", "March order", decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, EntryTypeReceivable, e.Type)
		assert.Equal(t, EntryStatusUnpaid, e.Status)
		assert.True(t, e.RemainingAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, e.IsUnbilled())
		assert.True(t, e.IsOutstanding())
		require.NoError(t, e.CheckInvariants())
	})

	t.Run("applied credit reduces the initial remaining", func(t *testing.T) {
		e, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(100), nil, "ORD-002", "", decimal.NewFromInt(30))
		require.NoError(t, err)
		assert.True(t, e.RemainingAmount.Equal(decimal.NewFromInt(70)))
		assert.Equal(t, EntryStatusPartiallyPaid, e.Status)
		require.NoError(t, e.CheckInvariants())
	})

	t.Run("credit covering the full amount settles the entry at birth", func(t *testing.T) {
		e, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(50), nil, "ORD-003", "", decimal.NewFromInt(80))
		require.NoError(t, err)
		assert.True(t, e.RemainingAmount.IsZero())
		assert.Equal(t, EntryStatusPaid, e.Status)
		assert.False(t, e.IsOutstanding())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := NewReceivableEntry(tenantID, channelID, decimal.Zero, nil, "ORD-004", "", decimal.Zero)
		assert.Error(t, err)
		_, err = NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(-5), nil, "ORD-005", "", decimal.Zero)
		assert.Error(t, err)
	})
}

func TestNewPaymentEntry(t *testing.T) {
	e, err := NewPaymentEntry(uuid.New(), uuid.New(), decimal.NewFromInt(75), "PAY-001", "wire transfer")
	require.NoError(t, err)
	assert.Equal(t, EntryTypePayment, e.Type)
	assert.Equal(t, EntryStatusPaid, e.Status)
	assert.True(t, e.RemainingAmount.IsZero())
	assert.True(t, e.SignedAmount().Equal(decimal.NewFromInt(-75)))
	require.NoError(t, e.CheckInvariants())

	_, err = NewPaymentEntry(uuid.New(), uuid.New(), decimal.Zero, "PAY-002", "")
	assert.Error(t, err)
}

func TestLedgerEntryApplyAllocation(t *testing.T) {
	tenantID := uuid.New()
	channelID := uuid.New()

	t.Run("partial then full allocation", func(t *testing.T) {
		e, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(100), nil, "ORD-1", "", decimal.Zero)
		require.NoError(t, err)

		require.NoError(t, e.ApplyAllocation(decimal.NewFromInt(40)))
		assert.Equal(t, EntryStatusPartiallyPaid, e.Status)
		assert.True(t, e.RemainingAmount.Equal(decimal.NewFromInt(60)))

		require.NoError(t, e.ApplyAllocation(decimal.NewFromInt(60)))
		assert.Equal(t, EntryStatusPaid, e.Status)
		assert.True(t, e.RemainingAmount.IsZero())
		require.NoError(t, e.CheckInvariants())
	})

	t.Run("rejects allocation above remaining", func(t *testing.T) {
		e, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(50), nil, "ORD-2", "", decimal.Zero)
		require.NoError(t, err)
		err = e.ApplyAllocation(decimal.NewFromInt(51))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds remaining")
	})

	t.Run("rejects allocation on payment entries", func(t *testing.T) {
		e, err := NewPaymentEntry(tenantID, channelID, decimal.NewFromInt(50), "PAY-1", "")
		require.NoError(t, err)
		assert.Error(t, e.ApplyAllocation(decimal.NewFromInt(10)))
	})
}

func TestLedgerEntryAttachToStatement(t *testing.T) {
	e, err := NewReceivableEntry(uuid.New(), uuid.New(), decimal.NewFromInt(10), nil, "ORD-1", "", decimal.Zero)
	require.NoError(t, err)

	stmtID := uuid.New()
	require.NoError(t, e.AttachToStatement(stmtID))
	assert.False(t, e.IsUnbilled())
	assert.Equal(t, stmtID, *e.StatementID)

	err = e.AttachToStatement(uuid.New())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already attached")

	assert.Error(t, e.AttachToStatement(uuid.Nil))
}
