package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceAuditor(t *testing.T) {
	tenantID := uuid.New()
	auditor := NewBalanceAuditor()

	t.Run("replay derives balances from the ledger", func(t *testing.T) {
		channelID := uuid.New()
		r1, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(100), nil, "ORD-1", "", decimal.Zero)
		require.NoError(t, err)
		r2, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(50), nil, "ORD-2", "", decimal.Zero)
		require.NoError(t, err)
		p1, err := NewPaymentEntry(tenantID, channelID, decimal.NewFromInt(60), "PAY-1", "")
		require.NoError(t, err)

		// the payment was allocated against the first receivable
		require.NoError(t, r1.ApplyAllocation(decimal.NewFromInt(60)))

		computed := auditor.Replay([]*LedgerEntry{r1, r2, p1})
		assert.True(t, computed.CurrentBalance.Equal(decimal.NewFromInt(90)))
		assert.True(t, computed.PendingBalance.Equal(decimal.NewFromInt(90)))
		assert.Equal(t, 3, computed.EntryCount)
	})

	t.Run("replay excludes billed entries and nets out credit", func(t *testing.T) {
		channelID := uuid.New()
		billed, err := NewReceivableEntry(tenantID, channelID, decimal.NewFromInt(100), nil, "ORD-1", "", decimal.Zero)
		require.NoError(t, err)
		require.NoError(t, billed.AttachToStatement(uuid.New()))

		overpay, err := NewPaymentEntry(tenantID, channelID, decimal.NewFromInt(150), "PAY-1", "")
		require.NoError(t, err)
		require.NoError(t, billed.ApplyAllocation(decimal.NewFromInt(100)))

		computed := auditor.Replay([]*LedgerEntry{billed, overpay})
		assert.True(t, computed.CurrentBalance.Equal(decimal.NewFromInt(-50)))
		assert.True(t, computed.PendingBalance.Equal(decimal.NewFromInt(-50)))
	})

	t.Run("audit reports no drift for a consistent channel", func(t *testing.T) {
		ch, err := NewChannel(tenantID, "CH-OK", "Consistent", "ok@ch.example", ChannelTypePartner)
		require.NoError(t, err)

		r, err := NewReceivableEntry(tenantID, ch.ID, decimal.NewFromInt(100), nil, "ORD-1", "", decimal.Zero)
		require.NoError(t, err)
		require.NoError(t, ch.ApplyReceivable(decimal.NewFromInt(100)))

		drift := auditor.Audit(ch, []*LedgerEntry{r}, time.Now())
		assert.False(t, drift.HasDrift())
		assert.True(t, drift.CurrentDrift.IsZero())
		assert.True(t, drift.PendingDrift.IsZero())
	})

	t.Run("audit flags a skipped balance update", func(t *testing.T) {
		ch, err := NewChannel(tenantID, "CH-DRIFT", "Drifting", "drift@ch.example", ChannelTypePartner)
		require.NoError(t, err)

		// entry exists but the channel balance was never updated
		r, err := NewReceivableEntry(tenantID, ch.ID, decimal.NewFromInt(100), nil, "ORD-1", "", decimal.Zero)
		require.NoError(t, err)

		drift := auditor.Audit(ch, []*LedgerEntry{r}, time.Now())
		assert.True(t, drift.HasDrift())
		assert.True(t, drift.CurrentDrift.Equal(decimal.NewFromInt(-100)))
		assert.True(t, drift.PendingDrift.Equal(decimal.NewFromInt(-100)))
		assert.Equal(t, ch.Code, drift.ChannelCode)
	})
}
