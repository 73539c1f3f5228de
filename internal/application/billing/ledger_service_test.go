package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedgerServiceForTest(f *billingFixture) *LedgerService {
	return NewLedgerService(f.scope, f.publisher, zap.NewNop())
}

func TestRecordReceivable(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("records an unpaid entry and grows the balances", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		svc := newLedgerServiceForTest(f)

		orderID := uuid.New()
		result, err := svc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
			ChannelID:   ch.ID,
			Amount:      decimal.NewFromInt(250),
			OrderID:     &orderID,
			ReferenceID: "ORD-1001",
			Description: "March dropship batch",
		})
		require.NoError(t, err)

		assert.True(t, result.CreditApplied.IsZero())
		assert.Equal(t, billing.EntryStatusUnpaid.String(), result.Entry.Status)
		assert.True(t, result.Entry.RemainingAmount.Equal(decimal.NewFromInt(250)))

		assert.True(t, ch.CurrentBalance.Equal(decimal.NewFromInt(250)))
		assert.True(t, ch.PendingBalance.Equal(decimal.NewFromInt(250)))
		assert.Len(t, f.publisher.GetEventsByType(billing.EventTypeReceivableRecorded), 1)
	})

	t.Run("stored credit is absorbed at creation", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)

		// overpay first to build credit
		paySvc := newPaymentServiceForTest(f)
		_, err := paySvc.RecordPayment(ctx, tenantID, RecordPaymentInput{
			ChannelID: ch.ID,
			Amount:    decimal.NewFromInt(80),
		})
		require.NoError(t, err)
		require.True(t, ch.AvailableCredit().Equal(decimal.NewFromInt(80)))

		svc := newLedgerServiceForTest(f)
		result, err := svc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
			ChannelID: ch.ID,
			Amount:    decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		assert.True(t, result.CreditApplied.Equal(decimal.NewFromInt(80)))
		assert.True(t, result.Entry.RemainingAmount.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, billing.EntryStatusPartiallyPaid.String(), result.Entry.Status)

		// credit fully consumed, only the uncovered part is owed
		assert.True(t, ch.CurrentBalance.Equal(decimal.NewFromInt(20)))
		assert.True(t, ch.PendingBalance.Equal(decimal.NewFromInt(20)))
		assert.True(t, ch.AvailableCredit().IsZero())
	})

	t.Run("credit larger than the receivable settles it at birth", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)

		paySvc := newPaymentServiceForTest(f)
		_, err := paySvc.RecordPayment(ctx, tenantID, RecordPaymentInput{
			ChannelID: ch.ID,
			Amount:    decimal.NewFromInt(200),
		})
		require.NoError(t, err)

		svc := newLedgerServiceForTest(f)
		result, err := svc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
			ChannelID: ch.ID,
			Amount:    decimal.NewFromInt(50),
		})
		require.NoError(t, err)

		assert.True(t, result.CreditApplied.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, billing.EntryStatusPaid.String(), result.Entry.Status)
		assert.True(t, ch.CurrentBalance.Equal(decimal.NewFromInt(-150)))
		assert.True(t, ch.AvailableCredit().Equal(decimal.NewFromInt(150)))
	})
}

func TestRecomputeBalance(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("a healthy channel reports no drift", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		ledgerSvc := newLedgerServiceForTest(f)
		paySvc := newPaymentServiceForTest(f)

		_, err := ledgerSvc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
			ChannelID: ch.ID, Amount: decimal.NewFromInt(300),
		})
		require.NoError(t, err)
		_, err = paySvc.RecordPayment(ctx, tenantID, RecordPaymentInput{
			ChannelID: ch.ID, Amount: decimal.NewFromInt(120),
		})
		require.NoError(t, err)

		report, err := ledgerSvc.RecomputeBalance(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		assert.False(t, report.HasDrift)
		assert.True(t, report.ComputedCurrent.Equal(decimal.NewFromInt(180)))
		assert.Equal(t, 2, report.EntryCount)
	})

	t.Run("statement and payment flows stay drift free end to end", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		ledgerSvc := newLedgerServiceForTest(f)
		paySvc := newPaymentServiceForTest(f)

		_, err := ledgerSvc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
			ChannelID: ch.ID, Amount: decimal.NewFromInt(500),
		})
		require.NoError(t, err)

		now := ch.CreatedAt.Add(15 * 24 * time.Hour)
		stmtSvc := newStatementServiceForTest(f, func() time.Time { return now })
		_, err = stmtSvc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)

		_, err = paySvc.RecordPayment(ctx, tenantID, RecordPaymentInput{
			ChannelID: ch.ID, Amount: decimal.NewFromInt(700),
		})
		require.NoError(t, err)

		report, err := ledgerSvc.RecomputeBalance(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		assert.False(t, report.HasDrift)
		assert.True(t, report.StoredCurrent.Equal(decimal.NewFromInt(-200)))
	})

	t.Run("a corrupted running balance is reported, not repaired", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		ledgerSvc := newLedgerServiceForTest(f)

		_, err := ledgerSvc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
			ChannelID: ch.ID, Amount: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		// corrupt the stored balance behind the ledger's back
		ch.CurrentBalance = ch.CurrentBalance.Add(decimal.NewFromInt(33))

		report, err := ledgerSvc.RecomputeBalance(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		assert.True(t, report.HasDrift)
		assert.True(t, report.CurrentDrift.Equal(decimal.NewFromInt(33)))

		// stored value untouched
		assert.True(t, ch.CurrentBalance.Equal(decimal.NewFromInt(133)))
	})
}

func TestExportChannelLedger(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	f := newBillingFixture()
	ch := seedChannel(t, f, tenantID)
	ledgerSvc := newLedgerServiceForTest(f)
	paySvc := newPaymentServiceForTest(f)

	_, err := ledgerSvc.RecordReceivable(ctx, tenantID, RecordReceivableInput{
		ChannelID: ch.ID, Amount: decimal.NewFromInt(100), ReferenceID: "ORD-1",
	})
	require.NoError(t, err)
	_, err = paySvc.RecordPayment(ctx, tenantID, RecordPaymentInput{
		ChannelID: ch.ID, Amount: decimal.NewFromInt(30), ReferenceID: "WIRE-1",
	})
	require.NoError(t, err)

	code, rows, err := ledgerSvc.ExportChannelLedger(ctx, tenantID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.Code, code)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, rows[0].RunningBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, rows[1].Amount.Equal(decimal.NewFromInt(-30)))
	assert.True(t, rows[1].RunningBalance.Equal(decimal.NewFromInt(70)))

	// the running balance ends on the stored balance
	assert.True(t, rows[len(rows)-1].RunningBalance.Equal(ch.CurrentBalance))
}
