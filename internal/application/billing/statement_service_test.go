package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedChannel(t *testing.T, f *billingFixture, tenantID uuid.UUID) *billing.Channel {
	t.Helper()
	ch, err := billing.NewChannel(tenantID, "CH-"+uuid.NewString()[:8], "Test Channel", "partner@test.example", billing.ChannelTypePartner)
	require.NoError(t, err)
	ch.ClearDomainEvents()
	require.NoError(t, f.channels.Save(context.Background(), ch))
	require.NoError(t, f.configs.Save(context.Background(), billing.NewDefaultStatementConfig(tenantID, ch.ID)))
	return ch
}

func seedReceivable(t *testing.T, f *billingFixture, tenantID uuid.UUID, ch *billing.Channel, amount int64) *billing.LedgerEntry {
	t.Helper()
	orderID := uuid.New()
	entry, err := billing.NewReceivableEntry(tenantID, ch.ID, decimal.NewFromInt(amount), &orderID, "ORD-"+uuid.NewString()[:8], "", decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, f.entries.Save(context.Background(), entry))
	require.NoError(t, ch.ApplyReceivable(decimal.NewFromInt(amount)))
	require.NoError(t, f.channels.Save(context.Background(), ch))
	return entry
}

func newStatementServiceForTest(f *billingFixture, nowFn func() time.Time) *StatementService {
	logger := zap.NewNop()
	configSvc := NewConfigService(f.channels, f.configs, nil, logger)
	return NewStatementService(f.scope, configSvc, f.notifier, f.publisher, logger, WithStatementClock(nowFn))
}

func TestGenerateStatements(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("cycle expiry produces a statement capturing unbilled entries", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		e1 := seedReceivable(t, f, tenantID, ch, 100)
		e2 := seedReceivable(t, f, tenantID, ch, 50)

		now := ch.CreatedAt.Add(15 * 24 * time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })

		summary, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.ChannelsEvaluated)
		assert.Equal(t, 1, summary.StatementsCreated)
		assert.Empty(t, summary.Failures)

		stmts, err := f.statements.FindByChannel(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		require.Len(t, stmts, 1)
		stmt := stmts[0]
		assert.True(t, stmt.TotalAmount.Equal(decimal.NewFromInt(150)))
		assert.Equal(t, billing.StatementStatusSent, stmt.Status)
		assert.Equal(t, billing.TriggerBillingCycle.String(), stmt.TriggerReason)
		assert.Equal(t, now.Add(14*24*time.Hour), stmt.DueDate)

		// entries now carry the statement link
		assert.Equal(t, stmt.ID, *e1.StatementID)
		assert.Equal(t, stmt.ID, *e2.StatementID)

		// channel bookkeeping
		assert.True(t, ch.PendingBalance.IsZero())
		assert.True(t, ch.CurrentBalance.Equal(decimal.NewFromInt(150)))
		require.NotNil(t, ch.LastStatementAt)

		// partner was notified
		issued := f.notifier.ByKind(billing.NotificationStatementIssued)
		require.Len(t, issued, 1)
		assert.Equal(t, ch.ContactEmail, issued[0].Recipient)
		assert.Equal(t, stmt.StatementNumber, issued[0].StatementNumber)

		assert.Len(t, f.publisher.GetEventsByType(billing.EventTypeStatementIssued), 1)
	})

	t.Run("balance threshold fires before the cycle ends", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		threshold := decimal.NewFromInt(500)
		cfg, err := f.configs.FindByChannel(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		cfg.BalanceThreshold = &threshold

		seedReceivable(t, f, tenantID, ch, 600)

		now := ch.CreatedAt.Add(24 * time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })

		summary, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.StatementsCreated)

		stmts, _ := f.statements.FindByChannel(ctx, tenantID, ch.ID)
		require.Len(t, stmts, 1)
		assert.Equal(t, billing.TriggerBalanceThreshold.String(), stmts[0].TriggerReason)
	})

	t.Run("payments settle receivables at receipt rather than netting at generation", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		billed := seedReceivable(t, f, tenantID, ch, 100)

		now := ch.CreatedAt.Add(15 * 24 * time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })
		_, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		stmts, _ := f.statements.FindByChannel(ctx, tenantID, ch.ID)
		require.Len(t, stmts, 1)

		// new unbilled work accrues, then a payment lands; oldest-first
		// allocation sends it to the billed debt, not the unbilled entry
		unbilled := seedReceivable(t, f, tenantID, ch, 30)
		paySvc := newPaymentServiceForTest(f)
		_, err = paySvc.RecordPayment(ctx, tenantID, RecordPaymentInput{
			ChannelID: ch.ID,
			Amount:    decimal.NewFromInt(70),
		})
		require.NoError(t, err)
		assert.True(t, billed.RemainingAmount.Equal(decimal.NewFromInt(30)))
		assert.True(t, unbilled.RemainingAmount.Equal(decimal.NewFromInt(30)))

		// the next statement bills the unbilled entry at its remaining value;
		// the payment already reduced the billed receivable directly, so it
		// is not netted against the unbilled batch again
		resp, err := svc.GenerateStatementForChannel(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(30)))
	})

	t.Run("a quiet channel is skipped", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		seedReceivable(t, f, tenantID, ch, 100)

		now := ch.CreatedAt.Add(24 * time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })

		summary, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.StatementsCreated)
		assert.Equal(t, 1, summary.Skipped)
	})

	t.Run("a triggered channel with nothing to bill gets no statement", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)

		now := ch.CreatedAt.Add(30 * 24 * time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })

		summary, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.StatementsCreated)
		assert.Equal(t, 1, summary.Skipped)
		assert.Empty(t, f.notifier.Requests)
	})

	t.Run("paused channels are excluded from the pass", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		seedReceivable(t, f, tenantID, ch, 100)
		require.NoError(t, ch.Pause())

		now := ch.CreatedAt.Add(30 * 24 * time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })

		summary, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.ChannelsEvaluated)
	})

	t.Run("one broken channel does not block the others", func(t *testing.T) {
		f := newBillingFixture()
		bad := seedChannel(t, f, tenantID)
		seedReceivable(t, f, tenantID, bad, 100)
		good := seedChannel(t, f, tenantID)
		seedReceivable(t, f, tenantID, good, 200)

		flaky := &flakyChannelRepo{ChannelRepository: f.channels, failSaveFor: bad.ID}
		scope := NewNoOpTransactionScope(flaky, f.entries, f.statements, f.configs)
		logger := zap.NewNop()
		configSvc := NewConfigService(flaky, f.configs, nil, logger)
		now := bad.CreatedAt.Add(30 * 24 * time.Hour)
		svc := NewStatementService(scope, configSvc, f.notifier, f.publisher, logger,
			WithStatementClock(func() time.Time { return now }))

		summary, err := svc.GenerateStatements(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.ChannelsEvaluated)
		assert.Equal(t, 1, summary.StatementsCreated)
		require.Len(t, summary.Failures, 1)
		assert.Equal(t, bad.ID, summary.Failures[0].ChannelID)

		stmts, _ := f.statements.FindByChannel(ctx, tenantID, good.ID)
		assert.Len(t, stmts, 1)
	})
}

func TestGenerateStatementForChannel(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("manual generation bypasses the triggers", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)
		seedReceivable(t, f, tenantID, ch, 100)

		// well inside the cycle, nothing would fire on its own
		now := ch.CreatedAt.Add(time.Hour)
		svc := newStatementServiceForTest(f, func() time.Time { return now })

		resp, err := svc.GenerateStatementForChannel(ctx, tenantID, ch.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.TriggerManual.String(), resp.TriggerReason)
		assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("manual generation with nothing to bill returns an error", func(t *testing.T) {
		f := newBillingFixture()
		ch := seedChannel(t, f, tenantID)

		svc := newStatementServiceForTest(f, time.Now)
		_, err := svc.GenerateStatementForChannel(ctx, tenantID, ch.ID)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NO_UNBILLED_BALANCE", domainErr.Code)
	})
}

// flakyChannelRepo fails SaveWithLock for one channel to exercise error isolation
type flakyChannelRepo struct {
	billing.ChannelRepository
	failSaveFor uuid.UUID
}

func (r *flakyChannelRepo) SaveWithLock(ctx context.Context, ch *billing.Channel) error {
	if ch.ID == r.failSaveFor {
		return shared.ErrConcurrencyConflict
	}
	return r.ChannelRepository.SaveWithLock(ctx, ch)
}
