package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTenantSource struct {
	tenants []uuid.UUID
}

func (f *fakeTenantSource) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	return f.tenants, nil
}

type fakeStatementGenerator struct {
	calls int64
}

func (f *fakeStatementGenerator) GenerateStatements(ctx context.Context, tenantID uuid.UUID) (*appbilling.GenerationSummary, error) {
	atomic.AddInt64(&f.calls, 1)
	return &appbilling.GenerationSummary{ChannelsEvaluated: 1, StatementsCreated: 1}, nil
}

type fakeReminderSender struct {
	calls int64
}

func (f *fakeReminderSender) SendPaymentReminders(ctx context.Context, tenantID uuid.UUID) (*appbilling.ReminderSummary, error) {
	atomic.AddInt64(&f.calls, 1)
	return &appbilling.ReminderSummary{StatementsChecked: 1, RemindersSent: 1}, nil
}

func newTestScheduler(cfg BillingSchedulerConfig) (*BillingScheduler, *fakeStatementGenerator, *fakeReminderSender) {
	gen := &fakeStatementGenerator{}
	rem := &fakeReminderSender{}
	source := &fakeTenantSource{tenants: []uuid.UUID{uuid.New(), uuid.New()}}
	return NewBillingScheduler(gen, rem, source, zap.NewNop(), cfg), gen, rem
}

func TestBillingScheduler_RunsPassesOnInterval(t *testing.T) {
	cfg := BillingSchedulerConfig{
		Enabled:           true,
		StatementInterval: 20 * time.Millisecond,
		ReminderInterval:  20 * time.Millisecond,
		PassTimeout:       time.Second,
	}
	sched, gen, rem := newTestScheduler(cfg)

	require.NoError(t, sched.Start(context.Background()))
	assert.True(t, sched.IsRunning())

	// Two tenants per pass, so at least one tick gives two calls each
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&gen.calls) >= 2 && atomic.LoadInt64(&rem.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))
	assert.False(t, sched.IsRunning())
}

func TestBillingScheduler_Disabled(t *testing.T) {
	cfg := DefaultBillingSchedulerConfig()
	cfg.Enabled = false
	sched, gen, _ := newTestScheduler(cfg)

	require.NoError(t, sched.Start(context.Background()))
	assert.False(t, sched.IsRunning())
	assert.Equal(t, int64(0), atomic.LoadInt64(&gen.calls))
}

func TestBillingScheduler_TriggerImmediatePasses(t *testing.T) {
	cfg := DefaultBillingSchedulerConfig()
	// Long intervals so only the manual triggers run passes
	cfg.StatementInterval = time.Hour
	cfg.ReminderInterval = time.Hour
	sched, gen, rem := newTestScheduler(cfg)

	// Triggering a stopped scheduler fails
	err := sched.TriggerStatementPass(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, sched.Start(context.Background()))

	require.NoError(t, sched.TriggerStatementPass(context.Background()))
	require.NoError(t, sched.TriggerReminderPass(context.Background()))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&gen.calls) == 2 && atomic.LoadInt64(&rem.calls) == 2
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))
}

func TestBillingScheduler_StartTwiceIsNoOp(t *testing.T) {
	sched, _, _ := newTestScheduler(DefaultBillingSchedulerConfig())

	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Start(context.Background()))
	assert.True(t, sched.IsRunning())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))
	require.NoError(t, sched.Stop(stopCtx))
}
