package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"go.uber.org/zap"
)

// ErrSchedulerNotRunning is returned when triggering a pass on a stopped scheduler
var ErrSchedulerNotRunning = errors.New("scheduler is not running")

// TenantSource lists the tenants a scheduled pass should cover.
// The persistence layer implements this over the channels table.
type TenantSource interface {
	ActiveTenants(ctx context.Context) ([]uuid.UUID, error)
}

// StatementGenerator runs a statement generation pass for one tenant
type StatementGenerator interface {
	GenerateStatements(ctx context.Context, tenantID uuid.UUID) (*appbilling.GenerationSummary, error)
}

// ReminderSender runs a reminder pass for one tenant
type ReminderSender interface {
	SendPaymentReminders(ctx context.Context, tenantID uuid.UUID) (*appbilling.ReminderSummary, error)
}

// BillingScheduler periodically runs the statement generation and payment
// reminder passes over every tenant. Both passes are idempotent: generation
// skips channels whose cycle has not elapsed and reminders are gated by the
// per-statement cooldown, so overlapping or extra runs are harmless.
type BillingScheduler struct {
	statements StatementGenerator
	reminders  ReminderSender
	tenants    TenantSource
	logger     *zap.Logger
	config     BillingSchedulerConfig
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	isRunning  bool
}

// BillingSchedulerConfig holds configuration for the billing scheduler
type BillingSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// StatementInterval is how often the statement generation pass runs
	StatementInterval time.Duration

	// ReminderInterval is how often the reminder pass runs
	ReminderInterval time.Duration

	// PassTimeout is the maximum time for one pass across all tenants
	PassTimeout time.Duration
}

// DefaultBillingSchedulerConfig returns default configuration
func DefaultBillingSchedulerConfig() BillingSchedulerConfig {
	return BillingSchedulerConfig{
		Enabled:           true,
		StatementInterval: time.Hour,
		ReminderInterval:  6 * time.Hour,
		PassTimeout:       10 * time.Minute,
	}
}

// NewBillingScheduler creates a new billing scheduler
func NewBillingScheduler(
	statements StatementGenerator,
	reminders ReminderSender,
	tenants TenantSource,
	logger *zap.Logger,
	config BillingSchedulerConfig,
) *BillingScheduler {
	return &BillingScheduler{
		statements: statements,
		reminders:  reminders,
		tenants:    tenants,
		logger:     logger,
		config:     config,
	}
}

// Start starts the scheduler loops
func (s *BillingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Billing scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runLoop(ctx, "statement generation", s.config.StatementInterval, s.executeStatementPass)
	go s.runLoop(ctx, "payment reminders", s.config.ReminderInterval, s.executeReminderPass)

	s.logger.Info("Billing scheduler started",
		zap.Duration("statement_interval", s.config.StatementInterval),
		zap.Duration("reminder_interval", s.config.ReminderInterval),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Billing scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Billing scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *BillingScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerStatementPass runs an immediate statement generation pass
func (s *BillingScheduler) TriggerStatementPass(ctx context.Context) error {
	return s.triggerNow(ctx, "statement generation", s.executeStatementPass)
}

// TriggerReminderPass runs an immediate reminder pass
func (s *BillingScheduler) TriggerReminderPass(ctx context.Context) error {
	return s.triggerNow(ctx, "payment reminders", s.executeReminderPass)
}

func (s *BillingScheduler) triggerNow(ctx context.Context, name string, pass func(context.Context)) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate billing pass", zap.String("pass", name))

	go func() {
		defer s.wg.Done()
		pass(ctx)
	}()

	return nil
}

func (s *BillingScheduler) runLoop(ctx context.Context, name string, interval time.Duration, pass func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Billing pass loop stopping", zap.String("pass", name))
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

func (s *BillingScheduler) executeStatementPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	tenants, err := s.tenants.ActiveTenants(passCtx)
	if err != nil {
		s.logger.Error("Failed to list tenants for statement pass", zap.Error(err))
		return
	}

	start := time.Now()
	var created, failed int
	for _, tenantID := range tenants {
		summary, err := s.statements.GenerateStatements(passCtx, tenantID)
		if err != nil {
			failed++
			s.logger.Error("Statement pass failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		created += summary.StatementsCreated
		failed += len(summary.Failures)
	}

	s.logger.Info("Statement generation pass completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("tenants", len(tenants)),
		zap.Int("statements_created", created),
		zap.Int("failures", failed),
	)
}

func (s *BillingScheduler) executeReminderPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	tenants, err := s.tenants.ActiveTenants(passCtx)
	if err != nil {
		s.logger.Error("Failed to list tenants for reminder pass", zap.Error(err))
		return
	}

	start := time.Now()
	var sent, overdue, escalated, failed int
	for _, tenantID := range tenants {
		summary, err := s.reminders.SendPaymentReminders(passCtx, tenantID)
		if err != nil {
			failed++
			s.logger.Error("Reminder pass failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		sent += summary.RemindersSent
		overdue += summary.OverdueMarked
		escalated += summary.Escalations
		failed += len(summary.Failures)
	}

	s.logger.Info("Reminder pass completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("tenants", len(tenants)),
		zap.Int("reminders_sent", sent),
		zap.Int("overdue_marked", overdue),
		zap.Int("escalations", escalated),
		zap.Int("failures", failed),
	)
}
