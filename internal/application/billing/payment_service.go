package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records partner payments and allocates them across
// outstanding receivables
type PaymentService struct {
	txScope        TransactionScope
	allocator      billing.PaymentAllocator
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// PaymentServiceOption is a functional option for configuring PaymentService
type PaymentServiceOption func(*PaymentService)

// WithPaymentAllocator overrides the allocation strategy
func WithPaymentAllocator(allocator billing.PaymentAllocator) PaymentServiceOption {
	return func(s *PaymentService) {
		s.allocator = allocator
	}
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	txScope TransactionScope,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...PaymentServiceOption,
) *PaymentService {
	s := &PaymentService{
		txScope:        txScope,
		allocator:      billing.NewFIFOPaymentAllocator(),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPaymentInput carries the fields for recording a payment
type RecordPaymentInput struct {
	ChannelID   uuid.UUID
	Amount      decimal.Decimal
	ReferenceID string
	Description string
}

// PaymentAllocationResponse represents one allocation in API responses
type PaymentAllocationResponse struct {
	EntryID     uuid.UUID       `json:"entry_id"`
	StatementID *uuid.UUID      `json:"statement_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentResult is the outcome of recording a payment
type PaymentResult struct {
	Entry          *LedgerEntryResponse        `json:"entry,omitempty"`
	TotalAllocated decimal.Decimal             `json:"total_allocated"`
	CreditCreated  decimal.Decimal             `json:"credit_created"`
	Allocations    []PaymentAllocationResponse `json:"allocations"`
	StatementsPaid []string                    `json:"statements_paid,omitempty"`
	Message        string                      `json:"message,omitempty"`
}

// RecordPayment appends a payment to the channel's ledger and allocates it
// across outstanding receivables oldest first. Any leftover becomes stored
// credit on the channel. Entry, receivables, statements and running balances
// all commit in one transaction.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID uuid.UUID, input RecordPaymentInput) (*PaymentResult, error) {
	var (
		entry  *billing.LedgerEntry
		plan   *billing.AllocationPlan
		paid   []string
		events []shared.DomainEvent
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ch, err := repos.Channels().FindByID(ctx, tenantID, input.ChannelID)
		if err != nil {
			return err
		}

		entry, err = billing.NewPaymentEntry(tenantID, input.ChannelID, input.Amount,
			input.ReferenceID, input.Description)
		if err != nil {
			return err
		}
		if err := repos.Entries().Save(ctx, entry); err != nil {
			return err
		}

		outstanding, err := repos.Entries().FindOutstandingReceivables(ctx, tenantID, input.ChannelID)
		if err != nil {
			return err
		}
		plan, err = s.allocator.Allocate(input.Amount, billing.TargetsFromEntries(outstanding))
		if err != nil {
			return err
		}

		paid, events, err = s.settle(ctx, repos, tenantID, ch, input.Amount, plan, outstanding)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, append(events, billing.NewPaymentRecordedEvent(entry, plan))...)
	s.logger.Info("payment recorded",
		zap.String("channel_id", input.ChannelID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("amount", input.Amount.String()),
		zap.String("allocated", plan.TotalAllocated.String()),
		zap.String("credit", plan.RemainingCredit.String()))

	return toPaymentResult(entry, plan, paid), nil
}

// PayStatementInput carries the fields for paying a specific statement. A
// zero Amount means "settle the statement": the outstanding amount is
// computed server side.
type PayStatementInput struct {
	Amount      decimal.Decimal
	ReferenceID string
	Description string
}

// PayStatement records a payment against a specific statement. The statement's
// own receivables are settled first; anything beyond them spills over to the
// channel's other outstanding receivables, and a final surplus becomes credit.
// When the statement ends up fully paid its last-contact timestamp is stamped,
// since settling it closes the conversation with the partner.
func (s *PaymentService) PayStatement(ctx context.Context, tenantID, statementID uuid.UUID, input PayStatementInput) (*PaymentResult, error) {
	now := time.Now()
	var (
		entry       *billing.LedgerEntry
		plan        *billing.AllocationPlan
		paid        []string
		events      []shared.DomainEvent
		amount      decimal.Decimal
		stale       bool
		staleNumber string
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		stmt, err := repos.Statements().FindByID(ctx, tenantID, statementID)
		if err != nil {
			return err
		}
		if stmt.Status == billing.StatementStatusPaid {
			return shared.NewDomainError("ALREADY_PAID", "Statement is already fully paid")
		}
		// a stale open status with nothing due: correct it and take no payment
		if stmt.AmountDue().LessThanOrEqual(decimal.Zero) {
			stmt.MarkPaid()
			if err := repos.Statements().SaveWithLock(ctx, stmt); err != nil {
				return err
			}
			events = shared.DrainEvents(stmt)
			stale = true
			staleNumber = stmt.StatementNumber
			return nil
		}

		amount = input.Amount
		if amount.IsZero() {
			amount = stmt.AmountDue()
		}

		ch, err := repos.Channels().FindByID(ctx, tenantID, stmt.ChannelID)
		if err != nil {
			return err
		}

		entry, err = billing.NewPaymentEntry(tenantID, stmt.ChannelID, amount,
			input.ReferenceID, input.Description)
		if err != nil {
			return err
		}
		if err := repos.Entries().Save(ctx, entry); err != nil {
			return err
		}

		outstanding, err := repos.Entries().FindOutstandingReceivables(ctx, tenantID, stmt.ChannelID)
		if err != nil {
			return err
		}
		plan, err = s.allocator.AllocateScoped(amount, statementID, billing.TargetsFromEntries(outstanding))
		if err != nil {
			return err
		}

		paid, events, err = s.settle(ctx, repos, tenantID, ch, amount, plan, outstanding)
		if err != nil {
			return err
		}

		settled, err := repos.Statements().FindByID(ctx, tenantID, statementID)
		if err != nil {
			return err
		}
		if settled.Status == billing.StatementStatusPaid {
			settled.MarkContacted(now)
			return repos.Statements().Save(ctx, settled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stale {
		s.publish(ctx, events...)
		s.logger.Warn("statement status self-healed to PAID",
			zap.String("statement_number", staleNumber))
		return &PaymentResult{
			TotalAllocated: decimal.Zero,
			CreditCreated:  decimal.Zero,
			Allocations:    []PaymentAllocationResponse{},
			StatementsPaid: []string{staleNumber},
			Message:        "Statement was already fully paid; status corrected",
		}, nil
	}

	s.publish(ctx, append(events, billing.NewPaymentRecordedEvent(entry, plan))...)
	s.logger.Info("statement payment recorded",
		zap.String("statement_id", statementID.String()),
		zap.String("amount", amount.String()),
		zap.String("allocated", plan.TotalAllocated.String()))

	return toPaymentResult(entry, plan, paid), nil
}

// settle applies an allocation plan: receivable remaining amounts, statement
// paid amounts and the channel's running balances, all within the caller's
// transaction. Returns the numbers of statements that became fully paid and
// the drained domain events to publish after commit.
func (s *PaymentService) settle(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	ch *billing.Channel,
	amount decimal.Decimal,
	plan *billing.AllocationPlan,
	outstanding []*billing.LedgerEntry,
) ([]string, []shared.DomainEvent, error) {
	byID := make(map[uuid.UUID]*billing.LedgerEntry, len(outstanding))
	for _, e := range outstanding {
		byID[e.ID] = e
	}

	billedPortion := decimal.Zero
	touched := make([]*billing.LedgerEntry, 0, len(plan.Allocations))
	for _, alloc := range plan.Allocations {
		e, ok := byID[alloc.EntryID]
		if !ok {
			return nil, nil, shared.NewDomainError("ALLOCATION_TARGET_MISSING", "Allocation references an unknown entry")
		}
		if err := e.ApplyAllocation(alloc.Amount); err != nil {
			return nil, nil, err
		}
		touched = append(touched, e)
		if alloc.StatementID != nil {
			billedPortion = billedPortion.Add(alloc.Amount)
		}
	}
	if len(touched) > 0 {
		if err := repos.Entries().SaveAll(ctx, touched); err != nil {
			return nil, nil, err
		}
	}

	var (
		paidNumbers []string
		events      []shared.DomainEvent
	)
	for stmtID, allocated := range plan.StatementAllocated() {
		stmt, err := repos.Statements().FindByID(ctx, tenantID, stmtID)
		if err != nil {
			return nil, nil, err
		}
		if err := stmt.RecordPayment(allocated); err != nil {
			return nil, nil, err
		}
		if err := repos.Statements().SaveWithLock(ctx, stmt); err != nil {
			return nil, nil, err
		}
		if stmt.Status == billing.StatementStatusPaid {
			paidNumbers = append(paidNumbers, stmt.StatementNumber)
		}
		events = append(events, shared.DrainEvents(stmt)...)
	}

	if err := ch.ApplyPayment(amount, billedPortion); err != nil {
		return nil, nil, err
	}
	if err := repos.Channels().SaveWithLock(ctx, ch); err != nil {
		return nil, nil, err
	}
	events = append(events, shared.DrainEvents(ch)...)

	return paidNumbers, events, nil
}

func toPaymentResult(entry *billing.LedgerEntry, plan *billing.AllocationPlan, paid []string) *PaymentResult {
	allocations := make([]PaymentAllocationResponse, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		allocations = append(allocations, PaymentAllocationResponse{
			EntryID:     a.EntryID,
			StatementID: a.StatementID,
			Amount:      a.Amount,
		})
	}
	return &PaymentResult{
		Entry:          ToLedgerEntryResponse(entry),
		TotalAllocated: plan.TotalAllocated,
		CreditCreated:  plan.RemainingCredit,
		Allocations:    allocations,
		StatementsPaid: paid,
	}
}

func (s *PaymentService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events", zap.Error(err))
	}
}
