package billing

import (
	"context"

	"github.com/partnerbill/backend/internal/domain/billing"
)

// TransactionScope provides transactional access to billing repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all billing repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
//
// Every flow that touches both a channel's running balances and its ledger
// entries (receivables, payments, statement generation) must run inside one
// scope so the denormalized balances never diverge from the entries.
type TransactionalRepositories interface {
	// Channels returns the channel repository scoped to the current transaction
	Channels() billing.ChannelRepository
	// Entries returns the ledger entry repository scoped to the current transaction
	Entries() billing.LedgerEntryRepository
	// Statements returns the statement repository scoped to the current transaction
	Statements() billing.StatementRepository
	// Configs returns the statement config repository scoped to the current transaction
	Configs() billing.StatementConfigRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests backed by plain repositories.
type NoOpTransactionScope struct {
	channelRepo   billing.ChannelRepository
	entryRepo     billing.LedgerEntryRepository
	statementRepo billing.StatementRepository
	configRepo    billing.StatementConfigRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	channelRepo billing.ChannelRepository,
	entryRepo billing.LedgerEntryRepository,
	statementRepo billing.StatementRepository,
	configRepo billing.StatementConfigRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		channelRepo:   channelRepo,
		entryRepo:     entryRepo,
		statementRepo: statementRepo,
		configRepo:    configRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Channels returns the channel repository.
func (s *NoOpTransactionScope) Channels() billing.ChannelRepository {
	return s.channelRepo
}

// Entries returns the ledger entry repository.
func (s *NoOpTransactionScope) Entries() billing.LedgerEntryRepository {
	return s.entryRepo
}

// Statements returns the statement repository.
func (s *NoOpTransactionScope) Statements() billing.StatementRepository {
	return s.statementRepo
}

// Configs returns the statement config repository.
func (s *NoOpTransactionScope) Configs() billing.StatementConfigRepository {
	return s.configRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
