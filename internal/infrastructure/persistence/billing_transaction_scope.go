package persistence

import (
	"context"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/partnerbill/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Channels returns the channel repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Channels() billing.ChannelRepository {
	return NewGormChannelRepository(r.tx)
}

// Entries returns the ledger entry repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Entries() billing.LedgerEntryRepository {
	return NewGormLedgerEntryRepository(r.tx)
}

// Statements returns the statement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Statements() billing.StatementRepository {
	return NewGormStatementRepository(r.tx)
}

// Configs returns the statement config repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Configs() billing.StatementConfigRepository {
	return NewGormStatementConfigRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appbilling.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
