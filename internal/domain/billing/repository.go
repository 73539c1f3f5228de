package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ChannelFilter defines filtering options for channel queries
type ChannelFilter struct {
	shared.Filter
	Status     *ChannelStatus
	Type       *ChannelType
	Search     string // matches code or name
	MinBalance *decimal.Decimal
}

// ChannelRepository defines the interface for channel persistence
type ChannelRepository interface {
	// FindByID finds a channel by ID for a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Channel, error)

	// FindByCode finds a channel by its unique code for a tenant
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Channel, error)

	// FindAll finds channels for a tenant with filtering and pagination
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ChannelFilter) (*shared.Paginated[*Channel], error)

	// FindActive finds all active channels for a tenant, unpaginated.
	// Used by the statement and reminder passes.
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]*Channel, error)

	// Save creates or updates a channel
	Save(ctx context.Context, ch *Channel) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, ch *Channel) error

	// Delete soft deletes a channel for a tenant
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// LedgerEntryFilter defines filtering options for ledger entry queries
type LedgerEntryFilter struct {
	shared.Filter
	ChannelID   *uuid.UUID
	Type        *EntryType
	Status      *EntryStatus
	StatementID *uuid.UUID
	OrderID     *uuid.UUID
	FromDate    *time.Time
	ToDate      *time.Time
}

// LedgerEntryRepository defines the interface for ledger entry persistence
type LedgerEntryRepository interface {
	// FindByID finds a ledger entry by ID for a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*LedgerEntry, error)

	// FindAll finds ledger entries for a tenant with filtering and pagination
	FindAll(ctx context.Context, tenantID uuid.UUID, filter LedgerEntryFilter) (*shared.Paginated[*LedgerEntry], error)

	// FindByChannel finds all entries for a channel ordered oldest first
	FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*LedgerEntry, error)

	// FindUnbilledReceivables finds receivable entries for a channel that are
	// not yet attached to any statement, oldest first
	FindUnbilledReceivables(ctx context.Context, tenantID, channelID uuid.UUID) ([]*LedgerEntry, error)

	// FindOutstandingReceivables finds receivable entries for a channel with a
	// positive remaining amount, oldest first
	FindOutstandingReceivables(ctx context.Context, tenantID, channelID uuid.UUID) ([]*LedgerEntry, error)

	// CountUnbilledReceivables counts a channel's receivable entries not yet
	// attached to any statement
	CountUnbilledReceivables(ctx context.Context, tenantID, channelID uuid.UUID) (int64, error)

	// Save creates or updates a ledger entry
	Save(ctx context.Context, entry *LedgerEntry) error

	// SaveAll persists a batch of entries in one call
	SaveAll(ctx context.Context, entries []*LedgerEntry) error
}

// StatementFilter defines filtering options for statement queries
type StatementFilter struct {
	shared.Filter
	ChannelID *uuid.UUID
	Status    *StatementStatus
	FromDate  *time.Time
	ToDate    *time.Time
	DueBefore *time.Time
}

// StatementRepository defines the interface for statement persistence
type StatementRepository interface {
	// FindByID finds a statement by ID for a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Statement, error)

	// FindByNumber finds a statement by its number for a tenant
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Statement, error)

	// FindAll finds statements for a tenant with filtering and pagination
	FindAll(ctx context.Context, tenantID uuid.UUID, filter StatementFilter) (*shared.Paginated[*Statement], error)

	// FindOpenByChannel finds a channel's statements that are not fully paid,
	// oldest first
	FindOpenByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*Statement, error)

	// FindOpen finds all open statements for a tenant, oldest first.
	// Drives the reminder pass.
	FindOpen(ctx context.Context, tenantID uuid.UUID) ([]*Statement, error)

	// FindByChannel finds all statements for a channel, newest first
	FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*Statement, error)

	// NextStatementNumber generates the next statement number for the day
	NextStatementNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error)

	// Save creates or updates a statement
	Save(ctx context.Context, s *Statement) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, s *Statement) error
}

// StatementConfigRepository defines the interface for billing policy persistence
type StatementConfigRepository interface {
	// FindByChannel finds the config for a channel, nil if none exists
	FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*StatementConfig, error)

	// Save creates or updates a config
	Save(ctx context.Context, cfg *StatementConfig) error

	// Delete removes a channel's config so defaults apply again
	Delete(ctx context.Context, tenantID, channelID uuid.UUID) error
}
