package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the consistency boundary of the domain model. It
// versions itself for optimistic locking and buffers domain events
// until a publisher drains them.
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot implements the version and event bookkeeping of
// AggregateRoot.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	pending []DomainEvent
}

// NewBaseAggregateRoot starts a new aggregate at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// GetVersion returns the version used for optimistic locking.
func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// IncrementVersion bumps the optimistic-lock version.
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent buffers an event for publication after commit.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the buffered, not yet published events.
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// ClearDomainEvents drops the buffered events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// TenantAggregateRoot scopes an aggregate to a tenant. Every billing
// aggregate embeds it; repositories filter on TenantID in every query.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID
}

// NewTenantAggregateRoot starts a tenant-scoped aggregate at version 1.
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		TenantID:          tenantID,
	}
}
