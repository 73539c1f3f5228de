package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate. Events are collected
// on the aggregate and published after the owning transaction commits.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent supplies the identity, origin and timing fields of
// an event. Concrete events embed it and add their own payload.
type BaseDomainEvent struct {
	EventUUID  uuid.UUID `json:"id"`
	Name       string    `json:"type"`
	RecordedAt time.Time `json:"timestamp"`
	SourceID   uuid.UUID `json:"aggregate_id"`
	SourceType string    `json:"aggregate_type"`
	Tenant     uuid.UUID `json:"tenant_id"`
}

// NewBaseDomainEvent stamps a new event with a UUID and the current time.
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		EventUUID:  uuid.New(),
		Name:       eventType,
		RecordedAt: time.Now(),
		SourceID:   aggID,
		SourceType: aggType,
		Tenant:     tenantID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.EventUUID }
func (e *BaseDomainEvent) EventType() string      { return e.Name }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.RecordedAt }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.SourceID }
func (e *BaseDomainEvent) AggregateType() string  { return e.SourceType }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.Tenant }
