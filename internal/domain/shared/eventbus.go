package shared

import "context"

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// DrainEvents collects and clears the pending events of the given aggregates.
// It is used by application services to publish events after a successful commit.
func DrainEvents(aggregates ...AggregateRoot) []DomainEvent {
	var events []DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	return events
}
