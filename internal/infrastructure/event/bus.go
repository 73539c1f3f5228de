package event

import (
	"context"
	"sync"

	"github.com/partnerbill/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Handler processes one domain event
type Handler func(ctx context.Context, event shared.DomainEvent) error

// Wildcard subscribes a handler to every event type
const Wildcard = "*"

// InMemoryEventBus implements shared.EventPublisher with synchronous
// in-process dispatch. Handlers run inline on the publisher's goroutine;
// a failing or panicking handler is logged and never fails the publish,
// since events fire after the owning transaction has committed.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event types.
// Use Wildcard to receive everything.
func (b *InMemoryEventBus) Subscribe(handler Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}
	b.logger.Debug("event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Publish dispatches events to all registered handlers
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		b.mu.RLock()
		handlers := append([]Handler{}, b.handlers[ev.EventType()]...)
		handlers = append(handlers, b.handlers[Wildcard]...)
		b.mu.RUnlock()

		for _, handler := range handlers {
			if err := b.dispatch(ctx, handler, ev); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler Handler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", ev.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler(ctx, ev)
}

// NewAuditLogHandler returns a wildcard handler that writes every billing
// event to the application log. This is the default subscriber; an outbound
// integration can register alongside it.
func NewAuditLogHandler(logger *zap.Logger) Handler {
	return func(ctx context.Context, ev shared.DomainEvent) error {
		logger.Info("domain event",
			zap.String("event_type", ev.EventType()),
			zap.String("aggregate_type", ev.AggregateType()),
			zap.String("aggregate_id", ev.AggregateID().String()),
			zap.String("tenant_id", ev.TenantID().String()),
			zap.Time("occurred_at", ev.OccurredAt()),
		)
		return nil
	}
}

// Ensure InMemoryEventBus implements EventPublisher
var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
