package notification

import (
	"context"
	"fmt"

	"github.com/partnerbill/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Email is a rendered message ready for delivery
type Email struct {
	To       string
	From     string
	FromName string
	Subject  string
	Body     string
}

// Transport delivers rendered emails. Implementations may be synchronous;
// the QueueNotifier in front of them keeps callers non-blocking.
type Transport interface {
	Deliver(ctx context.Context, email Email) error
	Close() error
}

// NewTransport creates a transport from configuration
func NewTransport(cfg config.NotificationConfig, logger *zap.Logger) (Transport, error) {
	switch cfg.Transport {
	case "log", "":
		return NewLogTransport(logger), nil
	case "amqp":
		return NewAMQPTransport(cfg.AMQPURL, cfg.AMQPQueue)
	default:
		return nil, fmt.Errorf("unknown notification transport %q", cfg.Transport)
	}
}
