package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes emails to the application log instead of sending them.
// This is the default for development and test environments.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a logging transport
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Deliver logs the email at info level
func (t *LogTransport) Deliver(ctx context.Context, email Email) error {
	t.logger.Info("billing email",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.Body),
	)
	return nil
}

// Close implements Transport
func (t *LogTransport) Close() error {
	return nil
}

var _ Transport = (*LogTransport)(nil)
