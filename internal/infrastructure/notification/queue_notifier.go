package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const deliverTimeout = 15 * time.Second

// QueueNotifier implements billing.Notifier with a buffered queue and a
// single delivery worker. Send never blocks the caller: when the queue is
// full the request is dropped with a warning rather than stalling statement
// generation or the reminder pass.
type QueueNotifier struct {
	transport Transport
	fromName  string
	fromEmail string
	queue     chan billing.EmailRequest
	logger    *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewQueueNotifier creates a notifier and starts its delivery worker
func NewQueueNotifier(transport Transport, cfg config.NotificationConfig, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}

	n := &QueueNotifier{
		transport: transport,
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
		queue:     make(chan billing.EmailRequest, size),
		logger:    logger,
	}

	n.wg.Add(1)
	go n.run()

	return n
}

// Send enqueues an email request for asynchronous delivery
func (n *QueueNotifier) Send(ctx context.Context, req billing.EmailRequest) error {
	if !req.Kind.IsValid() {
		return fmt.Errorf("invalid notification kind %q", req.Kind)
	}
	if req.Recipient == "" {
		return fmt.Errorf("notification for channel %s has no recipient", req.ChannelID)
	}

	select {
	case n.queue <- req:
		return nil
	default:
		n.logger.Warn("notification queue full, dropping email",
			zap.String("kind", req.Kind.String()),
			zap.String("recipient", req.Recipient),
			zap.String("statement_number", req.StatementNumber),
		)
		return nil
	}
}

// Close stops accepting requests, drains the queue, and closes the transport
func (n *QueueNotifier) Close() error {
	n.closeOnce.Do(func() {
		close(n.queue)
	})
	n.wg.Wait()
	return n.transport.Close()
}

func (n *QueueNotifier) run() {
	defer n.wg.Done()

	for req := range n.queue {
		n.deliver(req)
	}
}

func (n *QueueNotifier) deliver(req billing.EmailRequest) {
	subject, body, err := Render(req)
	if err != nil {
		n.logger.Error("failed to render billing email",
			zap.String("kind", req.Kind.String()),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	err = n.transport.Deliver(ctx, Email{
		To:       req.Recipient,
		From:     n.fromEmail,
		FromName: n.fromName,
		Subject:  subject,
		Body:     body,
	})
	if err != nil {
		n.logger.Error("failed to deliver billing email",
			zap.String("kind", req.Kind.String()),
			zap.String("recipient", req.Recipient),
			zap.String("statement_number", req.StatementNumber),
			zap.Error(err),
		)
		return
	}

	n.logger.Debug("billing email delivered",
		zap.String("kind", req.Kind.String()),
		zap.String("recipient", req.Recipient),
	)
}

var _ billing.Notifier = (*QueueNotifier)(nil)
