package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPTransport publishes emails to a RabbitMQ queue for an external mailer
// to pick up. The queue is declared durable so messages survive broker
// restarts.
type AMQPTransport struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
}

// emailMessage is the wire form consumed by the mailer service
type emailMessage struct {
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	FromName string `json:"from_name,omitempty"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// NewAMQPTransport connects to the broker and declares the email queue
func NewAMQPTransport(amqpURL, queue string) (*AMQPTransport, error) {
	conn, err := amqp091.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	return &AMQPTransport{
		conn:    conn,
		channel: channel,
		queue:   queue,
	}, nil
}

// Deliver publishes the email as a JSON message to the queue
func (t *AMQPTransport) Deliver(ctx context.Context, email Email) error {
	body, err := json.Marshal(emailMessage{
		To:       email.To,
		From:     email.From,
		FromName: email.FromName,
		Subject:  email.Subject,
		Body:     email.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email message: %w", err)
	}

	err = t.channel.PublishWithContext(ctx,
		"",      // default exchange
		t.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish email message: %w", err)
	}
	return nil
}

// Close closes the channel and connection
func (t *AMQPTransport) Close() error {
	if t.channel != nil {
		t.channel.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

var _ Transport = (*AMQPTransport)(nil)
