package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp091.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes messages to a RabbitMQ topic exchange using the
// message kind as routing key.
type AMQPNotifier struct {
	channel  Channel
	exchange string
	logger   *slog.Logger

	once       sync.Once
	declareErr error
}

// NewAMQPNotifier builds a notifier publishing to exchange on channel.
func NewAMQPNotifier(channel Channel, exchange string, logger *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{channel: channel, exchange: exchange, logger: logger}
}

// Send publishes the message as JSON.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	n.once.Do(func() {
		n.declareErr = n.channel.ExchangeDeclare(
			n.exchange, // name
			"topic",    // type
			true,       // durable
			false,      // autoDelete
			false,      // internal
			false,      // noWait
			nil,        // args
		)
	})
	if n.declareErr != nil {
		return fmt.Errorf("declare exchange %s: %w", n.exchange, n.declareErr)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = n.channel.PublishWithContext(ctx,
		n.exchange,   // exchange
		message.Kind, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("amqp publish failed", slog.String("exchange", n.exchange), slog.String("routing_key", message.Kind), slog.Any("error", err))
		}
		return fmt.Errorf("publish %s: %w", message.Kind, err)
	}
	return nil
}
