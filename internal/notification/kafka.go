package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier writes notifications to a Kafka topic keyed by account, so
// events of one wallet stay ordered within a partition.
type KafkaNotifier struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewKafkaWriter builds a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaNotifier wraps writer.
func NewKafkaNotifier(writer MessageWriter, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, logger: logger}
}

// Send publishes the message as JSON with a kind header.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(message.Account),
		Value:   body,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(message.Kind)}},
		Time:    message.At,
	})
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("kafka publish failed", slog.String("kind", message.Kind), slog.Any("error", err))
		}
		return fmt.Errorf("publish %s: %w", message.Kind, err)
	}
	return nil
}
