package infra

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

// AMQP holds the broker connection and the channel notifications publish on.
type AMQP struct {
	Conn    *amqp091.Connection
	Channel *amqp091.Channel
}

// Close releases the channel and the connection.
func (a *AMQP) Close() error {
	if a == nil {
		return nil
	}
	return errors.Join(a.Channel.Close(), a.Conn.Close())
}

// NewAMQP dials the broker. AMQP is optional: an empty url yields nil.
func NewAMQP(rawURL string) (*AMQP, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, nil
	}
	clean, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(clean)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return &AMQP{Conn: conn, Channel: ch}, nil
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", fmt.Errorf("amqp url scheme must be amqp or amqps, got %q", u.Scheme)
	}
	return clean, nil
}
