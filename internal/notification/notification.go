package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindDepositConfirmed is emitted after a confirmed deposit.
	KindDepositConfirmed = "deposit.confirmed"
	// KindWithdrawConfirmed is emitted after a confirmed withdrawal.
	KindWithdrawConfirmed = "withdraw.confirmed"
	// KindPurchaseRecorded is emitted after a purchase is appended to the log.
	KindPurchaseRecorded = "purchase.recorded"
)

// Message describes a confirmed ledger event.
type Message struct {
	Kind    string    `json:"kind"`
	Account string    `json:"account"`
	Amount  int64     `json:"amount"`
	Label   string    `json:"label,omitempty"`
	Item    string    `json:"item,omitempty"`
	TxHash  string    `json:"tx_hash,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier delivers event notifications to downstream systems. Delivery is
// best effort and never changes the outcome of the operation that emitted it.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"account", message.Account,
		"amount", message.Amount,
		"item", message.Item,
		"tx_hash", message.TxHash,
	)
	return nil
}

// Fanout sends every message to each notifier, returning the first error.
type Fanout []Notifier

// Send delivers message to all notifiers.
func (f Fanout) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
