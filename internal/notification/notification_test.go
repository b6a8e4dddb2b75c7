package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"

	"github.com/congo-pay/coffee_atm/internal/logging"
)

type recordingChannel struct {
	declared  int
	declErr   error
	published []amqp091.Publishing
	keys      []string
}

func (c *recordingChannel) ExchangeDeclare(_, _ string, _, _, _, _ bool, _ amqp091.Table) error {
	c.declared++
	return c.declErr
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func TestAMQPNotifierPublishesJSON(t *testing.T) {
	ch := &recordingChannel{}
	n := NewAMQPNotifier(ch, "coffee_atm.events", logging.Discard())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := n.Send(ctx, Message{Kind: KindPurchaseRecorded, Account: "0xabc", Amount: 150, Item: "Brew Special"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if ch.declared != 1 {
		t.Fatalf("expected exchange declared once, got %d", ch.declared)
	}
	if len(ch.published) != 2 || ch.keys[0] != KindPurchaseRecorded {
		t.Fatalf("unexpected publications %v", ch.keys)
	}
	var decoded Message
	if err := json.Unmarshal(ch.published[0].Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Item != "Brew Special" || decoded.Amount != 150 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestAMQPNotifierDeclareFailure(t *testing.T) {
	ch := &recordingChannel{declErr: errors.New("channel closed")}
	n := NewAMQPNotifier(ch, "coffee_atm.events", logging.Discard())

	if err := n.Send(context.Background(), Message{Kind: KindDepositConfirmed}); err == nil {
		t.Fatal("expected declare error")
	}
	if len(ch.published) != 0 {
		t.Fatal("nothing must be published without an exchange")
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Send(context.Context, Message) error {
	f.calls++
	return errors.New("down")
}

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := &failingNotifier{}, &failingNotifier{}
	err := Fanout{a, nil, NewLoggerNotifier(logging.Discard()), b}.Send(context.Background(), Message{Kind: KindWithdrawConfirmed})
	if err == nil {
		t.Fatal("expected first error to be returned")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected every notifier called once, got %d and %d", a.calls, b.calls)
	}
}

type recordingWriter struct {
	messages []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestKafkaNotifierKeysByAccount(t *testing.T) {
	w := &recordingWriter{}
	n := NewKafkaNotifier(w, logging.Discard())

	err := n.Send(context.Background(), Message{Kind: KindDepositConfirmed, Account: "0xabc", Amount: 1000, TxHash: "0x01"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "0xabc" {
		t.Fatalf("expected account key, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != KindDepositConfirmed {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	var decoded Message
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Amount != 1000 || decoded.TxHash != "0x01" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}
