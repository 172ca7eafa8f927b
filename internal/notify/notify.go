package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderCancelled     = "order.cancelled"
	PaymentCreated     = "payment.created"
	PaymentCompleted   = "payment.completed"
	PaymentFailed      = "payment.failed"
)

type Event struct {
	Type       string     `json:"type"`
	OrderID    uuid.UUID  `json:"order_id"`
	PaymentID  *uuid.UUID `json:"payment_id,omitempty"`
	UserID     uuid.UUID  `json:"user_id"`
	Status     string     `json:"status,omitempty"`
	Message    string     `json:"message,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Sender delivers one event. Implementations return transport errors as-is.
type Sender interface {
	Send(ctx context.Context, e Event) error
}

// Notifier is what the services call. It never fails.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaSender struct {
	w messageWriter
}

func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (k *KafkaSender) Send(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (k *KafkaSender) Close() error {
	return k.w.Close()
}

type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }

// BestEffort sends through Sender and logs failures instead of returning them.
// The send is detached from the caller's cancellation and bounded by Timeout.
type BestEffort struct {
	Sender  Sender
	Timeout time.Duration
}

func NewBestEffort(s Sender, timeout time.Duration) *BestEffort {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &BestEffort{Sender: s, Timeout: timeout}
}

func (b *BestEffort) Notify(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.Timeout)
	defer cancel()

	if err := b.Sender.Send(sendCtx, e); err != nil {
		logging.FromContext(ctx).Warn("notify_failed",
			"event", e.Type,
			"order_id", e.OrderID,
			"error", err,
		)
	}
}
