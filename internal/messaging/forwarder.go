package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the part of *amqp.Channel the forwarder uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// Forwarder copies domain events to a RabbitMQ topic exchange. The event type
// is the routing key.
type Forwarder struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *slog.Logger
}

func Dial(url, exchange string, logger *slog.Logger) (*Forwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	f := newForwarder(ch, exchange, logger)
	f.conn = conn
	return f, nil
}

func newForwarder(ch channel, exchange string, logger *slog.Logger) *Forwarder {
	return &Forwarder{ch: ch, exchange: exchange, logger: logger}
}

// Attach subscribes the forwarder to every event on bus.
func (f *Forwarder) Attach(bus *events.EventBus) {
	bus.Subscribe(events.Wildcard, f.Handle)
}

func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(envelope{
		ID:         event.EventID(),
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Data:       event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = f.ch.PublishWithContext(ctx, f.exchange, event.EventType(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID(),
		Timestamp:    event.OccurredAt(),
		Type:         event.EventType(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.EventID(), err)
	}
	f.logger.Debug("event forwarded", "event_type", event.EventType(), "event_id", event.EventID())
	return nil
}

func (f *Forwarder) Close() error {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
