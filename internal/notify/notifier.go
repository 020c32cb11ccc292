// Package notify publishes withdrawal events to RabbitMQ. Publishing
// is best-effort: callers run it off the request path and only log
// failures, they never propagate them.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// WithdrawalEvent is the message consumed by the notification channel
// (staff chat / email relay).
type WithdrawalEvent struct {
	RequestID string          `json:"request_id"`
	UserEmail string          `json:"user_email"`
	Amount    decimal.Decimal `json:"amount"`
	Wallet    string          `json:"wallet"`
	Currency  string          `json:"currency"`
	Network   string          `json:"network,omitempty"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

type Publisher interface {
	WithdrawalEvent(ctx context.Context, ev WithdrawalEvent) error
	Close()
}

type EventProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &EventProducer{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *EventProducer) WithdrawalEvent(ctx context.Context, ev WithdrawalEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.channel.PublishWithContext(ctx, p.exchange, "withdrawal."+ev.Status, false, false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		})
}

func (p *EventProducer) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NopPublisher is used when the broker is unreachable at startup so
// the service still comes up; events are dropped with a warning.
type NopPublisher struct{}

func (NopPublisher) WithdrawalEvent(ctx context.Context, ev WithdrawalEvent) error {
	slog.Warn("notification skipped, no broker", "request_id", ev.RequestID, "status", ev.Status)
	return nil
}

func (NopPublisher) Close() {}
