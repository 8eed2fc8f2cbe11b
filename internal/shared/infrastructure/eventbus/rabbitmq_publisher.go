package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange compliance events are published to.
const DefaultExchange = "coachpay.compliance.events"

const appID = "coachpay"

// RabbitMQPublisher relays outbox messages to a durable topic exchange.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewRabbitMQPublisher dials url and declares the exchange. An empty
// exchange selects DefaultExchange.
func NewRabbitMQPublisher(url, exchange string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// Durable so queued events survive a broker restart.
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	logger.Info("RabbitMQ publisher connected", "exchange", exchange)
	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends payload as a persistent message. The envelope's event id
// becomes the AMQP message id so consumers can drop redeliveries.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	msg := newPublishing(routingKey, payload, time.Now())

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish message", "routing_key", routingKey, "error", err)
		return err
	}
	p.logger.DebugContext(ctx, "message published", "routing_key", routingKey, "message_id", msg.MessageId, "size", len(payload))
	return nil
}

func newPublishing(routingKey string, payload []byte, now time.Time) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		AppId:        appID,
		Type:         routingKey,
		Body:         payload,
	}
	if event, err := DecodeEnvelope(routingKey, payload); err == nil {
		msg.MessageId = event.EventID.String()
		msg.Type = event.RoutingKey
	}
	return msg
}

// Ping fails once the broker connection or channel has closed.
func (p *RabbitMQPublisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.conn == nil || p.conn.IsClosed():
		return errors.New("rabbitmq connection closed")
	case p.channel == nil || p.channel.IsClosed():
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes the channel, then the connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return err
		}
	}
	p.logger.Info("RabbitMQ publisher closed")
	return nil
}
