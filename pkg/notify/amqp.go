package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Dial opens a connection and channel and declares a durable queue.
func Dial(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return conn, ch, nil
}

// Publisher writes notification messages to a queue on the default exchange.
type Publisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

// NewPublisher constructs a publisher.
func NewPublisher(ch Channel, queue string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{ch: ch, queue: queue, timeout: timeout}
}

// Publish sends msg as persistent JSON.
func (p *Publisher) Publish(ctx context.Context, msg models.NotificationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, "", p.queue, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(msg.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

// Envelope is a received notification whose data is decoded by type.
type Envelope struct {
	Type models.NotificationType `json:"type"`
	To   string                  `json:"to"`
	Data json.RawMessage         `json:"data"`
}

// DeliveryHandler processes one decoded envelope.
type DeliveryHandler func(ctx context.Context, env Envelope) error

// Consumer acknowledges deliveries according to the handler result:
// undecodable messages are dropped, handler failures are requeued once.
type Consumer struct {
	deliveries <-chan amqp.Delivery
	handle     DeliveryHandler
	logger     *zap.Logger
}

// NewConsumer wraps a delivery channel.
func NewConsumer(deliveries <-chan amqp.Delivery, handle DeliveryHandler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{deliveries: deliveries, handle: handle, logger: logger}
}

// Run blocks until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-c.deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, delivery)
		}
	}
}

func (c *Consumer) process(ctx context.Context, delivery amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		c.logger.Error("drop undecodable notification", zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}
	if err := c.handle(ctx, env); err != nil {
		requeue := !delivery.Redelivered
		c.logger.Error("notification handling failed",
			zap.String("type", string(env.Type)),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		_ = delivery.Nack(false, requeue)
		return
	}
	_ = delivery.Ack(false)
}
