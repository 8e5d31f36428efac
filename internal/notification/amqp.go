package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig describes the mail exchange and the worker queue bound to it.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// bindingKey matches every mail kind.
const bindingKey = "mail.#"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes messages to a RabbitMQ topic exchange; a separate
// mail worker consumes and delivers them.
type AMQPDispatcher struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string

	mu sync.Mutex
}

var _ Dispatcher = (*AMQPDispatcher)(nil)

// NewAMQPDispatcher dials the broker and declares the exchange.
func NewAMQPDispatcher(cfg AMQPConfig) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPDispatcher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// Enqueue publishes msg as persistent JSON routed by its kind.
func (d *AMQPDispatcher) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := msg.Kind
	if key == "" {
		key = "mail.other"
	}

	// amqp channels are not safe for concurrent publishing
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ch.PublishWithContext(ctx, d.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (d *AMQPDispatcher) Close() error {
	if c, ok := d.ch.(*amqp.Channel); ok && c != nil {
		_ = c.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Consumer drains the mail queue into a Sender. Delivered messages are
// acked; undeliverable ones are nacked without requeue.
type Consumer struct {
	cfg    AMQPConfig
	sender Sender
	logger *slog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(cfg AMQPConfig, sender Sender, logger *slog.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, sender: sender, logger: logger}
}

// Connect declares the exchange and queue and binds them.
func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("%s: %w", step, err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, bindingKey, c.cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail("set qos", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// Run consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "pawfinder-mailworker", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	return c.drain(ctx, msgs)
}

func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("dropping malformed mail message", "routing_key", d.RoutingKey, "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		c.logger.Error("failed to deliver email", "kind", msg.Kind, "to", msg.To, "error", err)
		_ = d.Nack(false, false)
		return
	}
	c.logger.Info("email delivered", "kind", msg.Kind, "to", msg.To)
	_ = d.Ack(false)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
