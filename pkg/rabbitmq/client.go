package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

var (
	errURLRequired          = errors.New("rabbitmq url is required")
	errExchangeRequired     = errors.New("rabbitmq exchange is required")
	errClientNotInitialized = errors.New("rabbitmq client not initialized")
)

// Client publishes to and consumes from a single fanout exchange. Every
// consumer gets its own exclusive auto-delete queue so each process sees
// every message.
type Client struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// New dials the broker and declares the durable fanout exchange.
func New(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	exchange, err := validate(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "exchange", exchange), "rabbitmq connection established")
	}

	return &Client{conn: conn, ch: ch, exchange: exchange}, nil
}

func validate(cfg config.RabbitMQConfig) (string, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return "", errURLRequired
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return "", errExchangeRequired
	}
	return exchange, nil
}

// Publish sends a persistent JSON message to the exchange.
func (c *Client) Publish(ctx context.Context, body []byte, headers map[string]any) error {
	if c == nil || c.ch == nil {
		return errClientNotInitialized
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.PublishWithContext(ctx, c.exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Headers:      amqp.Table(headers),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Consume binds a fresh exclusive queue to the exchange and streams its
// deliveries. The channel closes when ctx ends or the connection drops.
func (c *Client) Consume(ctx context.Context, consumer string) (<-chan amqp.Delivery, error) {
	if c == nil || c.ch == nil {
		return nil, errClientNotInitialized
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %q: %w", q.Name, err)
	}
	return c.ch.ConsumeWithContext(ctx, q.Name, consumer, true, true, false, false, nil)
}

// IsAlive reports whether the connection and channel are still open.
func (c *Client) IsAlive() bool {
	if c == nil || c.conn == nil || c.ch == nil {
		return false
	}
	return !c.conn.IsClosed() && !c.ch.IsClosed()
}

// Ping lets the readiness check cover the broker.
func (c *Client) Ping(context.Context) error {
	if !c.IsAlive() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.ch != nil && !c.ch.IsClosed() {
		if err := c.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
