// Package rabbitmq provides the publisher client used to ship probe run
// reports to a broker. The client declares its own exchange/queue topology
// so published reports are not lost when no consumer is attached yet.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection and topology configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool

	QueueName       string
	QueueDurable    bool
	QueueAutoDelete bool
	QueueExclusive  bool

	RoutingKey string

	ConnectAttempts int
	ConnectInterval time.Duration
	ConnectTimeout  time.Duration
	Heartbeat       time.Duration

	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Client is a publish-only RabbitMQ client
type Client struct {
	config  *Config
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewClient connects to RabbitMQ and declares the topology. The context
// bounds the whole connect-with-retry sequence.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes the connection with retry logic
func (c *Client) connect(ctx context.Context) error {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectTimeout)
	}

	attempts := c.config.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			c.logger.Info("Successfully connected to RabbitMQ")
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.ConnectInterval):
			}
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)

	return nil
}

// setup declares exchange, queue, and the binding between them
func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,
		c.config.ExchangeType,
		c.config.ExchangeDurable,
		c.config.ExchangeAutoDelete,
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,
		c.config.QueueDurable,
		c.config.QueueAutoDelete,
		c.config.QueueExclusive,
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,
		c.config.RoutingKey,
		c.config.ExchangeName,
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish delivers a message with retry and exponential backoff. Waits
// between attempts are cut short when the context is cancelled.
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	retries := c.config.PublishRetries
	if retries < 0 {
		retries = 0
	}
	delay := c.config.PublishRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	mult := c.config.PublishBackoffMult
	if mult < 1 {
		mult = 2.0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		err := c.channel.PublishWithContext(
			ctx,
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  contentType,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.Int("body_size", len(body)),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}
		lastErr = err

		if attempt < retries {
			backoff := time.Duration(float64(delay) * math.Pow(mult, float64(attempt)))
			c.logger.Warn("Failed to publish message to RabbitMQ, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", retries),
				slog.Duration("retry_after", backoff),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("publish aborted: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", retries+1, lastErr)
}

// IsConnected reports whether the underlying connection is usable
func (c *Client) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Close closes the channel and connection
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}
