package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"marketplace/pkg/config"
	"marketplace/pkg/logger"

	amqp "github.com/streadway/amqp"
	"go.uber.org/multierr"
)

// OrderEventsQueue receives every order lifecycle event.
const OrderEventsQueue = "order_events"

// Order lifecycle event types.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
	EventOrderCanceled      = "order.canceled"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the JSON body published for order lifecycle changes.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	CustomerID    string    `json:"customer_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Total         string    `json:"total"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel amqpChannel
	// amqp channels are not safe for concurrent publishes.
	mu   sync.Mutex
	logg *logger.Logger
}

// NewClient connects to RabbitMQ, opens a channel and declares the order events queue.
func NewClient(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		OrderEventsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, multierr.Combine(
			fmt.Errorf("failed to declare %s: %w", OrderEventsQueue, err),
			ch.Close(),
			conn.Close(),
		)
	}

	logg.Info(ctx, "rabbitmq client connected and order_events declared")

	return &Client{
		conn:    conn,
		channel: ch,
		logg:    logg,
	}, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var err error
	if c.channel != nil {
		if closeErr := c.channel.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close channel: %w", closeErr))
		}
	}
	if c.conn != nil {
		if closeErr := c.conn.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close connection: %w", closeErr))
		}
	}
	return err
}

// PublishOrderEvent publishes a persistent JSON message to the order events queue.
func (c *Client) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	c.mu.Lock()
	err = c.channel.Publish(
		"",               // default exchange
		OrderEventsQueue, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	c.logg.Debug(c.logg.WithOrderNumber(ctx, event.OrderNumber), fmt.Sprintf("published %s", event.Type))
	return nil
}
