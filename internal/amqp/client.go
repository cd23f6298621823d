// Package amqp publishes budget events to RabbitMQ so external
// consumers (reporting, notifications) can react to month and expense
// changes. Publishing is fire-and-forget from the caller's point of
// view: the service layer treats failures as log-worthy, not fatal.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishMonthEvent publishes a month lifecycle event.
func (c *Client) PublishMonthEvent(ctx context.Context, event, owner string, monthID int64, month time.Time) error {
	msg := NewMonthEventMessage(event, owner, monthID, month.Format("2006-01"))
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal month event: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return fmt.Errorf("publish month event: %w", err)
	}

	slog.InfoContext(ctx, "Published month event",
		"event", event,
		"month_id", monthID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishExpenseEvent publishes an expense mutation event.
func (c *Client) PublishExpenseEvent(ctx context.Context, event string, expenseID, monthID int64) error {
	msg := NewExpenseEventMessage(event, expenseID, monthID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal expense event: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return fmt.Errorf("publish expense event: %w", err)
	}

	slog.InfoContext(ctx, "Published expense event",
		"event", event,
		"expense_id", expenseID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeEvents delivers raw event bodies to the handler until the
// context is cancelled. Handler errors requeue the delivery.
func (c *Client) ConsumeEvents(ctx context.Context, handler func(ctx context.Context, body []byte) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming budget events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if err := handler(ctx, delivery.Body); err != nil {
				slog.ErrorContext(ctx, "Failed to handle event", "error", err)
				delivery.Nack(false, true) // reject and requeue
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
