// Package events publishes and consumes expense change events over AMQP so
// external consumers (the export snapshot worker, other tooling) can react to
// mutations without polling the database.
package events

import (
	"context"
	"fmt"
	"log/slog"

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
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishExpenseCreated announces that the record with the given id was
// inserted.
func (c *Client) PublishExpenseCreated(ctx context.Context, id int64) error {
	return c.publish(ctx, NewExpenseChangeMessage(id, ChangeCreated))
}

// PublishExpenseDeleted announces that the record with the given id was
// removed.
func (c *Client) PublishExpenseDeleted(ctx context.Context, id int64) error {
	return c.publish(ctx, NewExpenseChangeMessage(id, ChangeDeleted))
}

func (c *Client) publish(ctx context.Context, msg *ExpenseChangeMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish change message: %w", err)
	}

	slog.DebugContext(ctx, "Change event published",
		"id", msg.ID,
		"action", string(msg.Action))
	return nil
}

// Consume delivers change messages to handler until ctx is done or the
// channel closes. A handler failure rejects the delivery without requeueing;
// nothing is retried automatically.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *ExpenseChangeMessage) error) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			msg, err := ExpenseChangeMessageFromJSON(d.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Malformed change message", "error", err)
				_ = d.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Change message handler failed",
					"id", msg.ID,
					"action", string(msg.Action),
					"error", err)
				_ = d.Nack(false, false)
				continue
			}

			_ = d.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close events client: %v", errs)
	}
	return nil
}
