// Package amqp moves classifier feedback through RabbitMQ so a separate
// worker can deliver it.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finsight/internal/classifier"
	"finsight/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *log.Logger
}

// NewClient dials the broker and declares the direct exchange, the
// durable queue and their binding.
func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}

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
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

// NewClientWithRetry retries connection failures with exponential backoff
// until attempts are exhausted or ctx is done.
func NewClientWithRetry(ctx context.Context, url, exchangeName, queueName string, attempts int, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		client, err := NewClient(url, exchangeName, queueName, logger)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if !isConnectionError(err) {
			return nil, err
		}

		wait := exponentialBackoff(attempt)
		logger.Warn("AMQP connection failed, retrying",
			"attempt", attempt+1,
			"retry_in", wait,
			log.FieldError, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to AMQP after %d attempts: %w", attempts, lastErr)
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
		c.queueName,    // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishFeedback publishes a persistent feedback message.
func (c *Client) PublishFeedback(ctx context.Context, fb classifier.Feedback) error {
	body, err := NewFeedbackMessage(fb).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
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
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.Debug("Published classifier feedback",
		log.FieldCategory, fb.CorrectCategorySlug,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Dispatch implements classifier.Dispatcher. The broker, not the
// classifier, is awaited; the publish is detached from request cancellation.
func (c *Client) Dispatch(ctx context.Context, fb classifier.Feedback) error {
	return c.PublishFeedback(context.WithoutCancel(ctx), fb)
}

// ConsumeFeedback hands every message to handler until ctx is done.
func (c *Client) ConsumeFeedback(ctx context.Context, handler func(context.Context, *FeedbackMessage) error) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("Started consuming classifier feedback", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks on success. Malformed messages are dropped; failed
// deliveries are requeued once and dropped on the second failure.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *FeedbackMessage) error) {
	msg, err := FeedbackMessageFromJSON(d.Body)
	if err != nil {
		c.logger.Error("Dropping malformed feedback message", log.FieldError, err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("Failed to deliver classifier feedback",
			log.FieldCategory, msg.CorrectCategorySlug,
			"requeue", requeue,
			log.FieldError, err)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
	c.logger.Debug("Classifier feedback delivered", log.FieldCategory, msg.CorrectCategorySlug)
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

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "dial", "broken pipe", "no such host", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
