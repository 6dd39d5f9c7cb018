package mq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Publisher публикует envelopes в RabbitMQ.
//
// Publish возвращает nil, как только клиент принял сообщение: publisher
// confirms не включены, подтверждения от брокера не ждём.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует envelope в очередь queue (routing key = имя очереди).
func (p *Publisher) Publish(ctx context.Context, env Envelope, queue Queue) error {
	return p.publish(ctx, env, queue, queue, 0)
}

// PublishMessage публикует payload в очередь по умолчанию для типа.
func (p *Publisher) PublishMessage(ctx context.Context, msgType MessageType, payload Payload) error {
	queue, err := msgType.Queue()
	if err != nil {
		return err
	}
	return p.Publish(ctx, NewEnvelope(msgType, payload), queue)
}

// PushLog публикует строку журнала в logs-queue.
func (p *Publisher) PushLog(ctx context.Context, message string) error {
	env := NewEnvelope(MessageTypeLogs, Payload{"message": message})
	return p.Publish(ctx, env, QueueLogs)
}

// PublishDelayed публикует envelope в очередь задержки queue.
//
// Сообщение лежит в <queue>.delay с per-message TTL = delay и по истечении
// переотправляется брокером в queue. delay <= 0 — обычная публикация.
func (p *Publisher) PublishDelayed(ctx context.Context, env Envelope, queue Queue, delay time.Duration) error {
	if delay <= 0 {
		return p.Publish(ctx, env, queue)
	}
	return p.publish(ctx, env, queue, queue.Delay(), delay)
}

func (p *Publisher) publish(ctx context.Context, env Envelope, queue, routingKey Queue, delay time.Duration) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel(routingKey)
	if err != nil {
		telemetry.PublishFailures.WithLabelValues(string(queue)).Inc()
		return fmt.Errorf("%w: %s: %w", ErrPublish, routingKey, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
		Type:         string(env.MessageType),
		Body:         body,
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	if err := ch.Publish(ctx, routingKey, msg); err != nil {
		telemetry.PublishFailures.WithLabelValues(string(queue)).Inc()
		return fmt.Errorf("%w: %s: %w", ErrPublish, routingKey, err)
	}

	telemetry.MessagesPublished.WithLabelValues(string(routingKey)).Inc()

	p.logger.Debug("published message",
		"routing_key", routingKey,
		"message_id", msg.MessageId,
		"type", env.MessageType,
		"delay", delay,
	)

	return nil
}
