package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась (сообщение будет nack).
type Handler func(ctx context.Context, d *Delivery) error

// LogPusher — публикация строки журнала в logs-queue.
type LogPusher interface {
	PushLog(ctx context.Context, message string) error
}

// Delivery — доставленное сообщение.
type Delivery struct {
	// Queue — очередь, из которой пришло сообщение.
	Queue Queue

	// Envelope — распарсенное сообщение.
	Envelope Envelope

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Consumer потребляет сообщения из набора очередей на одном канале.
//
// Все очереди обслуживаются одним циклом: доставки обрабатываются
// последовательно, пула воркеров внутри нет. Таймаута на обработку
// тоже нет — зависший обработчик останавливает весь канал.
type Consumer struct {
	ch       *Channel
	logger   *slog.Logger
	queues   []Queue
	handler  Handler
	logs     LogPusher
	prefetch int

	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queues — очереди для потребления. Пусто — все очереди по умолчанию.
	Queues []Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Logs — куда отправлять сводку об успешной обработке (опционально).
	Logs LogPusher

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(ch *Channel, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	queues := cfg.Queues
	if len(queues) == 0 {
		queues = DefaultQueues()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		ch:       ch,
		logger:   logger,
		queues:   queues,
		handler:  cfg.Handler,
		logs:     cfg.Logs,
		prefetch: prefetch,
	}
}

// Queues возвращает очереди, к которым привязан consumer.
func (c *Consumer) Queues() []Queue {
	return c.queues
}

// Start привязывает обработчик к очередям и обрабатывает доставки
// до отмены ctx или закрытия потока доставок брокером.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer cancel()

	if err := c.ch.Qos(c.prefetch); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	merged, err := c.bind(ctx)
	if err != nil {
		return err
	}

	c.logger.Info("consumer started", "queues", c.queues, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-merged:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrDeliveriesClosed
			}

			c.handleDelivery(ctx, d.queue, d.raw)
		}
	}
}

// queuedDelivery — доставка с именем очереди-источника.
type queuedDelivery struct {
	queue Queue
	raw   amqp.Delivery
}

// bind начинает потребление каждой очереди со свежим consumer tag
// и сводит все потоки в один канал.
func (c *Consumer) bind(ctx context.Context) (<-chan queuedDelivery, error) {
	merged := make(chan queuedDelivery)
	var wg sync.WaitGroup

	for _, queue := range c.queues {
		tag := uuid.New().String()

		deliveries, err := c.ch.Consume(queue, tag)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("queue bound", "queue", queue, "consumer_tag", tag)

		wg.Add(1)
		go func(queue Queue, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for raw := range deliveries {
				select {
				case merged <- queuedDelivery{queue: queue, raw: raw}:
				case <-ctx.Done():
					return
				}
			}
		}(queue, deliveries)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged, nil
}

// handleDelivery обрабатывает одно сообщение: decode → handler → ack/nack.
func (c *Consumer) handleDelivery(ctx context.Context, queue Queue, raw amqp.Delivery) {
	env, err := DecodeEnvelope(raw.Body)
	if err != nil {
		c.logger.Error("failed to decode message",
			"queue", queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Битое сообщение не повторяем
		c.nack(queue, raw)
		return
	}

	delivery := &Delivery{
		Queue:    queue,
		Envelope: env,
		Raw:      raw,
	}

	c.logger.Debug("received message",
		"queue", queue,
		"message_id", raw.MessageId,
		"type", env.MessageType,
	)

	if err := c.invoke(ctx, delivery); err != nil {
		c.logger.Error("handler failed",
			"queue", queue,
			"message_id", raw.MessageId,
			"type", env.MessageType,
			"error", err,
		)
		// Без requeue: дальше решает политика брокера (DLX, если настроен)
		c.nack(queue, raw)
		return
	}

	if err := raw.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "queue", queue, "error", err)
		return
	}
	telemetry.DeliveriesHandled.WithLabelValues(string(queue), telemetry.OutcomeAck).Inc()

	// Сообщения журнала не журналируются повторно
	if env.MessageType != MessageTypeLogs && c.logs != nil {
		if err := c.logs.PushLog(ctx, summary(env)); err != nil {
			c.logger.Warn("failed to push consume log", "queue", queue, "error", err)
		}
	}
}

// invoke вызывает handler, превращая панику в ошибку.
func (c *Consumer) invoke(ctx context.Context, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic recovered",
				"queue", d.Queue,
				"type", d.Envelope.MessageType,
				"error", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()

	if c.handler == nil {
		return errors.New("no handler configured")
	}
	return c.handler(ctx, d)
}

func (c *Consumer) nack(queue Queue, raw amqp.Delivery) {
	if err := raw.Nack(false, false); err != nil {
		c.logger.Error("failed to nack message", "queue", queue, "error", err)
		return
	}
	telemetry.DeliveriesHandled.WithLabelValues(string(queue), telemetry.OutcomeNack).Inc()
}

// Stop останавливает consumer.
// Вызов до Start ничего не делает.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// summary — строка журнала об обработанном сообщении.
func summary(env Envelope) string {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	return fmt.Sprintf("%s consumed >> payload: %s", env.MessageType, payload)
}
