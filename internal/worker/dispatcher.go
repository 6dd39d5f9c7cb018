package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Retrier планирует повторную публикацию.
type Retrier interface {
	Schedule(ctx context.Context, req retry.Request) error
}

// Dispatcher передаёт доставки воркерам.
type Dispatcher struct {
	registry *Registry
	retrier  Retrier
	logger   *slog.Logger
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Retrier  Retrier
	Logger   *slog.Logger
}

// NewDispatcher создаёт новый Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Dispatcher{
		registry: registry,
		retrier:  cfg.Retrier,
		logger:   logger,
	}
}

// Handle — mq.Handler.
//
// Ошибка возвращается только для структурных сбоев (неизвестный тип)
// и если не удалось запланировать повтор: тогда consumer делает nack.
func (d *Dispatcher) Handle(ctx context.Context, delivery *mq.Delivery) error {
	msgType := delivery.Envelope.MessageType

	w, err := d.registry.Resolve(msgType)
	if err != nil {
		return err
	}

	logger := telemetry.WithQueue(telemetry.WithMessageType(d.logger, string(msgType)), string(delivery.Queue))
	ctx = telemetry.WithLogger(ctx, logger)

	start := time.Now()
	outcome := w.Process(ctx, delivery.Envelope.Payload)
	telemetry.WorkerDuration.WithLabelValues(string(msgType)).Observe(time.Since(start).Seconds())

	if !outcome.Retry() {
		return nil
	}

	payload := outcome.Payload()
	if payload == nil {
		payload = delivery.Envelope.Payload
	}

	req := retry.NewRequest(msgType, delivery.Queue, payload, outcome.Reason())
	// Номер попытки считается от доставленного сообщения: воркер мог вернуть payload без count
	req.Attempt = delivery.Envelope.Payload.Attempt() + 1

	logger.Warn("worker requested retry",
		"attempt", req.Attempt,
		"reason", req.Reason,
	)

	if d.retrier == nil {
		logger.Error("no retrier configured, message dropped")
		return nil
	}

	return d.retrier.Schedule(ctx, req)
}
