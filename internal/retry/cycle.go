package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Publisher — часть mq.Publisher, нужная циклу повторов.
type Publisher interface {
	Publish(ctx context.Context, env mq.Envelope, queue mq.Queue) error
	PublishDelayed(ctx context.Context, env mq.Envelope, queue mq.Queue, delay time.Duration) error
}

// Cycle публикует повторные сообщения по Policy.
type Cycle struct {
	publisher Publisher
	policy    Policy
	logger    *slog.Logger
}

// NewCycle создаёт новый Cycle.
func NewCycle(publisher Publisher, policy Policy, logger *slog.Logger) *Cycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cycle{
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// Policy возвращает политику цикла.
func (c *Cycle) Policy() Policy {
	return c.policy
}

// Schedule публикует новое сообщение для запроса повтора.
//
// Ошибка публикации возвращается вызывающему: исходное сообщение тогда
// получает nack, иначе оно было бы потеряно.
func (c *Cycle) Schedule(ctx context.Context, req Request) error {
	queue := req.Queue
	if queue == "" {
		q, err := req.MessageType.Queue()
		if err != nil {
			return err
		}
		queue = q
	}

	env := req.Envelope()

	if c.policy.Exhausted(req.Attempt) {
		if err := c.publisher.Publish(ctx, env, mq.QueueDeadLetter); err != nil {
			return fmt.Errorf("park exhausted message: %w", err)
		}
		telemetry.DeadLettered.WithLabelValues(string(req.MessageType)).Inc()

		c.logger.Warn("retry attempts exhausted",
			"type", req.MessageType,
			"queue", queue,
			"attempt", req.Attempt,
			"max_attempts", c.policy.MaxAttempts,
			"reason", req.Reason,
		)
		return nil
	}

	delay := c.policy.Delay(req.MessageType, req.Attempt)

	if err := c.publisher.PublishDelayed(ctx, env, queue, delay); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	telemetry.RetriesScheduled.WithLabelValues(string(req.MessageType)).Inc()

	c.logger.Info("retry scheduled",
		"type", req.MessageType,
		"queue", queue,
		"attempt", req.Attempt,
		"delay", delay,
		"reason", req.Reason,
	)
	return nil
}
