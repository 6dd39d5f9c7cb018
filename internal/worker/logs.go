package worker

import (
	"context"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// LogWorker записывает строки журнала из logs-queue.
//
// Сбой записи в БД не повторяется: строка уже попала в лог процесса.
type LogWorker struct {
	journal LogJournal
}

// NewLogWorker создаёт LogWorker. journal может быть nil.
func NewLogWorker(journal LogJournal) *LogWorker {
	return &LogWorker{journal: journal}
}

// Process записывает payload.message.
func (w *LogWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)
	message := payload.String("message")

	logger.Info("worker log", "message", message)

	if w.journal == nil {
		return Done()
	}

	if _, err := w.journal.Append(ctx, message); err != nil {
		logger.Warn("failed to journal log line", "error", err)
	}
	return Done()
}
