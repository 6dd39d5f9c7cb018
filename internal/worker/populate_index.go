package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// PopulateIndexWorker заполняет поисковый индекс одного databox.
type PopulateIndexWorker struct {
	host Host
}

// NewPopulateIndexWorker создаёт PopulateIndexWorker.
func NewPopulateIndexWorker(host Host) *PopulateIndexWorker {
	return &PopulateIndexWorker{host: host}
}

// Process заполняет индекс. Payload: databoxId, indexName (опционально).
func (w *PopulateIndexWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	databoxID, ok := payload.Int("databoxId")
	if !ok {
		logger.Warn("populateIndex message without databoxId, skipped")
		return Done()
	}

	err := w.host.PopulateIndex(ctx, hostapi.IndexRequest{
		DataboxID: databoxID,
		IndexName: payload.String("indexName"),
	})
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("populate index failed: %v", err))
	}

	logger.Info("index populated", "databox_id", databoxID)
	return Done()
}
