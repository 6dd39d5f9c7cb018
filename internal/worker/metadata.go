package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// MetadataWorker записывает метаданные в файлы записи.
type MetadataWorker struct {
	host Host
}

// NewMetadataWorker создаёт MetadataWorker.
func NewMetadataWorker(host Host) *MetadataWorker {
	return &MetadataWorker{host: host}
}

// Process записывает метаданные. Payload: recordId, databoxId, subdefName.
func (w *MetadataWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	recordID, okRecord := payload.Int("recordId")
	databoxID, okDatabox := payload.Int("databoxId")
	if !okRecord || !okDatabox {
		logger.Warn("writeMetadatas message without recordId/databoxId, skipped")
		return Done()
	}

	err := w.host.WriteMetadatas(ctx, hostapi.MetadataRequest{
		DataboxID:  databoxID,
		RecordID:   recordID,
		SubdefName: payload.String("subdefName"),
	})
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("write metadatas failed: %v", err))
	}

	logger.Debug("metadatas written", "record_id", recordID, "subdef", payload.String("subdefName"))
	return Done()
}
