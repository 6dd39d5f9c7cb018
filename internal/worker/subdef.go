package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// FileExists проверяет наличие сгенерированного файла.
type FileExists func(path string) bool

// fileExists — проверка по локальной ФС (общий том с платформой).
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SubdefWorker строит subdefs записи.
//
// Payload: recordId, databoxId, subdefName (опционально), status (опционально).
// Если хотя бы один файл не появился на диске, сообщение повторяется.
// После успешной генерации публикуется writeMetadatas для каждой subdef.
// Неопубликованные writeMetadatas повторяются с pendingMetadatas, без
// повторной генерации.
type SubdefWorker struct {
	host      Host
	publisher Publisher
	exists    FileExists
}

// NewSubdefWorker создаёт SubdefWorker. exists == nil — проверка через os.Stat.
func NewSubdefWorker(host Host, publisher Publisher, exists FileExists) *SubdefWorker {
	if exists == nil {
		exists = fileExists
	}
	return &SubdefWorker{host: host, publisher: publisher, exists: exists}
}

// Process генерирует subdefs.
func (w *SubdefWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	recordID, okRecord := payload.Int("recordId")
	databoxID, okDatabox := payload.Int("databoxId")
	if !okRecord || !okDatabox {
		logger.Warn("subdef message without recordId/databoxId, skipped")
		return Done()
	}

	if pending := payload.Strings(pendingMetadatasKey); len(pending) > 0 {
		return w.publishMetadatas(ctx, payload, recordID, databoxID, pending)
	}

	req := hostapi.SubdefRequest{DataboxID: databoxID, RecordID: recordID}
	if name := payload.String("subdefName"); name != "" {
		req.SubdefNames = []string{name}
	}

	subdefs, err := w.host.GenerateSubdefs(ctx, req)
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("Subdef generation failed: %v", err))
	}

	if len(req.SubdefNames) > 0 && len(subdefs) == 0 {
		return RetryLater(payload, "Subdef generation failed !")
	}

	for _, subdef := range subdefs {
		if !w.exists(subdef.Path) {
			logger.Warn("generated subdef is missing on disk", "subdef", subdef.Name, "path", subdef.Path)
			return RetryLater(payload, "Subdef generation failed !")
		}
	}

	names := make([]string, 0, len(subdefs))
	for _, subdef := range subdefs {
		names = append(names, subdef.Name)
	}
	if out := w.publishMetadatas(ctx, payload, recordID, databoxID, names); out.Retry() {
		return out
	}

	logger.Info("subdefs generated",
		"record_id", recordID,
		"databox_id", databoxID,
		"count", len(subdefs),
	)
	return Done()
}

// pendingMetadatasKey — subdefs, для которых writeMetadatas ещё не опубликован.
const pendingMetadatasKey = "pendingMetadatas"

// publishMetadatas публикует writeMetadatas для каждой subdef.
// Неудачные публикации повторяются отдельным сообщением.
func (w *SubdefWorker) publishMetadatas(ctx context.Context, payload mq.Payload, recordID, databoxID int64, names []string) Outcome {
	logger := telemetry.FromContext(ctx)

	var failed []string
	for _, name := range names {
		next := mq.Payload{
			"recordId":   recordID,
			"databoxId":  databoxID,
			"subdefName": name,
		}
		if err := w.publisher.PublishMessage(ctx, mq.MessageTypeWriteMetadatas, next); err != nil {
			logger.Error("failed to publish writeMetadatas", "subdef", name, "error", err)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		rest := payload.Clone()
		rest[pendingMetadatasKey] = failed
		return RetryLater(rest, fmt.Sprintf("%d writeMetadatas messages not published", len(failed)))
	}
	return Done()
}
