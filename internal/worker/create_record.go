package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// CreateRecordWorker создаёт запись из ассета сервиса загрузки.
//
// Payload: base_url, asset, assetToken, commit_id, storyId (опционально).
//
// Шаги:
//  1. Информация об ассете и скачивание во временный файл (сбой → повтор)
//  2. Ассет вычёркивается из коммита; последний ассет подтверждает коммит
//  3. Платформа создаёт запись или помещает файл в карантин
type CreateRecordWorker struct {
	host       Host
	commits    CommitTracker
	publisher  Publisher
	httpClient *http.Client
	tempDir    string
}

// CreateRecordConfig — зависимости CreateRecordWorker.
type CreateRecordConfig struct {
	Host       Host
	Commits    CommitTracker
	Publisher  Publisher
	HTTPClient *http.Client // nil — клиент по умолчанию hostapi.NewUploader
	TempDir    string       // "" — os.TempDir()
}

// NewCreateRecordWorker создаёт CreateRecordWorker.
func NewCreateRecordWorker(cfg CreateRecordConfig) *CreateRecordWorker {
	return &CreateRecordWorker{
		host:       cfg.Host,
		commits:    cfg.Commits,
		publisher:  cfg.Publisher,
		httpClient: cfg.HTTPClient,
		tempDir:    cfg.TempDir,
	}
}

// Process скачивает ассет и создаёт запись.
func (w *CreateRecordWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	baseURL := payload.String("base_url")
	assetID := payload.String("asset")
	if baseURL == "" || assetID == "" {
		logger.Warn("createRecord message without base_url/asset, skipped")
		return Done()
	}

	uploader := hostapi.NewUploader(baseURL, payload.String("assetToken"), w.httpClient)

	asset, err := uploader.GetAsset(ctx, assetID)
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("Error when getting asset info: %v", err))
	}

	tmp, err := os.CreateTemp(w.tempDir, "download_*"+filepath.Ext(asset.OriginalName))
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("create temporary file: %v", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = uploader.Download(ctx, assetID, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		var se *hostapi.StatusError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("Error %d downloading %q", se.StatusCode, baseURL+"/assets/"+assetID+"/download")
			logger.Error(msg)
			return RetryLater(payload, msg)
		}
		return RetryLater(payload, "Error when downloading assets!")
	}

	w.completeCommit(ctx, uploader, payload.String("commit_id"), assetID)

	baseID, ok := collectionDestination(asset.FormData)
	if !ok {
		w.pushLog(ctx, "The collection_destination is not defined")
		return Done()
	}

	req := hostapi.RecordRequest{
		FilePath:     tmpPath,
		OriginalName: asset.OriginalName,
		BaseID:       baseID,
		FormData:     asset.FormData,
	}
	if storyID, ok := payload.Int("storyId"); ok {
		req.StoryID = &storyID
	}

	result, err := w.host.CreateRecord(ctx, req)
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("create record failed: %v", err))
	}

	if result.Quarantined {
		reasons, _ := json.Marshal(result.Reasons)
		w.pushLog(ctx, fmt.Sprintf("The file was moved to the quarantine: %s", reasons))
		return Done()
	}

	logger.Info("record created",
		"asset", assetID,
		"record_id", result.RecordID,
		"databox_id", result.DataboxID,
	)
	return Done()
}

// completeCommit вычёркивает ассет и подтверждает коммит, если ассетов не осталось.
// Ошибки только журналируются: запись всё равно создаётся.
func (w *CreateRecordWorker) completeCommit(ctx context.Context, uploader *hostapi.Uploader, commitID, assetID string) {
	if commitID == "" || w.commits == nil {
		return
	}
	logger := telemetry.FromContext(ctx)

	remaining, err := w.commits.MarkDone(ctx, commitID, assetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("commit is not registered", "commit_id", commitID)
		} else {
			logger.Error("failed to update commit assets", "commit_id", commitID, "error", err)
		}
		return
	}

	if remaining > 0 {
		return
	}

	if err := uploader.AckCommit(ctx, commitID); err != nil {
		logger.Error("failed to ack commit", "commit_id", commitID, "error", err)
		return
	}
	logger.Info("commit acknowledged", "commit_id", commitID)

	if err := w.commits.Delete(ctx, commitID); err != nil {
		logger.Warn("failed to delete commit", "commit_id", commitID, "error", err)
	}
}

func (w *CreateRecordWorker) pushLog(ctx context.Context, message string) {
	telemetry.FromContext(ctx).Warn(message)
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PushLog(ctx, message); err != nil {
		telemetry.FromContext(ctx).Warn("failed to push log", "error", err)
	}
}

// collectionDestination извлекает base_id из formData.
func collectionDestination(formData map[string]any) (int64, bool) {
	switch v := formData["collection_destination"].(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	case float64:
		return int64(v), v == float64(int64(v))
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	}
	return 0, false
}
