package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// AssetsIngestWorker принимает коммит сервиса загрузки.
//
// Payload: commit_id, assets ([]string), base_url, token, storyId (опционально).
// Список ассетов коммита сохраняется, затем на каждый ассет публикуется
// createRecord. Неопубликованные ассеты повторяются отдельным сообщением.
type AssetsIngestWorker struct {
	commits   CommitTracker
	publisher Publisher
}

// NewAssetsIngestWorker создаёт AssetsIngestWorker.
func NewAssetsIngestWorker(commits CommitTracker, publisher Publisher) *AssetsIngestWorker {
	return &AssetsIngestWorker{commits: commits, publisher: publisher}
}

// Process регистрирует коммит и рассылает createRecord.
func (w *AssetsIngestWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	commitID := payload.String("commit_id")
	assets := payload.Strings("assets")
	if commitID == "" || len(assets) == 0 {
		logger.Warn("newAssets message without commit_id/assets, skipped")
		return Done()
	}

	// Повтор после частичной рассылки: коммит уже зарегистрирован
	if err := w.commits.Register(ctx, commitID, assets); err != nil && !errors.Is(err, repo.ErrAlreadyExists) {
		return RetryLater(payload, fmt.Sprintf("register commit failed: %v", err))
	}

	var failed []string
	for _, asset := range assets {
		next := mq.Payload{
			"commit_id":  commitID,
			"asset":      asset,
			"base_url":   payload.String("base_url"),
			"assetToken": payload.String("token"),
		}
		if storyID, ok := payload.Int("storyId"); ok {
			next["storyId"] = storyID
		}

		if err := w.publisher.PublishMessage(ctx, mq.MessageTypeCreateRecord, next); err != nil {
			logger.Error("failed to publish createRecord", "commit_id", commitID, "asset", asset, "error", err)
			failed = append(failed, asset)
		}
	}

	if len(failed) > 0 {
		rest := payload.Clone()
		rest["assets"] = failed
		return RetryLater(rest, fmt.Sprintf("%d createRecord messages not published", len(failed)))
	}

	logger.Info("commit ingested", "commit_id", commitID, "assets", len(assets))
	return Done()
}
