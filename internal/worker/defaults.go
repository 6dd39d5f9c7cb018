package worker

import (
	"fmt"
	"net/http"

	"github.com/shaiso/Conveyor/internal/mq"
)

// Deps — зависимости набора воркеров по умолчанию.
type Deps struct {
	Host      Host
	Publisher Publisher
	Commits   CommitTracker
	Mailer    Mailer

	// Journal — журнал logs-queue в БД (опционально).
	Journal LogJournal

	// HTTPClient — клиент для вебхуков и сервиса загрузки (опционально).
	HTTPClient *http.Client

	// TempDir — каталог для скачанных ассетов (опционально).
	TempDir string

	// FileExists — проверка сгенерированных subdefs (опционально).
	FileExists FileExists
}

// NewDefaultRegistry регистрирует воркер для каждого типа сообщения.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	switch {
	case deps.Host == nil:
		return nil, fmt.Errorf("%w: host", ErrMissingDependency)
	case deps.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", ErrMissingDependency)
	case deps.Commits == nil:
		return nil, fmt.Errorf("%w: commits", ErrMissingDependency)
	case deps.Mailer == nil:
		return nil, fmt.Errorf("%w: mailer", ErrMissingDependency)
	}

	r := NewRegistry()

	factories := map[mq.MessageType]Factory{
		mq.MessageTypeLogs: func() Worker {
			return NewLogWorker(deps.Journal)
		},
		mq.MessageTypeSubdefCreation: func() Worker {
			return NewSubdefWorker(deps.Host, deps.Publisher, deps.FileExists)
		},
		mq.MessageTypeWriteMetadatas: func() Worker {
			return NewMetadataWorker(deps.Host)
		},
		mq.MessageTypeAssetsIngest: func() Worker {
			return NewAssetsIngestWorker(deps.Commits, deps.Publisher)
		},
		mq.MessageTypeCreateRecord: func() Worker {
			return NewCreateRecordWorker(CreateRecordConfig{
				Host:       deps.Host,
				Commits:    deps.Commits,
				Publisher:  deps.Publisher,
				HTTPClient: deps.HTTPClient,
				TempDir:    deps.TempDir,
			})
		},
		mq.MessageTypeExportMail: func() Worker {
			return NewExportMailWorker(deps.Host, deps.Mailer, deps.Publisher)
		},
		mq.MessageTypeWebhook: func() Worker {
			return NewWebhookWorker(deps.HTTPClient)
		},
		mq.MessageTypePopulateIndex: func() Worker {
			return NewPopulateIndexWorker(deps.Host)
		},
	}

	for _, t := range mq.MessageTypes() {
		if err := r.Register(t, factories[t]); err != nil {
			return nil, err
		}
	}

	return r, nil
}
