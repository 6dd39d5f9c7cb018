package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Publisher — публикация сообщений в брокер.
type Publisher interface {
	Publish(ctx context.Context, env mq.Envelope, queue mq.Queue) error
	PushLog(ctx context.Context, message string) error
}

// LogJournal — чтение журнала воркеров.
type LogJournal interface {
	ListRecent(ctx context.Context, limit int) ([]repo.LogEntry, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	publisher Publisher
	journal   LogJournal
	topology  mq.Topology
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Publisher Publisher
	Journal   LogJournal // nil — GET /api/v1/logs отвечает 503
	Topology  mq.Topology
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		publisher: cfg.Publisher,
		journal:   cfg.Journal,
		topology:  cfg.Topology,
		logger:    logger,
	}
}
