package worker

import (
	"context"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mailer"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Publisher — публикация follow-up сообщений и строк журнала (mq.Publisher).
type Publisher interface {
	PublishMessage(ctx context.Context, msgType mq.MessageType, payload mq.Payload) error
	PushLog(ctx context.Context, message string) error
}

// Host — API платформы (hostapi.Client).
type Host interface {
	GenerateSubdefs(ctx context.Context, req hostapi.SubdefRequest) ([]hostapi.Subdef, error)
	WriteMetadatas(ctx context.Context, req hostapi.MetadataRequest) error
	CreateRecord(ctx context.Context, req hostapi.RecordRequest) (*hostapi.RecordResult, error)
	BuildExportArchive(ctx context.Context, token string) (*hostapi.ExportArchive, error)
	PopulateIndex(ctx context.Context, req hostapi.IndexRequest) error
}

// LogJournal — журнал воркеров (repo.LogRepo).
type LogJournal interface {
	Append(ctx context.Context, message string) (*repo.LogEntry, error)
}

// CommitTracker — учёт ассетов коммита (repo.CommitRepo).
type CommitTracker interface {
	Register(ctx context.Context, commitID string, assets []string) error
	MarkDone(ctx context.Context, commitID, assetID string) (int, error)
	Delete(ctx context.Context, commitID string) error
}

// Mailer — отправка писем (mailer.SMTP).
type Mailer interface {
	Send(ctx context.Context, m mailer.Mail) error
}
