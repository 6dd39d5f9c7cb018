package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Conveyor/internal/mailer"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// defaultExportSubject — тема письма, если params.subject не задан.
const defaultExportSubject = "Your export is ready"

// ExportMailWorker рассылает письма со ссылкой на экспорт.
//
// Payload: tokenValue, destinationMails ([]string), emitterUserId,
// params {textmail, url, subject}.
//
// Некорректные адреса отбрасываются с записью в журнал. Если часть писем
// не ушла, повторяется сообщение только с этими адресами.
type ExportMailWorker struct {
	host      Host
	mailer    Mailer
	publisher Publisher
}

// NewExportMailWorker создаёт ExportMailWorker.
func NewExportMailWorker(host Host, m Mailer, publisher Publisher) *ExportMailWorker {
	return &ExportMailWorker{host: host, mailer: m, publisher: publisher}
}

// Process собирает архив и рассылает письма.
func (w *ExportMailWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	token := payload.String("tokenValue")
	destinations := payload.Strings("destinationMails")
	if token == "" || len(destinations) == 0 {
		logger.Warn("exportMail message without tokenValue/destinationMails, skipped")
		return Done()
	}

	archive, err := w.host.BuildExportArchive(ctx, token)
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("build export archive failed: %v", err))
	}

	params := payload.Map("params")
	subject := paramString(params, "subject")
	if subject == "" {
		subject = defaultExportSubject
	}
	body := exportBody(paramString(params, "textmail"), paramString(params, "url"), archive.ExpiresAt.Format("2006-01-02 15:04"))

	var remaining []string
	for _, dest := range destinations {
		to, err := mailer.ParseAddress(dest)
		if err != nil {
			w.pushLog(ctx, fmt.Sprintf("Export mail skipped, invalid address %q", dest))
			continue
		}

		err = w.mailer.Send(ctx, mailer.Mail{
			FromName: archive.SenderName,
			From:     archive.SenderMail,
			To:       to,
			Subject:  subject,
			Body:     body,
		})
		if err != nil {
			logger.Warn("export mail failed", "to", to, "error", err)
			remaining = append(remaining, dest)
		}
	}

	if len(remaining) > 0 {
		for _, dest := range remaining {
			w.pushLog(ctx, fmt.Sprintf("Export mail to %s failed", dest))
		}

		rest := payload.Clone()
		rest["destinationMails"] = remaining
		return RetryLater(rest, "some mails failed")
	}

	logger.Info("export mails sent", "token", token, "count", len(destinations))
	return Done()
}

func (w *ExportMailWorker) pushLog(ctx context.Context, message string) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PushLog(ctx, message); err != nil {
		telemetry.FromContext(ctx).Warn("failed to push log", "error", err)
	}
}

func paramString(params map[string]any, key string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}

// exportBody — текст письма: сообщение отправителя, ссылка и срок действия.
func exportBody(text, url, expires string) string {
	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	if url != "" {
		fmt.Fprintf(&b, "Download: %s\n", url)
	}
	if expires != "" && !strings.HasPrefix(expires, "0001-") {
		fmt.Fprintf(&b, "The link expires on %s.\n", expires)
	}
	return b.String()
}
