package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxHTTPTimeout     = 10 * time.Minute
)

// WebhookWorker доставляет событие на URL подписчика.
//
// Payload:
//   - url (string): адрес подписчика (обязательно)
//   - event (string): имя события
//   - data (any): данные события
//   - headers (map[string]any): дополнительные заголовки
//   - timeout_sec (number): таймаут запроса. Default: 30, максимум 600
//
// Сетевая ошибка или ответ вне 2xx — повтор.
type WebhookWorker struct {
	client *http.Client
}

// NewWebhookWorker создаёт WebhookWorker. client == nil — http.Client без таймаута
// (таймаут задаётся через контекст).
func NewWebhookWorker(client *http.Client) *WebhookWorker {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookWorker{client: client}
}

// Process отправляет POST с телом {"event": ..., "data": ...}.
func (w *WebhookWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	logger := telemetry.FromContext(ctx)

	url := payload.String("url")
	if url == "" {
		logger.Warn("webhook message without url, skipped")
		return Done()
	}

	ctx, cancel := context.WithTimeout(ctx, getTimeout(payload))
	defer cancel()

	bodyBytes, err := json.Marshal(map[string]any{
		"event": payload.String("event"),
		"data":  payload["data"],
	})
	if err != nil {
		logger.Error("failed to marshal webhook body", "error", err)
		return Done()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		logger.Error("invalid webhook url", "url", url, "error", err)
		return Done()
	}

	setHeaders(req, payload)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return RetryLater(payload, fmt.Sprintf("webhook request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RetryLater(payload, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	logger.Info("webhook delivered", "url", url, "event", payload.String("event"), "status_code", resp.StatusCode)
	return Done()
}

// getTimeout извлекает таймаут из payload. Значения больше maxHTTPTimeout
// ограничиваются им.
func getTimeout(payload mq.Payload) time.Duration {
	var sec float64
	switch v := payload["timeout_sec"].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return defaultHTTPTimeout
		}
		sec = f
	case float64:
		sec = v
	case int:
		sec = float64(v)
	default:
		return defaultHTTPTimeout
	}

	if !(sec > 0) {
		return defaultHTTPTimeout
	}
	if sec >= maxHTTPTimeout.Seconds() {
		return maxHTTPTimeout
	}
	return time.Duration(sec * float64(time.Second))
}

// setHeaders устанавливает заголовки из payload.
func setHeaders(req *http.Request, payload mq.Payload) {
	switch h := payload["headers"].(type) {
	case map[string]any:
		for key, val := range h {
			if s, ok := val.(string); ok {
				req.Header.Set(key, s)
			}
		}
	case map[string]string:
		for key, val := range h {
			req.Header.Set(key, val)
		}
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
