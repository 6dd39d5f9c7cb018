package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// maxBodySize — ограничение тела запроса публикации.
const maxBodySize = 1 << 20

// PublishMessage публикует сообщение в очередь.
// POST /api/v1/messages
func (h *Handler) PublishMessage(w http.ResponseWriter, r *http.Request) {
	var req PublishMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.MessageType == "" {
		BadRequest(w, "message_type is required")
		return
	}

	queue, err := req.MessageType.Queue()
	if HandlePublishError(w, h.logger, err) {
		return
	}

	if name := strings.TrimSpace(string(req.Queue)); name != "" {
		queues, err := mq.ParseQueues([]string{name})
		if HandlePublishError(w, h.logger, err) {
			return
		}
		queue = queues[0]
	}

	env := mq.NewEnvelope(req.MessageType, req.Payload)
	if err := h.publisher.Publish(r.Context(), env, queue); HandlePublishError(w, h.logger, err) {
		return
	}

	telemetry.FromContext(r.Context()).Debug("message accepted",
		"type", req.MessageType,
		"queue", queue,
	)

	Accepted(w, PublishMessageResponse{MessageType: req.MessageType, Queue: queue})
}

// PushLog публикует строку журнала в logs-queue.
// POST /api/v1/logs
func (h *Handler) PushLog(w http.ResponseWriter, r *http.Request) {
	var req PushLogRequest
	if err := decodeBody(w, r, &req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		BadRequest(w, "message is required")
		return
	}

	if err := h.publisher.PushLog(r.Context(), req.Message); HandlePublishError(w, h.logger, err) {
		return
	}

	Accepted(w, PublishMessageResponse{MessageType: mq.MessageTypeLogs, Queue: mq.QueueLogs})
}

// ListLogs возвращает последние строки журнала воркеров.
// GET /api/v1/logs?limit=N
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		Unavailable(w, "log journal is not configured")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.journal.ListRecent(r.Context(), limit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	result := make([]LogEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = LogEntryFromRepo(e)
	}

	List(w, result, len(result))
}

// decodeBody разбирает JSON тело запроса, сохраняя целые числа payload без потерь.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
