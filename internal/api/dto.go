package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Message DTOs

// PublishMessageRequest — запрос на публикацию сообщения.
type PublishMessageRequest struct {
	MessageType mq.MessageType `json:"message_type"`
	Payload     mq.Payload     `json:"payload,omitempty"`
	// Queue — очередь назначения. Пусто — очередь по умолчанию для типа.
	Queue mq.Queue `json:"queue,omitempty"`
}

// PublishMessageResponse — ответ о принятом сообщении.
type PublishMessageResponse struct {
	MessageType mq.MessageType `json:"message_type"`
	Queue       mq.Queue       `json:"queue"`
}

// PushLogRequest — запрос на запись строки журнала.
type PushLogRequest struct {
	Message string `json:"message"`
}

// Log DTOs

// LogEntryResponse — строка журнала воркеров.
type LogEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LogEntryFromRepo конвертирует repo.LogEntry в LogEntryResponse.
func LogEntryFromRepo(e repo.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:        e.ID,
		Message:   e.Message,
		CreatedAt: e.CreatedAt,
	}
}

// Queue DTOs

// QueueResponse — очередь топологии.
type QueueResponse struct {
	Name         mq.Queue         `json:"name"`
	RoutingKey   string           `json:"routing_key"`
	DelayQueue   mq.Queue         `json:"delay_queue"`
	MessageTypes []mq.MessageType `json:"message_types"`
}

// TopologyResponse — обменник и его очереди.
type TopologyResponse struct {
	Exchange   string          `json:"exchange"`
	Queues     []QueueResponse `json:"queues"`
	DeadLetter *mq.Queue       `json:"dead_letter,omitempty"`
}

// TopologyFromMQ описывает топологию для ответа API и CLI.
func TopologyFromMQ(t mq.Topology) TopologyResponse {
	types := make(map[mq.Queue][]mq.MessageType)
	for _, mt := range mq.MessageTypes() {
		q, _ := mt.Queue()
		types[q] = append(types[q], mt)
	}

	resp := TopologyResponse{Exchange: t.ExchangeName()}
	for _, q := range mq.DefaultQueues() {
		resp.Queues = append(resp.Queues, QueueResponse{
			Name:         q,
			RoutingKey:   string(q),
			DelayQueue:   q.Delay(),
			MessageTypes: types[q],
		})
	}
	if t.DeadLetter {
		dl := mq.QueueDeadLetter
		resp.DeadLetter = &dl
	}
	return resp
}
