package retry

import (
	"github.com/shaiso/Conveyor/internal/mq"
)

// Request — сигнал о временном сбое обработки.
type Request struct {
	// MessageType — тип исходного сообщения.
	MessageType mq.MessageType

	// Queue — очередь, из которой пришло сообщение.
	Queue mq.Queue

	// Payload — payload для повторной публикации (без count).
	Payload mq.Payload

	// Reason — человекочитаемая причина сбоя.
	Reason string

	// Attempt — номер следующей попытки (предыдущая + 1).
	Attempt int
}

// NewRequest создаёт Request для сообщения, чья попытка payload.Attempt() не удалась.
//
// Первый зафиксированный сбой даёт Attempt = 2.
func NewRequest(t mq.MessageType, queue mq.Queue, payload mq.Payload, reason string) Request {
	if payload == nil {
		payload = mq.Payload{}
	}
	return Request{
		MessageType: t,
		Queue:       queue,
		Payload:     payload,
		Reason:      reason,
		Attempt:     payload.Attempt() + 1,
	}
}

// Envelope возвращает сообщение для повторной публикации с count = Attempt.
func (r Request) Envelope() mq.Envelope {
	return mq.NewEnvelope(r.MessageType, r.Payload.WithAttempt(r.Attempt))
}
