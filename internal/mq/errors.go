package mq

import "errors"

// Ошибки очередей.
var (
	// ErrConnectionClosed — соединение закрыто, операции больше невозможны.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrUnknownMessageType — тип сообщения не входит в зарегистрированный набор.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrUnknownQueue — очередь не входит в топологию.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrMalformedEnvelope — тело сообщения не является корректным envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrPublish — не удалось передать сообщение брокеру.
	ErrPublish = errors.New("publish failed")

	// ErrDeliveriesClosed — брокер закрыл поток доставок.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")

	// ErrWorkerPanic — обработчик сообщения упал с паникой.
	ErrWorkerPanic = errors.New("handler panicked")
)
