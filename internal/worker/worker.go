package worker

import (
	"context"

	"github.com/shaiso/Conveyor/internal/mq"
)

// Worker обрабатывает payload одного типа сообщений.
//
// Экземпляр создаётся фабрикой на каждое сообщение и не хранит
// состояния между вызовами. Долгоживущие зависимости (HTTP-клиенты,
// репозитории) захватываются замыканием фабрики.
type Worker interface {
	Process(ctx context.Context, payload mq.Payload) Outcome
}

// Factory создаёт Worker.
type Factory func() Worker

// Outcome — результат обработки.
type Outcome struct {
	retry   bool
	payload mq.Payload
	reason  string
}

// Done — сообщение обработано.
func Done() Outcome {
	return Outcome{}
}

// RetryLater — временный сбой, payload нужно опубликовать повторно.
//
// payload может отличаться от исходного (например, содержать только
// неотправленные адреса). Счётчик попыток выставляет цикл повторов.
func RetryLater(payload mq.Payload, reason string) Outcome {
	return Outcome{retry: true, payload: payload, reason: reason}
}

// Retry проверяет, запрошен ли повтор.
func (o Outcome) Retry() bool { return o.retry }

// Payload возвращает payload для повтора.
func (o Outcome) Payload() mq.Payload { return o.payload }

// Reason возвращает причину повтора.
func (o Outcome) Reason() string { return o.reason }
