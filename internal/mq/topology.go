package mq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue — тип для имени очереди.
type Queue string

// DefaultExchange — имя обменника по умолчанию.
const DefaultExchange = "conveyor"

// Очереди по умолчанию. Каждая привязана к обменнику ключом, равным своему имени.
const (
	QueueExport        Queue = "export-queue"
	QueueSubdef        Queue = "subdef-queue"
	QueueMetadatas     Queue = "metadatas-queue"
	QueueLogs          Queue = "logs-queue"
	QueueWebhook       Queue = "webhook-queue"
	QueueAssetsIngest  Queue = "assets-ingest"
	QueueCreateRecord  Queue = "createrecord-queue"
	QueuePopulateIndex Queue = "populate-index-queue"
)

// QueueDeadLetter — очередь для сообщений, исчерпавших попытки (и nack, если включено).
const QueueDeadLetter Queue = "dead-letter-queue"

// delaySuffix — суффикс очереди отложенной повторной публикации.
const delaySuffix = ".delay"

// DefaultQueues возвращает фиксированный набор рабочих очередей.
func DefaultQueues() []Queue {
	return []Queue{
		QueueExport,
		QueueSubdef,
		QueueMetadatas,
		QueueLogs,
		QueueWebhook,
		QueueAssetsIngest,
		QueueCreateRecord,
		QueuePopulateIndex,
	}
}

// IsDefault проверяет, что очередь входит в набор по умолчанию.
func (q Queue) IsDefault() bool {
	for _, d := range DefaultQueues() {
		if q == d {
			return true
		}
	}
	return false
}

// Delay возвращает имя очереди задержки для рабочей очереди.
func (q Queue) Delay() Queue {
	return q + delaySuffix
}

// delayTarget возвращает рабочую очередь для очереди задержки.
func (q Queue) delayTarget() (Queue, bool) {
	name, ok := strings.CutSuffix(string(q), delaySuffix)
	if !ok {
		return "", false
	}
	target := Queue(name)
	return target, target.IsDefault()
}

// ParseQueues проверяет имена очередей.
// Пустой список означает все очереди по умолчанию.
func ParseQueues(names []string) ([]Queue, error) {
	if len(names) == 0 {
		return DefaultQueues(), nil
	}

	seen := make(map[Queue]bool, len(names))
	queues := make([]Queue, 0, len(names))
	for _, name := range names {
		q := Queue(strings.TrimSpace(name))
		if q == "" {
			continue
		}
		if !q.IsDefault() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
		}
		if seen[q] {
			continue
		}
		seen[q] = true
		queues = append(queues, q)
	}

	if len(queues) == 0 {
		return DefaultQueues(), nil
	}
	return queues, nil
}

// Topology — параметры объявления обменника и очередей.
type Topology struct {
	// Exchange — имя direct-обменника.
	Exchange string

	// DeadLetter — рабочие очереди объявляются с x-dead-letter-exchange,
	// и nack отправляет сообщение в QueueDeadLetter вместо удаления.
	DeadLetter bool
}

// DefaultTopology возвращает топологию по умолчанию.
func DefaultTopology() Topology {
	return Topology{Exchange: DefaultExchange}
}

// ExchangeName возвращает имя обменника с учётом значения по умолчанию.
func (t Topology) ExchangeName() string {
	return t.exchange()
}

func (t Topology) exchange() string {
	if t.Exchange == "" {
		return DefaultExchange
	}
	return t.Exchange
}

// declareExchange создаёт обменник.
func (t Topology) declareExchange(ch amqpChannel) error {
	err := ch.ExchangeDeclare(
		t.exchange(), // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.exchange(), err)
	}
	return nil
}

// queueArgs возвращает аргументы объявления очереди.
func (t Topology) queueArgs(q Queue) amqp.Table {
	if target, ok := q.delayTarget(); ok {
		// Истёкшее сообщение уходит обратно в рабочую очередь
		return amqp.Table{
			"x-dead-letter-exchange":    t.exchange(),
			"x-dead-letter-routing-key": string(target),
		}
	}

	if t.DeadLetter && q.IsDefault() {
		return amqp.Table{
			"x-dead-letter-exchange":    t.exchange(),
			"x-dead-letter-routing-key": string(QueueDeadLetter),
		}
	}

	return nil
}

// declareQueue создаёт durable очередь и привязывает её к обменнику по имени.
func (t Topology) declareQueue(ch amqpChannel, q Queue) error {
	_, err := ch.QueueDeclare(
		string(q),      // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		t.queueArgs(q), // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", q, err)
	}

	err = ch.QueueBind(
		string(q),    // queue name
		string(q),    // routing key
		t.exchange(), // exchange
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", q, t.exchange(), err)
	}

	return nil
}

// Info возвращает описание топологии для логирования и CLI.
func (t Topology) Info() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (direct)\n", t.exchange())
	for _, q := range DefaultQueues() {
		fmt.Fprintf(&b, "├── %s [routing: %s]\n", q, q)
		fmt.Fprintf(&b, "│       retry: %s\n", q.Delay())
	}
	fmt.Fprintf(&b, "└── %s [routing: %s]\n", QueueDeadLetter, QueueDeadLetter)

	return b.String()
}
