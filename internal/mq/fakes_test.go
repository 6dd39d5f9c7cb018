package mq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

// --- fake broker ---

type published struct {
	Exchange   string
	RoutingKey string
	Msg        amqp.Publishing
}

type declaredQueue struct {
	Name string
	Args amqp.Table
}

// fakeBroker записывает всё, что уходит в брокер через все каналы.
type fakeBroker struct {
	mu         sync.Mutex
	exchanges  []string
	queues     []declaredQueue
	bindings   map[string]string
	published  []published
	consumers  map[string]string
	deliveries map[string]chan amqp.Delivery
	publishErr error
	channels   []*fakeChannel
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		bindings:   make(map[string]string),
		consumers:  make(map[string]string),
		deliveries: make(map[string]chan amqp.Delivery),
	}
}

// queue возвращает канал доставок для очереди, создавая его при необходимости.
func (b *fakeBroker) queue(name Queue) chan amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.deliveries[string(name)]
	if !ok {
		ch = make(chan amqp.Delivery, 16)
		b.deliveries[string(name)] = ch
	}
	return ch
}

func (b *fakeBroker) publishedTo(key Queue) []published {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []published
	for _, p := range b.published {
		if p.RoutingKey == string(key) {
			out = append(out, p)
		}
	}
	return out
}

func (b *fakeBroker) declareCount(name Queue) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, q := range b.queues {
		if q.Name == string(name) {
			n++
		}
	}
	return n
}

func (b *fakeBroker) queueArgs(name Queue) amqp.Table {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queues {
		if q.Name == string(name) {
			return q.Args
		}
	}
	return nil
}

func (b *fakeBroker) consumedQueues() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.consumers))
	for q := range b.consumers {
		out = append(out, q)
	}
	return out
}

type fakeConnection struct {
	broker *fakeBroker

	mu          sync.Mutex
	closed      bool
	closeCalls  int
	notifyClose chan *amqp.Error
}

func (c *fakeConnection) Channel() (amqpChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &fakeChannel{broker: c.broker}
	c.broker.mu.Lock()
	c.broker.channels = append(c.broker.channels, ch)
	c.broker.mu.Unlock()
	return ch, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyClose = receiver
	return receiver
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	return nil
}

// dropByBroker имитирует закрытие соединения брокером.
func (c *fakeConnection) dropByBroker() {
	c.mu.Lock()
	c.closed = true
	notify := c.notifyClose
	c.mu.Unlock()

	if notify != nil {
		notify <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"}
		close(notify)
	}
}

type fakeChannel struct {
	broker *fakeBroker

	mu     sync.Mutex
	closed bool
	qos    int
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.broker.exchanges = append(ch.broker.exchanges, name)
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.broker.queues = append(ch.broker.queues, declaredQueue{Name: name, Args: args})
	return amqp.Queue{Name: name}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.broker.bindings[name] = key
	return nil
}

func (ch *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.qos = prefetchCount
	return nil
}

func (ch *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("auto-ack is not expected")
	}
	deliveries := ch.broker.queue(Queue(queue))

	ch.broker.mu.Lock()
	ch.broker.consumers[queue] = consumer
	ch.broker.mu.Unlock()

	return deliveries, nil
}

func (ch *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.broker.publishErr != nil {
		return ch.broker.publishErr
	}
	ch.broker.published = append(ch.broker.published, published{
		Exchange:   exchange,
		RoutingKey: key,
		Msg:        msg,
	})
	return nil
}

func (ch *fakeChannel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	ch.closed = true
	return nil
}

// --- acknowledger ---

// fakeAcker записывает ack/nack по delivery tag.
type fakeAcker struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	requeued []uint64
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	if requeue {
		a.requeued = append(a.requeued, tag)
	}
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) snapshot() (acked, nacked, requeued []uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...), append([]uint64(nil), a.nacked...), append([]uint64(nil), a.requeued...)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConnection(t *testing.T, topology Topology) (*Connection, *fakeConnection) {
	t.Helper()

	fake := &fakeConnection{broker: newFakeBroker()}
	conn, err := newConnection(DefaultServerConfig(), topology, discardLogger(), func(string) (amqpConnection, error) {
		return fake, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, fake
}

func delivery(acker amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  tag,
		Body:         []byte(body),
	}
}
