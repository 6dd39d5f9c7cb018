package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpConnection — часть *amqp.Connection, которой пользуется Connection.
type amqpConnection interface {
	Channel() (amqpChannel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// amqpChannel — часть *amqp.Channel, которой пользуются publisher и consumer.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc открывает AMQP соединение.
type dialFunc func(url string) (amqpConnection, error)

// amqpConn адаптирует *amqp.Connection к amqpConnection.
type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// Connection — единственное соединение процесса с RabbitMQ.
//
// Особенности:
//   - Ошибка подключения при старте фатальна, переподключения нет
//   - Общий канал для публикации защищён мьютексом
//   - Каждый consumer получает собственный канал через OpenChannel
//   - Close идемпотентен
type Connection struct {
	logger   *slog.Logger
	topology Topology

	mu     sync.Mutex
	conn   amqpConnection
	shared *Channel
	issued []*Channel

	closed   atomic.Bool
	closedCh chan struct{}
}

// NewConnection подключается к RabbitMQ и объявляет обменник.
func NewConnection(cfg ServerConfig, topology Topology, logger *slog.Logger) (*Connection, error) {
	return newConnection(cfg, topology, logger, dialAMQP)
}

func newConnection(cfg ServerConfig, topology Topology, logger *slog.Logger, dial dialFunc) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("dial amqp %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	c := &Connection{
		logger:   logger,
		topology: topology,
		conn:     conn,
		closedCh: make(chan struct{}),
	}

	shared, err := c.newChannel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := topology.declareExchange(shared.ch); err != nil {
		shared.ch.Close()
		conn.Close()
		return nil, err
	}
	c.shared = shared

	c.logger.Info("connected to RabbitMQ",
		"host", cfg.Host,
		"port", cfg.Port,
		"vhost", cfg.VHost,
		"exchange", topology.exchange(),
	)

	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	return c, nil
}

// watch помечает соединение закрытым, если его закрыл брокер.
func (c *Connection) watch(notifyClose chan *amqp.Error) {
	select {
	case <-c.closedCh:
		return
	case err, ok := <-notifyClose:
		if ok && err != nil {
			c.logger.Error("connection closed by broker", "error", err)
		}
	}

	c.markClosed()
}

// markClosed переводит соединение в закрытое состояние один раз.
func (c *Connection) markClosed() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.closedCh)
	}
}

// newChannel открывает новый AMQP канал. Требует c.mu, если c уже опубликован.
func (c *Connection) newChannel() (*Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	channel := &Channel{
		conn:     c,
		ch:       ch,
		declared: make(map[Queue]bool),
	}
	c.issued = append(c.issued, channel)
	return channel, nil
}

// Channel возвращает общий канал, на котором объявлена очередь queue.
//
// Очередь объявляется лениво при первом обращении, повторные вызовы
// с той же очередью не ходят к брокеру.
func (c *Connection) Channel(queue Queue) (*Channel, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	c.mu.Lock()
	shared := c.shared
	c.mu.Unlock()

	if err := shared.Declare(queue); err != nil {
		return nil, err
	}
	return shared, nil
}

// OpenChannel открывает выделенный канал (для consumer loop).
func (c *Connection) OpenChannel() (*Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.newChannel()
}

// Topology возвращает топологию соединения.
func (c *Connection) Topology() Topology {
	return c.topology
}

// Done закрывается, когда соединение закрыто (нами или брокером).
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// IsClosed проверяет, закрыто ли соединение.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close закрывает каналы и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	conn := c.conn
	issued := c.issued
	c.conn = nil
	c.issued = nil
	c.mu.Unlock()

	c.markClosed()

	if conn == nil {
		return nil
	}

	// Если соединение уже закрыл брокер, каналы закрыты вместе с ним
	if conn.IsClosed() {
		c.logger.Info("connection closed")
		return nil
	}

	var errs []error

	for _, ch := range issued {
		if err := ch.close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}

	if err := conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}

	c.logger.Info("connection closed")
	return nil
}

// Channel — AMQP канал с сериализованным доступом.
//
// amqp.Channel нельзя использовать из нескольких горутин без синхронизации,
// поэтому все операции идут под мьютексом.
type Channel struct {
	conn *Connection

	mu       sync.Mutex
	ch       amqpChannel
	declared map[Queue]bool
	closed   bool
}

// Declare объявляет очередь (и связанные с ней) один раз за жизнь канала.
func (ch *Channel) Declare(queue Queue) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err := ch.usable(); err != nil {
		return err
	}
	return ch.declare(queue)
}

// declare требует ch.mu.
func (ch *Channel) declare(queue Queue) error {
	if ch.declared[queue] {
		return nil
	}

	// Очередь задержки бесполезна без рабочей очереди, куда истекают сообщения
	if target, ok := queue.delayTarget(); ok {
		if err := ch.declare(target); err != nil {
			return err
		}
	} else if !queue.IsDefault() && queue != QueueDeadLetter {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}

	if ch.conn.topology.DeadLetter && queue.IsDefault() {
		if err := ch.declare(QueueDeadLetter); err != nil {
			return err
		}
	}

	if err := ch.conn.topology.declareQueue(ch.ch, queue); err != nil {
		return err
	}

	ch.declared[queue] = true
	return nil
}

// Publish отправляет сообщение в обменник соединения.
func (ch *Channel) Publish(ctx context.Context, routingKey Queue, msg amqp.Publishing) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err := ch.usable(); err != nil {
		return err
	}

	return ch.ch.PublishWithContext(
		ctx,
		ch.conn.topology.exchange(), // exchange
		string(routingKey),          // routing key
		false,                       // mandatory
		false,                       // immediate
		msg,
	)
}

// Qos устанавливает prefetch для канала.
func (ch *Channel) Qos(prefetch int) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err := ch.usable(); err != nil {
		return err
	}
	return ch.ch.Qos(prefetch, 0, false)
}

// Consume начинает потребление очереди с ручным подтверждением.
func (ch *Channel) Consume(queue Queue, consumerTag string) (<-chan amqp.Delivery, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err := ch.usable(); err != nil {
		return nil, err
	}
	if err := ch.declare(queue); err != nil {
		return nil, err
	}

	deliveries, err := ch.ch.Consume(
		string(queue), // queue
		consumerTag,   // consumer tag
		false,         // auto-ack (ack вручную)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, nil
}

// usable требует ch.mu.
func (ch *Channel) usable() error {
	if ch.closed || ch.conn.closed.Load() {
		return ErrConnectionClosed
	}
	return nil
}

// close закрывает канал один раз.
func (ch *Channel) close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return nil
	}
	ch.closed = true
	return ch.ch.Close()
}
