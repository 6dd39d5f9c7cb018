package mq

import (
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_DeclaresExchange(t *testing.T) {
	_, fake := newTestConnection(t, DefaultTopology())

	assert.Equal(t, []string{DefaultExchange}, fake.broker.exchanges)
	// Очереди объявляются лениво
	assert.Empty(t, fake.broker.queues)
}

func TestNewConnection_DialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")

	_, err := newConnection(DefaultServerConfig(), DefaultTopology(), discardLogger(), func(string) (amqpConnection, error) {
		return nil, dialErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, dialErr)
}

func TestConnection_ChannelDeclaresQueueOnce(t *testing.T) {
	conn, fake := newTestConnection(t, DefaultTopology())

	first, err := conn.Channel(QueueSubdef)
	require.NoError(t, err)
	second, err := conn.Channel(QueueSubdef)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fake.broker.declareCount(QueueSubdef))
	assert.Equal(t, string(QueueSubdef), fake.broker.bindings[string(QueueSubdef)])
}

func TestConnection_ChannelRejectsUnknownQueue(t *testing.T) {
	conn, _ := newTestConnection(t, DefaultTopology())

	_, err := conn.Channel("not-a-queue")
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestConnection_DelayQueueDeadLettersToWorkQueue(t *testing.T) {
	conn, fake := newTestConnection(t, DefaultTopology())

	_, err := conn.Channel(QueueCreateRecord.Delay())
	require.NoError(t, err)

	// Рабочая очередь объявлена вместе с очередью задержки
	assert.Equal(t, 1, fake.broker.declareCount(QueueCreateRecord))
	args := fake.broker.queueArgs(QueueCreateRecord.Delay())
	assert.Equal(t, DefaultExchange, args["x-dead-letter-exchange"])
	assert.Equal(t, string(QueueCreateRecord), args["x-dead-letter-routing-key"])
}

func TestConnection_DeadLetterTopology(t *testing.T) {
	conn, fake := newTestConnection(t, Topology{Exchange: "assets", DeadLetter: true})

	_, err := conn.Channel(QueueWebhook)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.broker.declareCount(QueueDeadLetter))
	args := fake.broker.queueArgs(QueueWebhook)
	assert.Equal(t, "assets", args["x-dead-letter-exchange"])
	assert.Equal(t, string(QueueDeadLetter), args["x-dead-letter-routing-key"])
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn, fake := newTestConnection(t, DefaultTopology())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Equal(t, 1, fake.closeCalls)
	assert.True(t, conn.IsClosed())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestConnection_OperationsAfterClose(t *testing.T) {
	conn, _ := newTestConnection(t, DefaultTopology())

	shared, err := conn.Channel(QueueLogs)
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	_, err = conn.Channel(QueueLogs)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = conn.OpenChannel()
	assert.ErrorIs(t, err, ErrConnectionClosed)

	err = shared.Publish(t.Context(), QueueLogs, amqp.Publishing{Body: []byte("{}")})
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = shared.Consume(QueueLogs, "tag")
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnection_BrokerCloseMarksClosed(t *testing.T) {
	conn, fake := newTestConnection(t, DefaultTopology())

	fake.dropByBroker()

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection should be marked closed after broker close")
	}

	_, err := conn.Channel(QueueLogs)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	// Close после закрытия брокером не возвращает ошибку
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestConnection_OpenChannelIsDedicated(t *testing.T) {
	conn, _ := newTestConnection(t, DefaultTopology())

	shared, err := conn.Channel(QueueLogs)
	require.NoError(t, err)
	dedicated, err := conn.OpenChannel()
	require.NoError(t, err)

	assert.NotSame(t, shared, dedicated)
}

func TestParseQueues(t *testing.T) {
	queues, err := ParseQueues(nil)
	require.NoError(t, err)
	assert.Len(t, queues, 8)

	queues, err = ParseQueues([]string{"subdef-queue", " logs-queue ", "subdef-queue", ""})
	require.NoError(t, err)
	assert.Equal(t, []Queue{QueueSubdef, QueueLogs}, queues)

	_, err = ParseQueues([]string{"subdef-queue", "nope"})
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestServerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"RABBITMQ_HOST", "RABBITMQ_PORT", "RABBITMQ_USER", "RABBITMQ_PASSWORD", "RABBITMQ_VHOST"} {
			t.Setenv(key, "")
		}

		cfg := ServerConfigFromEnv()
		assert.Equal(t, DefaultServerConfig(), cfg)

		uri, err := amqp.ParseURI(cfg.URL())
		require.NoError(t, err)
		assert.Equal(t, "localhost", uri.Host)
		assert.Equal(t, 5672, uri.Port)
		assert.Equal(t, "guest", uri.Username)
		assert.Equal(t, "guest", uri.Password)
		assert.Equal(t, "/", uri.Vhost)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("RABBITMQ_HOST", "rabbit.internal")
		t.Setenv("RABBITMQ_PORT", "5673")
		t.Setenv("RABBITMQ_USER", "worker")
		t.Setenv("RABBITMQ_PASSWORD", "s3cret")
		t.Setenv("RABBITMQ_VHOST", "assets")

		cfg := ServerConfigFromEnv()
		uri, err := amqp.ParseURI(cfg.URL())
		require.NoError(t, err)
		assert.Equal(t, "rabbit.internal", uri.Host)
		assert.Equal(t, 5673, uri.Port)
		assert.Equal(t, "worker", uri.Username)
		assert.Equal(t, "s3cret", uri.Password)
		assert.Equal(t, "assets", uri.Vhost)

		assert.Equal(t, "******", cfg.Redacted().Password)
		assert.Equal(t, "s3cret", cfg.Password)
	})

	t.Run("invalid port falls back", func(t *testing.T) {
		t.Setenv("RABBITMQ_PORT", "abc")
		assert.Equal(t, DefaultPort, ServerConfigFromEnv().Port)
	})
}
