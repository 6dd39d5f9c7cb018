package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки доставки.
const (
	OutcomeAck  = "ack"
	OutcomeNack = "nack"
)

var (
	// MessagesPublished — сообщения, переданные брокеру, по очереди.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_messages_published_total",
		Help: "Messages handed to the broker client, by routing queue",
	}, []string{"queue"})

	// PublishFailures — ошибки публикации по очереди.
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_publish_failures_total",
		Help: "Failed publish attempts, by routing queue",
	}, []string{"queue"})

	// DeliveriesHandled — обработанные доставки по очереди и исходу (ack/nack).
	DeliveriesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_deliveries_total",
		Help: "Deliveries handled by consumers, by queue and outcome",
	}, []string{"queue", "outcome"})

	// WorkerDuration — длительность Process по типу сообщения.
	WorkerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conveyor_worker_duration_seconds",
		Help:    "Time spent in worker Process, by message type",
		Buckets: prometheus.DefBuckets,
	}, []string{"message_type"})

	// RetriesScheduled — запланированные повторы по типу сообщения.
	RetriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_retries_scheduled_total",
		Help: "Delayed re-publications scheduled by the retry cycle, by message type",
	}, []string{"message_type"})

	// DeadLettered — сообщения, исчерпавшие попытки, по типу сообщения.
	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_dead_lettered_total",
		Help: "Envelopes parked in the dead-letter queue after exhausting retries, by message type",
	}, []string{"message_type"})
)
