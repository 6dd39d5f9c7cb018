// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - config.go     — параметры подключения (host, port, user, password, vhost)
//   - connection.go — единственное соединение процесса, общий и выделенные каналы
//   - topology.go   — обменник, рабочие очереди, очереди задержки, dead-letter
//   - envelope.go   — wire-формат {message_type, payload} и таблица type → queue
//   - publisher.go  — публикация envelopes (в том числе отложенная)
//   - consumer.go   — потребление очередей с ручным ack/nack
//
// Типы сообщений и очереди:
//   - exportMail      → export-queue
//   - subdefCreation  → subdef-queue
//   - writeMetadatas  → metadatas-queue
//   - newAssets       → assets-ingest
//   - createRecord    → createrecord-queue
//   - logs            → logs-queue
//   - webhook         → webhook-queue
//   - populateIndex   → populate-index-queue
//
// Гарантии: at-least-once, FIFO внутри очереди, порядка между очередями нет.
// Publisher confirms не используются.
package mq
