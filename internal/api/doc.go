// Package api содержит HTTP API для продюсеров, которые не подключаются к брокеру.
//
// Структура:
//   - handler.go         — Handler с DI (publisher, журнал, топология, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - message_handler.go — публикация сообщений и строк журнала
//   - queue_handler.go   — топология очередей
//
// Сообщения проверяются так же, как при публикации из Go: неизвестный тип
// или очередь — 400, сбой брокера — 503.
package api
