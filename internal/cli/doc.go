// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// Команды публикации и просмотра работают через HTTP API (cmd/conveyor-api),
// поэтому CLI не нужен доступ к брокеру. show-config читает окружение
// локально и печатает конфигурацию, с которой стартует воркер.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conveyor API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	queues, err := client.ListQueues()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor queues --json | jq .
//
// ## Commands
//
//   - publish --type T [--payload JSON] [--queue Q]
//   - log MESSAGE
//   - logs [--limit N]
//   - queues
//   - show-config
//
// Каждая команда создаётся фабричной функцией (NewPublishCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
