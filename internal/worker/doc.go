// Package worker связывает типы сообщений с обработчиками.
//
// # Обзор
//
// Каждый тип сообщения обслуживается своим Worker. Worker получает
// payload и возвращает Outcome: Done (сообщение обработано, в том числе
// "мягкий" сбой, записанный в журнал) или RetryLater (временный сбой,
// сообщение нужно повторить позже). Ошибки наружу не пробрасываются.
//
// # Ключевые компоненты
//
// ## Registry
//
// Отображение message_type → Factory. Строится один раз при старте,
// дальше только читается:
//
//	reg := worker.NewRegistry()
//	reg.Register(mq.MessageTypeLogs, func() worker.Worker { return worker.NewLogWorker(journal) })
//
//	w, err := reg.Resolve(mq.MessageTypeLogs)
//
// Незарегистрированный тип — mq.ErrUnknownMessageType.
//
// ## Dispatcher
//
// mq.Handler для consumer loop. Находит Worker по типу, вызывает Process
// с логгером в контексте, а RetryLater превращает в retry.Request и
// передаёт циклу повторов. Исходное сообщение в этом случае подтверждается.
//
//	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
//	    Registry: reg,
//	    Retrier:  retry.NewCycle(publisher, policy, logger),
//	    Logger:   logger,
//	})
//
//	consumer := mq.NewConsumer(ch, logger, mq.ConsumerConfig{
//	    Handler: dispatcher.Handle,
//	    Logs:    publisher,
//	})
//
// ## Workers
//
//   - LogWorker (logs) — журнал в slog и Postgres
//   - SubdefWorker (subdefCreation) — генерация subdefs через API платформы
//   - MetadataWorker (writeMetadatas) — запись метаданных
//   - AssetsIngestWorker (newAssets) — учёт коммита и рассылка createRecord
//   - CreateRecordWorker (createRecord) — скачивание ассета и создание записи
//   - ExportMailWorker (exportMail) — рассылка писем с экспортом
//   - WebhookWorker (webhook) — доставка вебхука
//   - PopulateIndexWorker (populateIndex) — заполнение поискового индекса
package worker
