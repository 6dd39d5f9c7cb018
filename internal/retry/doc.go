// Package retry реализует цикл повторной обработки.
//
// Воркер, столкнувшийся с временной ошибкой, не бросает её наружу,
// а возвращает исход "повторить позже". Dispatcher превращает его
// в Request, а Cycle публикует новое сообщение того же типа в ту же
// очередь с увеличенным count и задержкой по Policy.
//
// Исходное сообщение при этом подтверждается (ack): повтор — это новое
// сообщение, а не повторная доставка.
//
//	attempt 1 (count отсутствует) → сбой → count=2 → <queue>.delay → TTL → <queue>
//	attempt 2 (count=2)           → сбой → count=3 → ...
//
// По умолчанию число попыток не ограничено. При MaxAttempts > 0
// исчерпавшее попытки сообщение паркуется в dead-letter-queue.
package retry
