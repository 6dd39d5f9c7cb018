// Package hostapi — HTTP-клиенты внешних сервисов, которыми пользуются воркеры.
//
// Client обращается к внутреннему API платформы: генерация subdefs,
// запись метаданных, создание записей, сборка экспорта, индексация.
// Воркеры не содержат бизнес-логики платформы, они только вызывают
// эти эндпоинты и решают, повторять ли попытку.
//
// Uploader обращается к сервису загрузки: информация об ассете,
// скачивание файла и подтверждение коммита. Авторизация — заголовок
// "Authorization: AssetToken <token>" из payload сообщения.
//
// Ошибки HTTP-статуса возвращаются как *StatusError, сетевые ошибки
// оборачивают ErrRequest.
package hostapi
