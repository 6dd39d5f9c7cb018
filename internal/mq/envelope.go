package mq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений. Набор закрытый: других типов система не принимает.
const (
	MessageTypeExportMail     MessageType = "exportMail"
	MessageTypeSubdefCreation MessageType = "subdefCreation"
	MessageTypeWriteMetadatas MessageType = "writeMetadatas"
	MessageTypeAssetsIngest   MessageType = "newAssets"
	MessageTypeCreateRecord   MessageType = "createRecord"
	MessageTypeLogs           MessageType = "logs"
	MessageTypeWebhook        MessageType = "webhook"
	MessageTypePopulateIndex  MessageType = "populateIndex"
)

// messageRoutes — фиксированная таблица type → queue.
var messageRoutes = map[MessageType]Queue{
	MessageTypeExportMail:     QueueExport,
	MessageTypeSubdefCreation: QueueSubdef,
	MessageTypeWriteMetadatas: QueueMetadatas,
	MessageTypeAssetsIngest:   QueueAssetsIngest,
	MessageTypeCreateRecord:   QueueCreateRecord,
	MessageTypeLogs:           QueueLogs,
	MessageTypeWebhook:        QueueWebhook,
	MessageTypePopulateIndex:  QueuePopulateIndex,
}

// MessageTypes возвращает все типы сообщений в порядке объявления очередей.
func MessageTypes() []MessageType {
	return []MessageType{
		MessageTypeExportMail,
		MessageTypeSubdefCreation,
		MessageTypeWriteMetadatas,
		MessageTypeLogs,
		MessageTypeWebhook,
		MessageTypeAssetsIngest,
		MessageTypeCreateRecord,
		MessageTypePopulateIndex,
	}
}

// Valid проверяет, что тип входит в зарегистрированный набор.
func (t MessageType) Valid() bool {
	_, ok := messageRoutes[t]
	return ok
}

// Queue возвращает очередь по умолчанию для типа.
func (t MessageType) Queue() (Queue, error) {
	q, ok := messageRoutes[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMessageType, t)
	}
	return q, nil
}

// countKey — ключ счётчика попыток внутри payload.
const countKey = "count"

// Payload — полезная нагрузка сообщения.
//
// После DecodeEnvelope числа хранятся как json.Number, поэтому значения
// переживают повторную сериализацию без потерь.
type Payload map[string]any

// Clone возвращает поверхностную копию payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Attempt возвращает номер текущей попытки.
// Отсутствие count означает первую попытку.
func (p Payload) Attempt() int {
	n, ok := p.Int(countKey)
	if !ok || n < 1 {
		return 1
	}
	return int(n)
}

// WithAttempt возвращает копию payload с count = attempt.
func (p Payload) WithAttempt(attempt int) Payload {
	out := p.Clone()
	out[countKey] = attempt
	return out
}

// String извлекает строку по ключу.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

// Int извлекает целое число по ключу. Строки с числом тоже принимаются.
func (p Payload) Int(key string) (int64, bool) {
	switch v := p[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v < -(1 << 63) || v >= 1<<63 {
			return 0, false
		}
		return int64(v), v == float64(int64(v))
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Map извлекает вложенный объект по ключу.
func (p Payload) Map(key string) map[string]any {
	if m, ok := p[key].(map[string]any); ok {
		return m
	}
	if m, ok := p[key].(Payload); ok {
		return m
	}
	return nil
}

// Strings извлекает список строк по ключу.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case json.Number:
				out = append(out, s.String())
			}
		}
		return out
	}
	return nil
}

// Envelope — единица публикации и потребления.
type Envelope struct {
	MessageType MessageType `json:"message_type"`
	Payload     Payload     `json:"payload"`
}

// NewEnvelope создаёт envelope. nil payload заменяется пустым объектом.
func NewEnvelope(t MessageType, payload Payload) Envelope {
	if payload == nil {
		payload = Payload{}
	}
	return Envelope{MessageType: t, Payload: payload}
}

// Encode сериализует envelope в wire-формат.
func (e Envelope) Encode() ([]byte, error) {
	if !e.MessageType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, e.MessageType)
	}
	if e.Payload == nil {
		e.Payload = Payload{}
	}

	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// DecodeEnvelope разбирает тело сообщения.
//
// Тип сообщения здесь не сверяется с набором — это делает resolver,
// чтобы неизвестный тип и битое тело различались в логах.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var raw struct {
		MessageType *string         `json:"message_type"`
		Payload     json.RawMessage `json:"payload"`
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	// После объекта допускаются только пробелы
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("%w: unexpected data after envelope", ErrMalformedEnvelope)
	}

	if raw.MessageType == nil || *raw.MessageType == "" {
		return Envelope{}, fmt.Errorf("%w: missing message_type", ErrMalformedEnvelope)
	}

	payload := Payload{}
	if len(raw.Payload) > 0 && !bytes.Equal(raw.Payload, []byte("null")) {
		pdec := json.NewDecoder(bytes.NewReader(raw.Payload))
		pdec.UseNumber()
		if err := pdec.Decode(&payload); err != nil {
			return Envelope{}, fmt.Errorf("%w: payload: %v", ErrMalformedEnvelope, err)
		}
	}

	return Envelope{
		MessageType: MessageType(*raw.MessageType),
		Payload:     payload,
	}, nil
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](p Payload) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
