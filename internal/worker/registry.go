package worker

import (
	"fmt"

	"github.com/shaiso/Conveyor/internal/mq"
)

// Registry — реестр фабрик по типу сообщения.
//
// Заполняется при старте до запуска consumer и дальше только читается,
// поэтому мьютекс не нужен.
type Registry struct {
	factories map[mq.MessageType]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[mq.MessageType]Factory)}
}

// Register добавляет фабрику для типа сообщения.
func (r *Registry) Register(t mq.MessageType, f Factory) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", mq.ErrUnknownMessageType, t)
	}
	if f == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, t)
	}
	if _, ok := r.factories[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateWorker, t)
	}
	r.factories[t] = f
	return nil
}

// Resolve создаёт Worker для типа сообщения.
func (r *Registry) Resolve(t mq.MessageType) (Worker, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", mq.ErrUnknownMessageType, t)
	}
	return f(), nil
}

// Types возвращает зарегистрированные типы в порядке mq.MessageTypes().
func (r *Registry) Types() []mq.MessageType {
	types := make([]mq.MessageType, 0, len(r.factories))
	for _, t := range mq.MessageTypes() {
		if _, ok := r.factories[t]; ok {
			types = append(types, t)
		}
	}
	return types
}
