package worker

import "errors"

// Ошибки реестра.
var (
	// ErrDuplicateWorker — для типа уже зарегистрирована фабрика.
	ErrDuplicateWorker = errors.New("worker already registered")

	// ErrNilFactory — вместо фабрики передан nil.
	ErrNilFactory = errors.New("nil worker factory")
)

// ErrMissingDependency — для набора воркеров по умолчанию не передана зависимость.
var ErrMissingDependency = errors.New("missing worker dependency")
