package hostapi

import (
	"errors"
	"fmt"
)

// ErrRequest — запрос не выполнен (сеть, таймаут, сериализация).
var ErrRequest = errors.New("host request failed")

// StatusError — сервис ответил кодом >= 400.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsStatus проверяет, что err — StatusError с указанным кодом.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
