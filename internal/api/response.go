package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Conveyor/internal/mq"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Accepted отправляет ответ о принятии в обработку (202).
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unavailable отправляет ошибку 503.
func Unavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandlePublishError преобразует ошибку публикации в HTTP ответ.
func HandlePublishError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, mq.ErrUnknownMessageType), errors.Is(err, mq.ErrUnknownQueue):
		BadRequest(w, err.Error())
	case errors.Is(err, mq.ErrPublish), errors.Is(err, mq.ErrConnectionClosed):
		logger.Error("publish failed", "error", err)
		Unavailable(w, "broker unavailable")
	default:
		InternalError(w, logger, err)
	}
	return true
}
