package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Logging(h.logger),
	)

	// Messages
	mux.Handle("POST /api/v1/messages", chain(http.HandlerFunc(h.PublishMessage)))

	// Logs
	mux.Handle("POST /api/v1/logs", chain(http.HandlerFunc(h.PushLog)))
	mux.Handle("GET /api/v1/logs", chain(http.HandlerFunc(h.ListLogs)))

	// Topology
	mux.Handle("GET /api/v1/queues", chain(http.HandlerFunc(h.ListQueues)))
}
