package api

import (
	"net/http"
)

// ListQueues возвращает обменник, очереди и типы сообщений каждой очереди.
// GET /api/v1/queues
func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	Success(w, TopologyFromMQ(h.topology))
}
