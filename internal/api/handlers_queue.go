package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paraglide-live/trackcore/internal/models"
)

// HandleQueueStatus implements GET /queue/status: per-queue-family
// pending count and DLQ size (spec §6, §4.3 monitoring contract).
func (h *Handler) HandleQueueStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	stats, err := h.queue.Stats(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "failed to read queue stats", err)
		return
	}

	out := make(map[string]map[string]int64, len(stats))
	for name, s := range stats {
		out[string(name)] = map[string]int64{"pending": s.Pending, "dlq_size": s.DLQSize}
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: out})
}

// HandleQueueDLQSize implements GET /admin/queue/{queue_name}/dlq-size.
func (h *Handler) HandleQueueDLQSize(w http.ResponseWriter, r *http.Request) {
	name := models.QueueName(chi.URLParam(r, "queue_name"))
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	size, err := h.queue.DLQSize(ctx, name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "failed to read dlq size", err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: map[string]int64{"dlq_size": size}})
}

// HandleQueueClear implements DELETE /admin/queue/{queue_name}: drops
// every pending item in one queue family. Operator tool, not exposed to
// producers.
func (h *Handler) HandleQueueClear(w http.ResponseWriter, r *http.Request) {
	name := models.QueueName(chi.URLParam(r, "queue_name"))
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.queue.ClearQueue(ctx, name); err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "failed to clear queue", err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: map[string]string{"queue": string(name), "result": "cleared"}})
}
