package api

import (
	"context"
	"net/http"
	"time"

	"github.com/paraglide-live/trackcore/internal/models"
)

// dependencyStatus is one checked dependency's health, part of the
// GET /health payload.
type dependencyStatus struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Pending int64  `json:"pending,omitempty"`
	DLQSize int64  `json:"dlq_size,omitempty"`
}

// HandleHealth reports Store connectivity, Queue connectivity, and the
// live_points queue's backlog (spec §6: "reports status of Store, KV
// store, queue backlog").
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overall := "healthy"
	deps := map[string]dependencyStatus{}

	if err := h.store.Ping(ctx); err != nil {
		deps["store"] = dependencyStatus{Status: "unhealthy", Detail: err.Error()}
		overall = "unhealthy"
	} else {
		deps["store"] = dependencyStatus{Status: "healthy"}
	}

	stats, err := h.queue.Stats(ctx)
	if err != nil {
		deps["queue"] = dependencyStatus{Status: "unhealthy", Detail: err.Error()}
		overall = "unhealthy"
	} else {
		live := stats[models.QueueLivePoints]
		deps["queue"] = dependencyStatus{Status: "healthy", Pending: live.Pending, DLQSize: live.DLQSize}
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status":       overall,
			"dependencies": deps,
		},
	})
}

// HandleLiveness always reports 200 once the process is accepting
// connections; it never touches the Store or Queue.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: map[string]string{"status": "alive"}})
}
