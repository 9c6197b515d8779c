package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paraglide-live/trackcore/internal/models"
)

// asyncDeletionTimeout bounds the detached context each deletion
// goroutine runs under, grounded on the teacher's handlers_import.go
// detached-context pattern (30 minutes there for a bulk media import;
// a flight/pilot delete is far smaller, so a much shorter ceiling).
const asyncDeletionTimeout = 5 * time.Minute

// HandleDeletePilotFlights implements
// DELETE /tracking/admin/delete-pilot-flights-async/{pilot_id}?race_id=….
// It returns 202 immediately; the delete runs in the background and is
// polled via GET /tracking/deletion-status/{deletion_id}.
func (h *Handler) HandleDeletePilotFlights(w http.ResponseWriter, r *http.Request) {
	pilotID := chi.URLParam(r, "pilot_id")
	raceID := r.URL.Query().Get("race_id")
	if pilotID == "" || raceID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "pilot_id and race_id are required", nil)
		return
	}

	id := uuid.New().String()
	h.deletions.start(id)

	deleteCtx, cancel := context.WithTimeout(context.Background(), asyncDeletionTimeout)
	go func() {
		defer cancel()
		rows, err := h.store.DeleteFlightsByPilot(deleteCtx, raceID, pilotID)
		h.deletions.finish(id, rows, err)
	}()

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"deletion_id": id,
			"status_url":  "/tracking/deletion-status/" + id,
		},
	})
}

// HandleDeleteFlightByUUID implements
// DELETE /tracking/tracks/fuuid-async/{flight_uuid}?source=….
func (h *Handler) HandleDeleteFlightByUUID(w http.ResponseWriter, r *http.Request) {
	flightUUID := chi.URLParam(r, "flight_uuid")
	if flightUUID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "flight_uuid is required", nil)
		return
	}

	id := uuid.New().String()
	h.deletions.start(id)

	deleteCtx, cancel := context.WithTimeout(context.Background(), asyncDeletionTimeout)
	go func() {
		defer cancel()
		rows, err := h.store.DeleteFlightByUUID(deleteCtx, flightUUID)
		h.deletions.finish(id, rows, err)
	}()

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"deletion_id": id,
			"status_url":  "/tracking/deletion-status/" + id,
		},
	})
}

// HandleDeletionStatus implements GET /tracking/deletion-status/{deletion_id}.
func (h *Handler) HandleDeletionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deletion_id")
	job, ok := h.deletions.get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown deletion_id", ErrDeletionNotFound)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: job})
}
