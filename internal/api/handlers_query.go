package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paraglide-live/trackcore/internal/models"
)

// maxPilotFlights caps the per-pilot flight history, per spec §6 "up to
// 20 most recent flights".
const maxPilotFlights = 20

type pilotSummaryResponse struct {
	PilotID      string     `json:"pilot_id"`
	PilotName    string     `json:"pilot_name"`
	FlightCount  int        `json:"flight_count"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

type timeRangeResponse struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// HandleLiveSummary implements GET /tracking/live/summary?race_id=….
func (h *Handler) HandleLiveSummary(w http.ResponseWriter, r *http.Request) {
	raceID := r.URL.Query().Get("race_id")
	if raceID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "race_id is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	sum, err := h.store.LiveSummary(ctx, raceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load summary", err)
		return
	}

	pilots := make([]pilotSummaryResponse, 0, len(sum.Pilots))
	for _, p := range sum.Pilots {
		pilots = append(pilots, pilotSummaryResponse{
			PilotID: p.PilotID, PilotName: p.PilotName, FlightCount: p.FlightCount, LastActivity: p.LastActivity,
		})
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"summary": map[string]interface{}{
				"total_flights":     sum.TotalFlights,
				"total_pilots":      sum.TotalPilots,
				"time_range":        timeRangeResponse{Start: sum.EarliestActivity, End: sum.LatestActivity},
				"earliest_activity": sum.EarliestActivity,
				"latest_activity":   sum.LatestActivity,
			},
			"pilots": pilots,
		},
	})
}

type flightResponse struct {
	FlightID    string     `json:"flight_id"`
	Source      string     `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
	FirstFix    *time.Time `json:"first_fix,omitempty"`
	LastFix     *time.Time `json:"last_fix,omitempty"`
	TotalPoints int        `json:"total_points"`
	DurationS   *float64   `json:"duration_seconds,omitempty"`
}

// HandlePilotFlights implements GET /tracking/live/pilot/{pilot_id}/flights?race_id=….
func (h *Handler) HandlePilotFlights(w http.ResponseWriter, r *http.Request) {
	pilotID := chi.URLParam(r, "pilot_id")
	raceID := r.URL.Query().Get("race_id")
	if pilotID == "" || raceID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "pilot_id and race_id are required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	flights, err := h.store.ListFlightsByPilot(ctx, raceID, pilotID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load flights", err)
		return
	}
	limit := getIntParam(r, "limit", maxPilotFlights)
	if limit <= 0 || limit > maxPilotFlights {
		limit = maxPilotFlights
	}
	if len(flights) > limit {
		flights = flights[:limit]
	}

	out := make([]flightResponse, 0, len(flights))
	for _, f := range flights {
		resp := flightResponse{
			FlightID: f.ID, Source: string(f.Source), CreatedAt: f.CreatedAt, TotalPoints: f.TotalPoints,
		}
		if f.FirstFix != nil {
			resp.FirstFix = &f.FirstFix.Timestamp
		}
		if f.LastFix != nil {
			resp.LastFix = &f.LastFix.Timestamp
		}
		if f.FirstFix != nil && f.LastFix != nil {
			d := f.LastFix.Timestamp.Sub(f.FirstFix.Timestamp).Seconds()
			resp.DurationS = &d
		}
		out = append(out, resp)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: out})
}
