package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/paraglide-live/trackcore/internal/ingesterr"
	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/models"
	"github.com/paraglide-live/trackcore/internal/queue"
	"github.com/paraglide-live/trackcore/internal/separator"
	"github.com/paraglide-live/trackcore/internal/validation"
)

// ingestPoint is the wire shape of one point in an ingest request body,
// mirroring models.QueuePoint but with validator tags for the edge
// shape check (spec §4.2's coordinate/timestamp bounds, enforced here
// before the point ever reaches the queue).
type ingestPoint struct {
	Lat       float64  `json:"lat" validate:"min=-90,max=90"`
	Lon       float64  `json:"lon" validate:"min=-180,max=180"`
	Elevation *float64 `json:"elevation,omitempty"`
	Datetime  string   `json:"datetime" validate:"required"`
	Battery   *int     `json:"battery,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

func (p ingestPoint) toQueuePoint() models.QueuePoint {
	return models.QueuePoint{
		Lat: p.Lat, Lon: p.Lon, Elevation: p.Elevation,
		Datetime: p.Datetime, Battery: p.Battery, Speed: p.Speed, Heading: p.Heading,
	}
}

// liveIngestRequest is the body of POST /tracking/live: one or more
// points for a single mobile-producer flight. Mobile sources supply
// their own opaque flight_id and are not subject to automatic
// separation (spec §3).
type liveIngestRequest struct {
	FlightID  string        `json:"flight_id" validate:"required"`
	RaceID    string        `json:"race_id" validate:"required"`
	PilotID   string        `json:"pilot_id" validate:"required"`
	PilotName string        `json:"pilot_name"`
	Points    []ingestPoint `json:"points" validate:"required,min=1,dive"`
}

// HandleLive implements POST /tracking/live.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	var req liveIngestRequest
	if !h.decodeIngestRequest(w, r, &req) {
		return
	}
	h.ingestMobile(w, r, models.SourceLive, models.QueueLivePoints, h.writers.Live, req.FlightID, req.RaceID, req.PilotID, req.PilotName, req.Points)
}

// HandleUpload implements POST /tracking/upload.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var req liveIngestRequest
	if !h.decodeIngestRequest(w, r, &req) {
		return
	}
	h.ingestMobile(w, r, models.SourceUpload, models.QueueUploadPoints, h.writers.Upload, req.FlightID, req.RaceID, req.PilotID, req.PilotName, req.Points)
}

func (h *Handler) decodeIngestRequest(w http.ResponseWriter, r *http.Request, req *liveIngestRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed JSON body", err)
		return false
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return false
	}
	return true
}

// ingestMobile is shared between /tracking/live and /tracking/upload: a
// mobile producer's flight is created on first sight (idempotently, via
// CreateFlight's ON CONFLICT DO NOTHING) and every subsequent point
// attaches to the same flight_id the producer supplies.
func (h *Handler) ingestMobile(w http.ResponseWriter, r *http.Request, src models.Source, qname models.QueueName, writer DirectWriter,
	flightID, raceID, pilotID, pilotName string, points []ingestPoint) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.ensureFlight(ctx, src, flightID, raceID, pilotID, pilotName); err != nil {
		if errors.Is(err, errRaceNotFound) {
			respondError(w, http.StatusBadRequest, "NOT_FOUND", "race_id does not exist", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to resolve flight", err)
		return
	}

	qps := make([]models.QueuePoint, 0, len(points))
	for _, p := range points {
		qps = append(qps, p.toQueuePoint())
	}
	item := models.NewQueueItem(qname, flightID, qps)

	if err := h.queue.Enqueue(ctx, item); err == nil {
		respondJSON(w, http.StatusAccepted, &models.APIResponse{Status: "success", Data: map[string]interface{}{"result": "queued", "count": len(qps)}})
		return
	} else if !errors.Is(err, queue.ErrUnavailable) {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "failed to enqueue", err)
		return
	}

	logging.Warn().Str("flight_id", flightID).Msg("api: queue unavailable, falling back to direct write")
	result, err := writer.WriteDirect(ctx, item)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "queue and direct write both unavailable", err)
		return
	}
	respondJSON(w, http.StatusCreated, &models.APIResponse{Status: "success", Data: map[string]interface{}{
		"result": "fallback_direct_ok", "inserted": result.Inserted, "ignored": result.Ignored,
	}})
}

var errRaceNotFound = errors.New("api: race not found")

// ensureFlight creates the flight row if it doesn't exist yet,
// validating the race reference first so a typo'd race_id fails fast
// rather than producing an orphaned flight.
func (h *Handler) ensureFlight(ctx context.Context, src models.Source, flightID, raceID, pilotID, pilotName string) error {
	exists, err := h.store.FlightExists(ctx, flightID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := h.validator.CheckRace(ctx, raceID); err != nil {
		if ingesterr.IsPermanent(err) {
			return errRaceNotFound
		}
		return err
	}
	return h.store.CreateFlight(ctx, models.Flight{
		ID: flightID, RaceID: raceID, PilotID: pilotID, PilotName: pilotName,
		Source: src, CreatedAt: time.Now().UTC(),
	})
}

// flymasterIngestRequest is the body of POST /tracking/flymaster/*: a
// bulk device upload. Flymaster is a tracker source, so points are
// resolved through the separator exactly like the GPS TCP front-end
// (spec §4.4), just batched over HTTP instead of a raw socket.
type flymasterIngestRequest struct {
	DeviceID string        `json:"device_id" validate:"required"`
	Points   []ingestPoint `json:"points" validate:"required,min=1,dive"`
}

// HandleFlymaster implements POST /tracking/flymaster/*.
func (h *Handler) HandleFlymaster(w http.ResponseWriter, r *http.Request) {
	var req flymasterIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed JSON body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	reg, err := h.store.GetDeviceRegistration(ctx, req.DeviceID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "NOT_FOUND", "device is not registered", err)
		return
	}
	race, err := h.store.GetRace(ctx, reg.RaceID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "NOT_FOUND", "race not found for device", err)
		return
	}
	raceLoc := race.Loc()

	// Group consecutive points by the flight they resolve to, so one
	// bulk upload from a single day produces as few queue items as
	// possible rather than one item per point.
	groups := make(map[string][]models.QueuePoint)
	order := make([]string, 0, 1)
	now := time.Now().UTC()
	for _, p := range req.Points {
		ts, err := time.Parse(time.RFC3339, p.Datetime)
		if err != nil {
			continue
		}
		flightID, _, err := h.separator.Resolve(ctx, reg.Source, reg.RaceID, reg.PilotID, reg.PilotName, req.DeviceID,
			separator.Point{Timestamp: ts, Elevation: p.Elevation, SpeedKMH: p.Speed}, raceLoc, now)
		if err != nil {
			logging.Warn().Err(err).Str("device_id", req.DeviceID).Msg("api: flight separation failed for flymaster batch")
			continue
		}
		if _, ok := groups[flightID]; !ok {
			order = append(order, flightID)
		}
		groups[flightID] = append(groups[flightID], p.toQueuePoint())
	}
	if len(groups) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "no points could be resolved to a flight", nil)
		return
	}

	items := make([]models.QueueItem, 0, len(order))
	for _, flightID := range order {
		items = append(items, models.NewQueueItem(models.QueueFlymasterPoints, flightID, groups[flightID]))
	}

	n, err := h.queue.EnqueueBatch(ctx, items)
	if err == nil {
		respondJSON(w, http.StatusAccepted, &models.APIResponse{Status: "success", Data: map[string]interface{}{"result": "queued", "flights": len(items), "enqueued": n}})
		return
	}
	if !errors.Is(err, queue.ErrUnavailable) {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "failed to enqueue batch", err)
		return
	}

	logging.Warn().Str("device_id", req.DeviceID).Msg("api: queue unavailable, falling back to direct write")
	var inserted, ignored int
	for _, item := range items {
		result, err := h.writers.Flymaster.WriteDirect(ctx, item)
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "queue and direct write both unavailable", err)
			return
		}
		inserted += result.Inserted
		ignored += result.Ignored
	}
	respondJSON(w, http.StatusCreated, &models.APIResponse{Status: "success", Data: map[string]interface{}{
		"result": "fallback_direct_ok", "inserted": inserted, "ignored": ignored,
	}})
}
