package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/paraglide-live/trackcore/internal/models"
	"github.com/paraglide-live/trackcore/internal/queue"
	"github.com/paraglide-live/trackcore/internal/separator"
	"github.com/paraglide-live/trackcore/internal/store"
	"github.com/paraglide-live/trackcore/internal/validator"
)

// Store is the subset of store.Store the API handlers need.
type Store interface {
	FlightExists(ctx context.Context, flightID string) (bool, error)
	GetFlight(ctx context.Context, flightID string) (*models.Flight, error)
	CreateFlight(ctx context.Context, f models.Flight) error
	ListFlightsByPilot(ctx context.Context, raceID, pilotID string) ([]models.Flight, error)
	DeleteFlightsByPilot(ctx context.Context, raceID, pilotID string) (int64, error)
	DeleteFlightByUUID(ctx context.Context, flightUUID string) (int64, error)
	RaceExists(ctx context.Context, raceID string) (bool, error)
	GetRace(ctx context.Context, raceID string) (*models.Race, error)
	GetDeviceRegistration(ctx context.Context, deviceID string) (store.DeviceRegistration, error)
	LiveSummary(ctx context.Context, raceID string) (store.LiveSummary, error)
	Ping(ctx context.Context) error
}

// Queue is the subset of queue.Queue the API handlers need.
type Queue interface {
	Enqueue(ctx context.Context, item models.QueueItem) error
	EnqueueBatch(ctx context.Context, items []models.QueueItem) (int, error)
	Stats(ctx context.Context) (map[models.QueueName]queue.QueueStats, error)
	DLQSize(ctx context.Context, name models.QueueName) (int64, error)
	ClearQueue(ctx context.Context, name models.QueueName) error
}

// Validator is the subset of validator.Validator the API handlers need.
type Validator interface {
	ValidateShape(item models.QueueItem) validator.Result
	CheckFlight(ctx context.Context, flightID string) error
	CheckRace(ctx context.Context, raceID string) error
}

// Separator is the subset of separator.Separator the flymaster bulk
// ingest adapter needs to resolve points to flights the same way the
// GPS TCP front-end does.
type Separator interface {
	Resolve(ctx context.Context, source models.Source, raceID, pilotID, pilotName, deviceID string, point separator.Point, raceLoc *time.Location, now time.Time) (flightID string, isNew bool, err error)
}

// DirectWriter performs a single direct bulk insert, bypassing the
// queue. Satisfied by *writer.Worker.WriteDirect.
type DirectWriter interface {
	WriteDirect(ctx context.Context, item models.QueueItem) (store.BulkInsertResult, error)
}

// FanoutHandler serves the …/ws/live/{race_id} WebSocket upgrade.
// Satisfied by *fanout.Registry.
type FanoutHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Writers bundles one DirectWriter per queue family the HTTP ingest
// adapters fall back to when Queue.Enqueue reports it is unreachable.
type Writers struct {
	Live      DirectWriter
	Upload    DirectWriter
	Flymaster DirectWriter
}

// Handler holds every dependency the route handlers close over.
type Handler struct {
	store     Store
	queue     Queue
	validator Validator
	separator Separator
	writers   Writers
	fanout    FanoutHandler

	deletions *deletionTracker
}

// NewHandler builds a Handler. fanout may be nil when the fan-out
// WebSocket surface is not mounted (e.g. a deployment running only the
// ingest adapters).
func NewHandler(st Store, q Queue, v Validator, sep Separator, w Writers, fanout FanoutHandler) *Handler {
	return &Handler{
		store:     st,
		queue:     q,
		validator: v,
		separator: sep,
		writers:   w,
		fanout:    fanout,
		deletions: newDeletionTracker(),
	}
}

// deletionStatus is the lifecycle of one async deletion job.
type deletionStatus string

const (
	deletionPending deletionStatus = "pending"
	deletionDone    deletionStatus = "completed"
	deletionFailed  deletionStatus = "failed"
)

// deletionJob tracks one in-flight DELETE .../async operation, polled
// via GET /tracking/deletion-status/{deletion_id}.
type deletionJob struct {
	Status      deletionStatus `json:"status"`
	RowsDeleted int64          `json:"rows_deleted,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

// deletionTracker is an in-memory registry of deletion jobs, grounded
// on the teacher's detached-context async-import pattern
// (handlers_import.go's ImportHandlers): the operation itself runs in a
// goroutine against a timeout independent of the request context, and
// its outcome is polled rather than streamed back.
type deletionTracker struct {
	mu   sync.Mutex
	jobs map[string]*deletionJob
}

func newDeletionTracker() *deletionTracker {
	return &deletionTracker{jobs: make(map[string]*deletionJob)}
}

func (t *deletionTracker) start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &deletionJob{Status: deletionPending, StartedAt: time.Now().UTC()}
}

func (t *deletionTracker) finish(id string, rows int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.FinishedAt = &now
	if err != nil {
		job.Status = deletionFailed
		job.Error = err.Error()
		return
	}
	job.Status = deletionDone
	job.RowsDeleted = rows
}

func (t *deletionTracker) get(id string) (deletionJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return deletionJob{}, false
	}
	return *job, true
}
