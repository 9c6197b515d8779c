// Package writer drains the Redis queues into PostgreSQL: one worker
// per queue family, each running dequeue/validate/insert loops behind
// a circuit breaker, with exponential-backoff retry and DLQ routing on
// exhaustion (spec §4.3).
package writer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/paraglide-live/trackcore/internal/ingesterr"
	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/metrics"
	"github.com/paraglide-live/trackcore/internal/models"
	"github.com/paraglide-live/trackcore/internal/store"
)

// Store is the subset of store.Store a Worker writes through.
type Store interface {
	FlightExists(ctx context.Context, flightID string) (bool, error)
	BulkInsertPoints(ctx context.Context, src models.Source, flightID string, points []models.TrackPoint) (store.BulkInsertResult, error)
	RecordFix(ctx context.Context, flightID string, fix models.Fix, pointCount int) error
}

// Queue is the subset of queue.Queue a Worker drains.
type Queue interface {
	DequeueBatch(ctx context.Context, name models.QueueName, batchSize int) ([]models.QueueItem, error)
	ToDLQ(ctx context.Context, entry models.DLQEntry) error
}

// Config controls batching and retry behavior for every Worker.
type Config struct {
	BatchSize    int // queue items dequeued per pass, default 500, cap 1000
	PollInterval time.Duration
	MaxRetries   int // spec: DLQ once retry_count >= 3
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.BatchSize > 1000 {
		c.BatchSize = 1000
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Backoff returns min(60s, 2^retryCount seconds), per spec §4.3.
func Backoff(retryCount int) time.Duration {
	d := time.Duration(math.Pow(2, float64(retryCount))) * time.Second
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

// Worker drains one queue family into the Store.
type Worker struct {
	name    models.QueueName
	queue   Queue
	store   Store
	cfg     Config
	breaker *gobreaker.CircuitBreaker[store.BulkInsertResult]
}

// NewWorker builds a Worker for one queue family with its own circuit
// breaker so a Store outage on one family doesn't trip the breaker for
// the others.
func NewWorker(name models.QueueName, q Queue, st Store, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        "writer-" + string(name),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Worker{
		name:    name,
		queue:   q,
		store:   st,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[store.BulkInsertResult](settings),
	}
}

// Serve implements the suture.Service loop the supervisor runs it
// under: dequeue a batch, process every item, sleep, repeat, until ctx
// is canceled.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				logging.Warn().Err(err).Str("queue", string(w.name)).Msg("writer drain pass failed")
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	start := time.Now()
	items, err := w.queue.DequeueBatch(ctx, w.name, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	inserted, ignored := 0, 0
	for _, item := range items {
		n, m := w.processItem(ctx, item)
		inserted += n
		ignored += m
	}
	metrics.RecordWriterBatch(string(w.name), time.Since(start), inserted, ignored)
	metrics.RecordCircuitBreakerState("writer:"+string(w.name), w.breaker.State().String())
	return nil
}

// processItem writes one item to the Store, retrying or dead-lettering
// on failure, and reports how many points were inserted vs. ignored on
// conflict for the caller's batch metrics.
func (w *Worker) processItem(ctx context.Context, item models.QueueItem) (inserted, ignored int) {
	result, err := w.writeItem(ctx, item)
	if err == nil {
		return result.Inserted, result.Ignored
	}

	if ingesterr.IsPermanent(err) {
		w.deadLetter(ctx, item, err)
		return 0, 0
	}

	item.RetryCount++
	item.LastError = err.Error()
	if item.RetryCount >= w.cfg.MaxRetries {
		w.deadLetter(ctx, item, err)
		return 0, 0
	}

	metrics.WriterRetries.WithLabelValues(string(w.name)).Inc()
	backoff := Backoff(item.RetryCount)
	logging.Warn().Err(err).Str("flight_id", item.FlightID).Int("retry", item.RetryCount).
		Dur("backoff", backoff).Msg("writer retrying item")

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return 0, 0
	}
	return w.processItem(ctx, item)
}

// WriteDirect performs a single direct bulk insert for item, bypassing
// the queue but exercising the same FK check and bulk-insert path as
// the drain loop. Used by the HTTP ingest adapters' fallback when the
// queue itself is unreachable (spec §4.7: "bypassing the queue but not
// the Validator").
func (w *Worker) WriteDirect(ctx context.Context, item models.QueueItem) (store.BulkInsertResult, error) {
	return w.writeItem(ctx, item)
}

func (w *Worker) writeItem(ctx context.Context, item models.QueueItem) (store.BulkInsertResult, error) {
	exists, err := w.store.FlightExists(ctx, item.FlightID)
	if err != nil {
		return store.BulkInsertResult{}, ingesterr.Retryable(ingesterr.CategoryTransient, err)
	}
	if !exists {
		return store.BulkInsertResult{}, ingesterr.Permanent(ingesterr.CategoryIntegrity, string(models.DLQReasonForeignKeyMissing), nil)
	}

	points := make([]models.TrackPoint, 0, len(item.Points))
	for _, qp := range item.Points {
		ts, err := time.Parse(time.RFC3339, qp.Datetime)
		if err != nil {
			continue
		}
		points = append(points, models.TrackPoint{
			FlightID:  item.FlightID,
			Lat:       qp.Lat,
			Lon:       qp.Lon,
			Elevation: qp.Elevation,
			Timestamp: ts,
		})
	}
	if len(points) == 0 {
		return store.BulkInsertResult{}, ingesterr.Permanent(ingesterr.CategoryShape, string(models.DLQReasonInvalidShape), nil)
	}

	src := sourceForQueue(item.QueueType)
	result, err := w.breaker.Execute(func() (store.BulkInsertResult, error) {
		return w.store.BulkInsertPoints(ctx, src, item.FlightID, points)
	})
	if err != nil {
		metrics.RecordCircuitBreakerRequest("writer:"+string(w.name), "failure")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordCircuitBreakerRequest("writer:"+string(w.name), "rejected")
		}
		return store.BulkInsertResult{}, ingesterr.Retryable(ingesterr.CategoryTransient, err)
	}
	metrics.RecordCircuitBreakerRequest("writer:"+string(w.name), "success")

	if result.Inserted > 0 {
		last := points[len(points)-1]
		if err := w.store.RecordFix(ctx, item.FlightID, models.Fix{
			Lat: last.Lat, Lon: last.Lon, Elevation: last.Elevation, Timestamp: last.Timestamp,
		}, result.Inserted); err != nil {
			logging.Warn().Err(err).Str("flight_id", item.FlightID).Msg("failed to update flight fix stats")
		}
	}
	return result, nil
}

func sourceForQueue(name models.QueueName) models.Source {
	switch name {
	case models.QueueUploadPoints:
		return models.SourceUpload
	case models.QueueFlymasterPoints:
		return models.SourceFlymasterLive
	default:
		return models.SourceLive
	}
}

func (w *Worker) deadLetter(ctx context.Context, item models.QueueItem, cause error) {
	reason := models.DLQReasonOther
	if ingesterr.CategoryOf(cause) == ingesterr.CategoryIntegrity {
		reason = models.DLQReasonForeignKeyMissing
	} else if ingesterr.CategoryOf(cause) == ingesterr.CategoryShape {
		reason = models.DLQReasonInvalidShape
	} else if item.RetryCount >= w.cfg.MaxRetries {
		reason = models.DLQReasonMaxRetries
	}

	entry := models.DLQEntry{
		Item:        item,
		Reason:      reason,
		FailedAt:    time.Now().UTC(),
		Retries:     item.RetryCount,
		ErrorDetail: cause.Error(),
	}
	metrics.RecordDeadLetter(string(w.name), string(reason))
	if err := w.queue.ToDLQ(ctx, entry); err != nil {
		logging.Error().Err(err).Str("flight_id", item.FlightID).Msg("failed to write DLQ entry")
	}
}
