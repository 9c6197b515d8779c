package services

import (
	"context"
	"time"

	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/models"
)

// RetentionStore is the subset of store.Store the retention sweep needs.
type RetentionStore interface {
	DeleteLivePointsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteLiveFlightsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweepService deletes live-source track points and flights
// older than its retention window once a day, per spec's "destroyed by
// retention sweep 48 hours after creation when source == live".
type RetentionSweepService struct {
	store     RetentionStore
	retention time.Duration
	interval  time.Duration
}

// NewRetentionSweepService builds a RetentionSweepService. retention is
// how old a live flight must be before it's purged; interval is how
// often the sweep runs (daily in production).
func NewRetentionSweepService(store RetentionStore, retention, interval time.Duration) *RetentionSweepService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionSweepService{store: store, retention: retention, interval: interval}
}

// Serve implements suture.Service.
func (s *RetentionSweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RetentionSweepService) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)

	points, err := s.store.DeleteLivePointsOlderThan(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("retention sweep: delete live points failed")
	} else if points > 0 {
		logging.Info().Int64("rows", points).Msg("retention sweep: deleted live track points")
	}

	flights, err := s.store.DeleteLiveFlightsCreatedBefore(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("retention sweep: delete live flights failed")
	} else if flights > 0 {
		logging.Info().Int64("rows", flights).Msg("retention sweep: deleted live flights")
	}
}

// String implements fmt.Stringer.
func (s *RetentionSweepService) String() string { return "retention-sweep" }

// DLQReaper is the subset of queue.Queue the DLQ reaper needs.
type DLQReaper interface {
	ReapDLQOlderThan(ctx context.Context, name models.QueueName, cutoff time.Time) (int, error)
}

var reapableQueues = []models.QueueName{
	models.QueueLivePoints,
	models.QueueUploadPoints,
	models.QueueFlymasterPoints,
	models.QueueScoringPoints,
}

// DLQReaperService purges Dead Letter Queue entries older than its
// retention window once a day, so a producer outage doesn't let the DLQ
// grow unbounded.
type DLQReaperService struct {
	queue     DLQReaper
	retention time.Duration
	interval  time.Duration
}

// NewDLQReaperService builds a DLQReaperService.
func NewDLQReaperService(queue DLQReaper, retention, interval time.Duration) *DLQReaperService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &DLQReaperService{queue: queue, retention: retention, interval: interval}
}

// Serve implements suture.Service.
func (s *DLQReaperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reap(ctx)
		}
	}
}

func (s *DLQReaperService) reap(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	for _, name := range reapableQueues {
		n, err := s.queue.ReapDLQOlderThan(ctx, name, cutoff)
		if err != nil {
			logging.Warn().Err(err).Str("queue", string(name)).Msg("dlq reaper: reap failed")
			continue
		}
		if n > 0 {
			logging.Info().Int("reaped", n).Str("queue", string(name)).Msg("dlq reaper: purged entries")
		}
	}
}

// String implements fmt.Stringer.
func (s *DLQReaperService) String() string { return "dlq-reaper" }

// QueueStatsReporterService polls queue depth and DLQ size on a fixed
// interval and feeds them into the Prometheus gauges, so /metrics stays
// current even between Writer drain passes.
type QueueStatsReporterService struct {
	poll     func(ctx context.Context) error
	interval time.Duration
}

// NewQueueStatsReporterService builds a QueueStatsReporterService. poll
// is called once per interval; the concrete closure typically wraps
// queue.Queue.Stats and forwards each queue family into
// metrics.UpdateQueueStats.
func NewQueueStatsReporterService(poll func(ctx context.Context) error, interval time.Duration) *QueueStatsReporterService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &QueueStatsReporterService{poll: poll, interval: interval}
}

// Serve implements suture.Service.
func (s *QueueStatsReporterService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				logging.Warn().Err(err).Msg("queue stats reporter: poll failed")
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *QueueStatsReporterService) String() string { return "queue-stats-reporter" }
