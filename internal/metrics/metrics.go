// Trackcore - Paragliding competition live-tracking ingestion backbone
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the ingestion backbone: queue depth and
// DLQ size per queue family, Writer throughput and error counts, the
// circuit breaker state each Writer runs behind, fan-out connection and
// tick counts, and generic HTTP request metrics for the ingest API.

var (
	// Queue metrics
	QueuePending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackcore_queue_pending",
			Help: "Current number of items pending in a queue family's sorted set",
		},
		[]string{"queue"},
	)

	QueueDLQSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackcore_queue_dlq_size",
			Help: "Current number of items in a queue family's dead letter queue",
		},
		[]string{"queue"},
	)

	QueueEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_queue_enqueued_total",
			Help: "Total number of points enqueued, by queue family",
		},
		[]string{"queue"},
	)

	// Writer metrics
	WriterPointsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_writer_points_inserted_total",
			Help: "Total number of points successfully written to the Store",
		},
		[]string{"queue"},
	)

	WriterPointsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_writer_points_ignored_total",
			Help: "Total number of points ignored on conflict (already present)",
		},
		[]string{"queue"},
	)

	WriterItemsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_writer_items_dead_lettered_total",
			Help: "Total number of queue items routed to the DLQ, by reason",
		},
		[]string{"queue", "reason"},
	)

	WriterRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_writer_retries_total",
			Help: "Total number of retry attempts for transient write failures",
		},
		[]string{"queue"},
	)

	WriterBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackcore_writer_batch_duration_seconds",
			Help:    "Duration of one Writer drain pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// Circuit breaker metrics, grounded on the teacher's circuit_breaker_state pattern
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackcore_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	// Fan-out metrics
	FanoutConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackcore_fanout_connections",
			Help: "Current number of connected WebSocket viewers, by race",
		},
		[]string{"race_id"},
	)

	FanoutTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackcore_fanout_tick_duration_seconds",
			Help:    "Duration of one fan-out hub tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"race_id"},
	)

	FanoutDeltasSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_fanout_deltas_sent_total",
			Help: "Total number of delta_update frames sent to clients",
		},
		[]string{"race_id"},
	)

	// GPS TCP front-end metrics
	GPSTCPConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackcore_gpstcp_connections",
			Help: "Current number of open tracker TCP connections",
		},
	)

	GPSTCPFramesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_gpstcp_frames_decoded_total",
			Help: "Total number of tracker frames successfully decoded",
		},
		[]string{"protocol", "kind"},
	)

	GPSTCPFramesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_gpstcp_frames_rejected_total",
			Help: "Total number of malformed or rate-limited tracker frames",
		},
		[]string{"reason"},
	)

	// Generic HTTP ingest API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackcore_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackcore_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackcore_api_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)
)

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordWriterBatch records one Writer drain pass outcome.
func RecordWriterBatch(queue string, duration time.Duration, inserted, ignored int) {
	WriterBatchDuration.WithLabelValues(queue).Observe(duration.Seconds())
	WriterPointsInserted.WithLabelValues(queue).Add(float64(inserted))
	WriterPointsIgnored.WithLabelValues(queue).Add(float64(ignored))
}

// RecordDeadLetter records one item routed to a queue's DLQ.
func RecordDeadLetter(queue, reason string) {
	WriterItemsDeadLettered.WithLabelValues(queue, reason).Inc()
}

// UpdateQueueStats sets the pending/DLQ gauges for one queue family.
func UpdateQueueStats(queue string, pending, dlqSize int64) {
	QueuePending.WithLabelValues(queue).Set(float64(pending))
	QueueDLQSize.WithLabelValues(queue).Set(float64(dlqSize))
}

// circuitBreakerStateValue maps gobreaker's state names to the gauge's
// numeric encoding.
func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitBreakerState updates the state gauge for a named breaker.
func RecordCircuitBreakerState(name, state string) {
	CircuitBreakerState.WithLabelValues(name).Set(circuitBreakerStateValue(state))
}

// RecordCircuitBreakerRequest records one request's outcome through a
// named breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
