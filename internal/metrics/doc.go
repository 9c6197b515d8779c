/*
Package metrics registers and updates the process's Prometheus metrics.

Metrics are exposed at /metrics by the optional metrics HTTP server added to
the maintenance supervisor layer when Server.MetricsAddr is configured.

# Available metrics

Queue:
  - trackcore_queue_pending: per-queue pending item count (gauge, label queue)
  - trackcore_queue_dlq_size: per-queue dead-letter count (gauge, label queue)
  - trackcore_queue_enqueued_total: points enqueued (counter, label queue)

Writer:
  - trackcore_writer_points_inserted_total / _ignored_total (counter, label queue)
  - trackcore_writer_items_dead_lettered_total (counter, labels queue, reason)
  - trackcore_writer_retries_total (counter, label queue)
  - trackcore_writer_batch_duration_seconds (histogram, label queue)

Circuit breaker:
  - trackcore_circuit_breaker_state (gauge, label name; 0=closed 1=half-open 2=open)
  - trackcore_circuit_breaker_requests_total (counter, labels name, result)

Fan-out:
  - trackcore_fanout_connections (gauge, label race_id)
  - trackcore_fanout_tick_duration_seconds (histogram, label race_id)
  - trackcore_fanout_deltas_sent_total (counter, label race_id)

GPS TCP front-end:
  - trackcore_gpstcp_connections (gauge, no labels)
  - trackcore_gpstcp_frames_decoded_total (counter, labels protocol, kind)
  - trackcore_gpstcp_frames_rejected_total (counter, label reason)

HTTP ingest API:
  - trackcore_api_requests_total (counter, labels method, endpoint, status_code)
  - trackcore_api_request_duration_seconds (histogram, labels method, endpoint)
  - trackcore_api_active_requests (gauge)

# Cardinality

Queue labels are bounded by the four fixed QueueName constants,
and race_id cardinality is bounded by the number of concurrently active
races. The endpoint label recorded by middleware.PrometheusMetrics is the
raw request path, so its cardinality is not bounded by the route table.
*/
package metrics
