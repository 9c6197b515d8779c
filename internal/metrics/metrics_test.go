package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{"successful GET", "GET", "/tracking/live/summary", "200", 25 * time.Millisecond},
		{"unauthorized", "GET", "/tracking/admin/queue/status", "401", 5 * time.Millisecond},
		{"not found", "GET", "/tracking/unknown", "404", 2 * time.Millisecond},
		{"server error", "POST", "/tracking/live", "500", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

func TestRecordWriterBatch(t *testing.T) {
	RecordWriterBatch("live_points", 10*time.Millisecond, 100, 5)
	RecordWriterBatch("upload_points", 50*time.Millisecond, 0, 0)
}

func TestRecordDeadLetter(t *testing.T) {
	RecordDeadLetter("live_points", "constraint_violation")
	RecordDeadLetter("flymaster_points", "store_unavailable")
}

func TestUpdateQueueStats(t *testing.T) {
	UpdateQueueStats("live_points", 12, 0)
	UpdateQueueStats("live_points", 0, 3)
}

func TestCircuitBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := circuitBreakerStateValue(tt.state); got != tt.want {
			t.Errorf("circuitBreakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRecordCircuitBreakerState(t *testing.T) {
	RecordCircuitBreakerState("writer:live_points", "open")
	RecordCircuitBreakerState("writer:live_points", "closed")
}

func TestRecordCircuitBreakerRequest(t *testing.T) {
	RecordCircuitBreakerRequest("writer:live_points", "success")
	RecordCircuitBreakerRequest("writer:live_points", "failure")
	RecordCircuitBreakerRequest("writer:live_points", "rejected")
}

func TestFanoutAndGPSTCPMetricLabels(t *testing.T) {
	FanoutConnections.WithLabelValues("race1").Set(3)
	FanoutTickDuration.WithLabelValues("race1").Observe(0.05)
	FanoutDeltasSent.WithLabelValues("race1").Inc()

	GPSTCPConnections.Set(42)
	GPSTCPFramesDecoded.WithLabelValues("watch", "location").Inc()
	GPSTCPFramesRejected.WithLabelValues("malformed").Inc()
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		QueuePending,
		QueueDLQSize,
		QueueEnqueued,
		WriterPointsInserted,
		WriterPointsIgnored,
		WriterItemsDeadLettered,
		WriterRetries,
		WriterBatchDuration,
		CircuitBreakerState,
		CircuitBreakerRequests,
		FanoutConnections,
		FanoutTickDuration,
		FanoutDeltasSent,
		GPSTCPConnections,
		GPSTCPFramesDecoded,
		GPSTCPFramesRejected,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("metric has no descriptors")
		}
	}
}

func TestTrackActiveRequest(t *testing.T) {
	TrackActiveRequest(true)
	TrackActiveRequest(false)
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	const goroutines = 50
	const perGoroutine = 20

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				RecordAPIRequest("GET", "/tracking/live/summary", "200", time.Millisecond)
				RecordWriterBatch("live_points", time.Millisecond, 1, 0)
				UpdateQueueStats("live_points", int64(j), 0)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkRecordAPIRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordAPIRequest("GET", "/tracking/live/summary", "200", 25*time.Millisecond)
	}
}

func BenchmarkRecordWriterBatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordWriterBatch("live_points", 10*time.Millisecond, 100, 5)
	}
}
