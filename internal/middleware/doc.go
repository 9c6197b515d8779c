// Trackcore - Paragliding competition live-tracking ingestion backbone

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. CORS and
rate limiting are applied by internal/api's chi router, not by this package.

Key Components:

  - Compression: Gzip compression of every response when the client accepts gzip
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The middleware composes as plain http.HandlerFunc wrappers:

	http.HandleFunc("/endpoint",
	    middleware.PrometheusMetrics( // Metrics
	        middleware.Compression(    // Gzip
	            middleware.RequestID(  // Request tracking
	                handler,           // Business logic
	            ),
	        ),
	    ),
	)

Usage Example - Compression:

	import "github.com/paraglide-live/trackcore/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/data",
	    middleware.Compression(handler),
	)

	// Responses are compressed whatever their size
	// Accept-Encoding: gzip header is required

Usage Example - Performance Monitoring:

	// Create performance monitor keeping the last 1000 requests
	perfMon := middleware.NewPerformanceMonitor(1000)

	// Wrap handler (an http.Handler)
	http.Handle("/api/v1/stats",
	    perfMon.Middleware(handler),
	)

	// Get per-endpoint statistics
	for _, s := range perfMon.GetStats() {
	    fmt.Printf("%s p50: %dms, p95: %dms, p99: %dms\n",
	        s.Path, s.P50Duration, s.P95Duration, s.P99Duration)
	}

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: mutex-guarded slice of recent latency samples

Compression Details:

The compression middleware:
  - Compresses every response, with no size threshold or mime-type filter
  - Supports gzip encoding (Accept-Encoding: gzip)
  - Skips WebSocket upgrade requests
  - Automatically sets Content-Encoding header and removes Content-Length
  - Does not flush compressed data before the handler returns

Performance Monitor:

The performance monitor tracks:
  - Per-endpoint request count and status code of each sample
  - Latency percentiles (p50, p95, p99), minimum, maximum and average
  - Sliding window of the maxMetrics most recent requests
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression takes a gzip writer from a sync.Pool for each request
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
