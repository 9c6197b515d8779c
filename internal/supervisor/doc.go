/*
Package supervisor provides process supervision for the ingestion backbone
using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the application. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation, and
graceful shutdown.

# Overview

The supervisor tree organizes services into four layers for failure isolation:

	RootSupervisor ("trackcore")
	├── IngestSupervisor ("ingest-layer")
	│   ├── GPSTCPServerService
	│   └── HTTPServerService
	├── WriterSupervisor ("writer-layer")
	│   └── one WriterService per queue family
	├── FanoutSupervisor ("fanout-layer")
	│   └── one race Hub, added/removed as races start and conclude
	└── MaintenanceSupervisor ("maintenance-layer")
	    ├── DLQReaperService
	    ├── RetentionSweepService
	    └── QueueStatsReporterService

This hierarchy ensures that:
  - A crash in one race's fan-out Hub doesn't affect any other race or the
    ingest front-end
  - A Writer crash for one queue family doesn't stop tracker ingestion
  - The retention sweep and DLQ reaper run independently of live traffic

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - A fixed FailureBackoff pause, once failures pass the threshold,
    prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Services are organized into logical groups
  - Child supervisor failures don't propagate upward
  - Each layer has independent failure counting

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Integration with slog for structured events
  - Logs service starts, stops, failures, and restarts
  - Event hooks via sutureslog adapter

# Usage Example

Basic setup in main.go:

	import (
	    "log/slog"
	    "github.com/paraglide-live/trackcore/internal/supervisor"
	)

	func main() {
	    logger := slog.Default()
	    config := supervisor.DefaultTreeConfig()

	    tree, err := supervisor.NewSupervisorTree(logger, config)
	    if err != nil {
	        log.Fatal(err)
	    }

	    tree.AddIngestService(gpstcpServer)
	    tree.AddWriterService(livePointsWriter)
	    tree.AddMaintenanceService(dlqReaper)

	    // fanout.Registry adds/removes race Hubs itself via the
	    // HubSupervisor interface, using tree's AddFanoutService.

	    ctx := context.Background()
	    if err := tree.Serve(ctx); err != nil {
	        log.Printf("supervisor stopped: %v", err)
	    }
	}

Background operation:

	errChan := tree.ServeBackground(ctx)
	// ... other setup ...
	if err := <-errChan; err != nil {
	    log.Printf("supervisor error: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,             // Failures before backoff
	    FailureDecay:     30.0,            // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults.

# Failure Handling

The supervisor uses a failure counter with exponential decay:

 1. Each service failure increments the counter
 2. Counter decays exponentially over time (FailureDecay seconds)
 3. When counter exceeds FailureThreshold, supervisor enters backoff
 4. During backoff, restarts are delayed by FailureBackoff duration

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: service stopped cleanly, will not be restarted
  - Return error: service crashed, will be restarted
  - Context canceled: shutdown requested, return promptly

# What Is NOT Supervised

Redis and PostgreSQL connection pools are not supervised directly - they
are managed by the queue and store packages and reconnect internally; a
Writer's circuit breaker provides failure isolation against a down
PostgreSQL instance without needing the supervisor to restart anything.

# Debugging Shutdown Issues

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service didn't stop: %v", svc)
	}

Common causes: goroutines not respecting context cancellation, blocked
network I/O without deadlines, mutex deadlocks during shutdown.

# See Also

  - github.com/thejerf/suture/v4: underlying library
  - internal/fanout: race Hub lifecycle, supervised via HubSupervisor
*/
package supervisor
