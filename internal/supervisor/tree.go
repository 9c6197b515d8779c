package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production-ready defaults, matching suture's
// own built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SupervisorTree manages the hierarchical supervisor structure for the
// ingestion backbone.
//
// The tree is organized into four layers:
//   - ingest: the GPS TCP front-end and the HTTP ingest API
//   - writers: one Worker per queue family, draining Redis into PostgreSQL
//   - fanout: the WebSocket live-viewer hub registry
//   - maintenance: the DLQ reaper and the retention sweep
//
// This structure provides failure isolation - a crash in the fan-out
// layer (e.g. a panic in tile math) won't take down the Writers still
// draining the queues, and a Writer crash won't take down the front-end
// still accepting tracker connections.
type SupervisorTree struct {
	root        *suture.Supervisor
	ingest      *suture.Supervisor
	writers     *suture.Supervisor
	fanout      *suture.Supervisor
	maintenance *suture.Supervisor
	logger      *slog.Logger
	config      TreeConfig
}

// NewSupervisorTree creates a new supervisor tree with the given configuration.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("trackcore", rootSpec)
	ingest := suture.New("ingest-layer", childSpec)
	writers := suture.New("writer-layer", childSpec)
	fanout := suture.New("fanout-layer", childSpec)
	maintenance := suture.New("maintenance-layer", childSpec)

	root.Add(ingest)
	root.Add(writers)
	root.Add(fanout)
	root.Add(maintenance)

	return &SupervisorTree{
		root:        root,
		ingest:      ingest,
		writers:     writers,
		fanout:      fanout,
		maintenance: maintenance,
		logger:      logger,
		config:      config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddIngestService adds a service to the ingest layer supervisor: the
// GPS TCP front-end and the HTTP ingest API.
func (t *SupervisorTree) AddIngestService(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// AddWriterService adds a Worker to the writer layer supervisor.
func (t *SupervisorTree) AddWriterService(svc suture.Service) suture.ServiceToken {
	return t.writers.Add(svc)
}

// AddFanoutService adds a service to the fan-out layer supervisor.
func (t *SupervisorTree) AddFanoutService(svc suture.Service) suture.ServiceToken {
	return t.fanout.Add(svc)
}

// AddMaintenanceService adds a service to the maintenance layer
// supervisor: the DLQ reaper and the retention sweep.
func (t *SupervisorTree) AddMaintenanceService(svc suture.Service) suture.ServiceToken {
	return t.maintenance.Add(svc)
}

// RemoveFanoutService removes a service from the fan-out layer
// supervisor, e.g. a race Hub once its race has concluded.
func (t *SupervisorTree) RemoveFanoutService(token suture.ServiceToken) error {
	return t.fanout.Remove(token)
}

// Serve starts the supervisor tree and blocks until the context is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns information about services that failed
// to stop within the configured shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Remove removes a service added directly to the root supervisor by its
// token. Tokens returned by the Add*Service methods belong to the layer
// supervisors and are not accepted here; use RemoveFanoutService for the
// fan-out layer.
func (t *SupervisorTree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// RemoveAndWait removes a service added directly to the root supervisor
// and waits for it to fully stop. The same token limitation as Remove
// applies.
func (t *SupervisorTree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return t.root.RemoveAndWait(token, timeout)
}
