package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paraglide-live/trackcore/internal/api"
	"github.com/paraglide-live/trackcore/internal/config"
	"github.com/paraglide-live/trackcore/internal/fanout"
	"github.com/paraglide-live/trackcore/internal/gpstcp"
	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/metrics"
	"github.com/paraglide-live/trackcore/internal/models"
	"github.com/paraglide-live/trackcore/internal/queue"
	"github.com/paraglide-live/trackcore/internal/separator"
	"github.com/paraglide-live/trackcore/internal/store"
	"github.com/paraglide-live/trackcore/internal/supervisor"
	"github.com/paraglide-live/trackcore/internal/supervisor/services"
	"github.com/paraglide-live/trackcore/internal/validator"
	"github.com/paraglide-live/trackcore/internal/writer"
)

// writerQueues lists the queue families that get their own drain
// Worker, matching every name queue.Queue knows how to report stats on.
var writerQueues = []models.QueueName{
	models.QueueLivePoints,
	models.QueueUploadPoints,
	models.QueueFlymasterPoints,
	models.QueueScoringPoints,
}

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().Msg("starting trackcore")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		PrimaryDSN:      cfg.Store.PrimaryDSN,
		ReplicaDSN:      cfg.Store.ReplicaDSN,
		MaxConns:        cfg.Store.MaxConns,
		MinConns:        cfg.Store.MinConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLife,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()
	logging.Info().Msg("store connected")

	q, err := queue.Dial(ctx, queue.Config{
		Addr:         cfg.Queue.Addr,
		Password:     cfg.Queue.Password,
		DB:           cfg.Queue.DB,
		MaxConns:     cfg.Queue.MaxConns,
		DialTimeout:  cfg.Queue.DialTimeout,
		ReadTimeout:  cfg.Queue.ReadTimeout,
		WriteTimeout: cfg.Queue.WriteTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to dial queue")
	}
	defer func() {
		if err := q.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing queue")
		}
	}()
	logging.Info().Msg("queue connected")

	val := validator.New(st)
	sep := separator.New(st, separator.Config{
		InactivityGap:   time.Duration(cfg.Separator.NewFlightGapMinutes) * time.Minute,
		LandingWindow:   time.Duration(cfg.Separator.LandingGapMinutes) * time.Minute,
		MinSpeedKMH:     cfg.Separator.LandingSpeedKMH,
		MaxAltitudeVarM: cfg.Separator.LandingElevationDrop,
	})

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	// One Worker per queue family, each with its own circuit breaker, so
	// a Store outage draining one family doesn't trip the breaker for
	// the others. Each Worker doubles as the HTTP ingest adapters'
	// direct-write fallback when the queue itself is unreachable.
	writerCfg := writer.Config{
		BatchSize:    cfg.Writer.BatchSize,
		PollInterval: cfg.Writer.PollInterval,
		MaxRetries:   cfg.Writer.MaxRetries,
	}
	workers := make(map[models.QueueName]*writer.Worker, len(writerQueues))
	for _, name := range writerQueues {
		w := writer.NewWorker(name, q, st, writerCfg)
		workers[name] = w
		tree.AddWriterService(w)
	}
	logging.Info().Int("count", len(workers)).Msg("writer workers started")

	gpsServer := gpstcp.NewServer(gpstcp.Config{Addr: cfg.GPSTCP.Addr}, st, sep, q)
	tree.AddIngestService(gpsServer)
	logging.Info().Str("addr", cfg.GPSTCP.Addr).Msg("GPS TCP front-end added")

	var fanoutRegistry *fanout.Registry
	if cfg.Security.JWTSecret != "" {
		verifier, err := fanout.NewTokenVerifier(cfg.Security.JWTSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to build fan-out token verifier")
		}
		fanoutRegistry = fanout.NewRegistry(st, st, verifier, fanout.Config{
			UpdateInterval:    cfg.Fanout.UpdateInterval,
			DelaySeconds:      cfg.Fanout.DelaySeconds,
			InterpolationRate: cfg.Fanout.InterpolationRate,
		}, tree)
		logging.Info().Msg("fan-out registry enabled")
	} else {
		logging.Warn().Msg("TRACKCORE_SECURITY_JWT_SECRET not set - live-viewer WebSocket fan-out disabled")
	}

	handler := api.NewHandler(st, q, val, sep, api.Writers{
		Live:      workers[models.QueueLivePoints],
		Upload:    workers[models.QueueUploadPoints],
		Flymaster: workers[models.QueueFlymasterPoints],
	}, fanoutRegistry)

	router := api.NewRouter(handler, api.RouterConfig{
		Middleware: api.ChiMiddlewareConfig{
			CORSAllowedOrigins: cfg.Security.CORSOrigins,
			IngestRPS:          cfg.Security.RateLimitRPS,
			QueryRPS:           cfg.Security.RateLimitRPS,
		},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddIngestService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP ingest API added")

	if cfg.Server.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
		tree.AddMaintenanceService(services.NewHTTPServerService(metricsServer, 5*time.Second))
		logging.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics endpoint added")
	}

	tree.AddMaintenanceService(services.NewRetentionSweepService(st, cfg.Store.RetentionAfter, 24*time.Hour))
	tree.AddMaintenanceService(services.NewDLQReaperService(q, 7*24*time.Hour, 24*time.Hour))
	tree.AddMaintenanceService(services.NewQueueStatsReporterService(func(ctx context.Context) error {
		stats, err := q.Stats(ctx)
		if err != nil {
			return err
		}
		for name, s := range stats {
			metrics.UpdateQueueStats(string(name), s.Pending, s.DLQSize)
		}
		return nil
	}, 10*time.Second))
	logging.Info().Msg("maintenance services added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("trackcore stopped gracefully")
}
