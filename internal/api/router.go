package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/paraglide-live/trackcore/internal/middleware"
)

// RouterConfig controls CORS origins and rate limits for the built
// router; everything else (handlers, fan-out) comes from the Handler.
type RouterConfig struct {
	Middleware ChiMiddlewareConfig
}

// NewRouter builds the chi.Router mounting every HTTP endpoint this
// service exposes, wrapped in the teacher's standard middleware stack
// (request ID, panic recovery, real-IP, compression, Prometheus
// instrumentation) generalized from media-server routes to the ingest
// and live-tracking surface.
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	mw := NewChiMiddleware(cfg.Middleware)

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(adaptHandlerFunc(middleware.RequestID))
	r.Use(adaptHandlerFunc(middleware.PrometheusMetrics))
	r.Use(adaptHandlerFunc(middleware.Compression))
	r.Use(mw.CORS())

	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)

	r.Route("/tracking", func(tr chi.Router) {
		tr.Group(func(ingest chi.Router) {
			ingest.Use(mw.Ingest())
			ingest.Post("/live", h.HandleLive)
			ingest.Post("/upload", h.HandleUpload)
			ingest.Post("/flymaster/*", h.HandleFlymaster)
		})

		tr.Group(func(query chi.Router) {
			query.Use(mw.Query())
			query.Get("/live/summary", h.HandleLiveSummary)
			query.Get("/live/pilot/{pilot_id}/flights", h.HandlePilotFlights)
			query.Delete("/admin/delete-pilot-flights-async/{pilot_id}", h.HandleDeletePilotFlights)
			query.Delete("/tracks/fuuid-async/{flight_uuid}", h.HandleDeleteFlightByUUID)
			query.Get("/deletion-status/{deletion_id}", h.HandleDeletionStatus)
		})
	})

	r.Route("/queue", func(qr chi.Router) {
		qr.Use(mw.Query())
		qr.Get("/status", h.HandleQueueStatus)
	})

	r.Route("/admin/queue", func(ar chi.Router) {
		ar.Use(mw.Query())
		ar.Get("/{queue_name}/dlq-size", h.HandleQueueDLQSize)
		ar.Delete("/{queue_name}", h.HandleQueueClear)
	})

	if h.fanout != nil {
		r.Get("/ws/live/{race_id}", h.fanout.ServeHTTP)
	}

	return r
}

// adaptHandlerFunc lifts a func(http.HandlerFunc) http.HandlerFunc
// middleware (the shape internal/middleware's helpers are written in)
// into the func(http.Handler) http.Handler shape chi.Router.Use expects.
func adaptHandlerFunc(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
