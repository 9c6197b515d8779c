package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiMiddlewareConfig controls the CORS and rate-limit middleware built
// by NewChiMiddleware, trimmed from the teacher's many rate-limit tiers
// down to the two this domain needs: one per-IP limit for the ingest
// endpoints and a separate one for the query/admin endpoints.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string

	// IngestRPS bounds POST /tracking/* requests per source IP per second.
	IngestRPS int

	// QueryRPS bounds the read/admin surface per source IP per second.
	QueryRPS int
}

func (c ChiMiddlewareConfig) withDefaults() ChiMiddlewareConfig {
	if c.IngestRPS <= 0 {
		c.IngestRPS = 40
	}
	if c.QueryRPS <= 0 {
		c.QueryRPS = 20
	}
	return c
}

// ChiMiddleware bundles the CORS and rate-limit middleware shared by
// every route group.
type ChiMiddleware struct {
	cors   func(http.Handler) http.Handler
	ingest func(http.Handler) http.Handler
	query  func(http.Handler) http.Handler
}

// NewChiMiddleware builds a ChiMiddleware from config.
func NewChiMiddleware(config ChiMiddlewareConfig) *ChiMiddleware {
	config = config.withDefaults()

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	return &ChiMiddleware{
		cors: corsHandler,
		ingest: httprate.Limit(config.IngestRPS, time.Second,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimitedResponse),
		),
		query: httprate.Limit(config.QueryRPS, time.Second,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimitedResponse),
		),
	}
}

// CORS returns the shared CORS middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler { return m.cors }

// Ingest returns the rate limiter applied to the ingest route group.
func (m *ChiMiddleware) Ingest() func(http.Handler) http.Handler { return m.ingest }

// Query returns the rate limiter applied to the query/admin route group.
func (m *ChiMiddleware) Query() func(http.Handler) http.Handler { return m.query }

func rateLimitedResponse(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many requests", nil)
}
