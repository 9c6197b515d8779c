// Package main is the entry point for the trackcore ingestion backbone.
//
// trackcore ingests live and post-flight GPS tracks from paragliding
// competition pilots — mobile apps over HTTP, Flymaster-class trackers
// over HTTP batch upload, and raw Watch/TK905B and TK103 protocol trackers
// over a dedicated TCP front-end — separates each device's points into
// discrete flights, and fans delayed live positions out to spectators
// over WebSocket.
//
// # Application Architecture
//
// The server is a Suture v4 supervisor tree with four layers:
//
//	trackcore
//	├── ingest-layer      the GPS TCP front-end and the HTTP ingest API
//	├── writer-layer      one Worker per Redis queue family
//	├── fanout-layer      one WebSocket Hub per active race, added lazily
//	└── maintenance-layer retention sweep, DLQ reaper, queue stats poller
//
// A crash isolated to one layer does not take down the others: a panic
// in fan-out tile math does not stop Writers still draining the queues,
// and a Writer outage does not stop the front-end still accepting
// tracker connections.
//
// Component initialization order:
//
//  1. Configuration: Koanf v2, environment variables over an optional
//     config file over built-in defaults.
//  2. Logging: zerolog, JSON or console output.
//  3. Store: a primary/replica PostgreSQL pool pair (pgx/v5).
//  4. Queue: a Redis-backed priority queue (go-redis/v9).
//  5. Validator, Separator: the pre-write shape/FK checks and the
//     flight-separation engine, both backed by the Store.
//  6. Supervisor tree: every long-running component below is added to it.
//  7. Writer: one circuit-breaker-guarded Worker per queue family.
//  8. GPS TCP front-end, a producer into Queue.
//  9. Fan-out registry: WebSocket hubs, supervised individually.
//  10. HTTP ingest API, a producer into Queue, and the optional metrics
//     server.
//  11. Maintenance services, then the tree is started.
//
// # Configuration
//
// See internal/config for the full settings tree and environment
// variable names; config.yaml and environment variables layer over the
// built-in defaults, environment variables winning ties.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting new connections, in-flight requests get up to
// Server.ShutdownTimeout to complete, and every supervised service is
// given the tree's configured timeout to stop before being reported as
// unstopped.
package main
