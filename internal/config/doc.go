// Trackcore - Paragliding competition live-tracking ingestion backbone

/*
Package config loads and validates the ingestion backbone's
configuration.

# Configuration Sources

LoadWithKoanf layers configuration from, in increasing priority:
  - Built-in struct defaults (defaultConfig)
  - An optional YAML file (CONFIG_PATH, or the first of DefaultConfigPaths found)
  - Environment variables prefixed TRACKCORE_ (e.g. TRACKCORE_SERVER_ADDR)

# Configuration Structure

  - ServerConfig: the ingest HTTP API listener
  - StoreConfig: PostgreSQL primary/replica pools and retention
  - QueueConfig: the Redis priority queue connection
  - WriterConfig: Worker batching and retry behavior
  - SeparatorConfig: flight-separation thresholds
  - GPSTCPConfig: the raw tracker TCP front-end's address (its limit fields are not applied by the server)
  - FanoutConfig: the WebSocket live-viewer hub cadence
  - SecurityConfig: JWT secret, CORS, and rate limiting
  - LoggingConfig: zerolog level and output format
*/
package config
