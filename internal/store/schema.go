package store

import "context"

// schemaSQL creates the races/flights/track point tables idempotently.
// Live and uploaded points are split into separate tables (spec §3): the
// live table is high write-volume and short-retention, the upload table
// is written once per file and kept indefinitely.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS races (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	end_date   TIMESTAMPTZ NOT NULL,
	timezone   TEXT NOT NULL DEFAULT 'UTC',
	location   TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flights (
	flight_id     TEXT PRIMARY KEY,
	flight_uuid   UUID NOT NULL DEFAULT gen_random_uuid(),
	race_id       TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	pilot_id      TEXT NOT NULL,
	pilot_name    TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	device_id     TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	first_fix     JSONB,
	last_fix      JSONB,
	total_points  INTEGER NOT NULL DEFAULT 0,
	flight_state  JSONB
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_flights_uuid ON flights(flight_uuid);
CREATE INDEX IF NOT EXISTS idx_flights_race ON flights(race_id);
CREATE INDEX IF NOT EXISTS idx_flights_pilot ON flights(pilot_id);
CREATE INDEX IF NOT EXISTS idx_flights_device ON flights(device_id) WHERE device_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS live_track_points (
	id         BIGSERIAL PRIMARY KEY,
	flight_id  TEXT NOT NULL REFERENCES flights(flight_id) ON DELETE CASCADE,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	elevation  DOUBLE PRECISION,
	datetime   TIMESTAMPTZ NOT NULL,
	UNIQUE (flight_id, datetime, lat, lon)
);

CREATE INDEX IF NOT EXISTS idx_live_points_flight_time ON live_track_points(flight_id, datetime);

CREATE TABLE IF NOT EXISTS uploaded_track_points (
	id         BIGSERIAL PRIMARY KEY,
	flight_id  TEXT NOT NULL REFERENCES flights(flight_id) ON DELETE CASCADE,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	elevation  DOUBLE PRECISION,
	datetime   TIMESTAMPTZ NOT NULL,
	UNIQUE (flight_id, datetime, lat, lon)
);

CREATE INDEX IF NOT EXISTS idx_upload_points_flight_time ON uploaded_track_points(flight_id, datetime);

CREATE TABLE IF NOT EXISTS device_registrations (
	device_id   TEXT PRIMARY KEY,
	race_id     TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	pilot_id    TEXT NOT NULL,
	pilot_name  TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// CreateSchema creates all tables and indexes if they do not already
// exist. Safe to call on every startup.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.primary.Exec(ctx, schemaSQL)
	return err
}
