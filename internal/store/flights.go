package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"github.com/paraglide-live/trackcore/internal/models"
)

// FlightExists is the FK-prevalidation check the Validator runs before
// queuing a point for a producer-assigned flight_id (spec §4.2).
func (s *Store) FlightExists(ctx context.Context, flightID string) (bool, error) {
	var exists bool
	err := s.replica.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM flights WHERE flight_id = $1)`, flightID).Scan(&exists)
	return exists, err
}

// GetFlight retrieves a flight by its composite ID.
func (s *Store) GetFlight(ctx context.Context, flightID string) (*models.Flight, error) {
	var f models.Flight
	var firstFixJSON, lastFixJSON, stateJSON []byte
	err := s.replica.QueryRow(ctx, `
		SELECT flight_id, race_id, pilot_id, pilot_name, source, device_id, created_at,
		       first_fix, last_fix, total_points, flight_state
		FROM flights WHERE flight_id = $1
	`, flightID).Scan(&f.ID, &f.RaceID, &f.PilotID, &f.PilotName, &f.Source, &f.DeviceID, &f.CreatedAt,
		&firstFixJSON, &lastFixJSON, &f.TotalPoints, &stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	decodeFlightJSON(&f, firstFixJSON, lastFixJSON, stateJSON)
	return &f, nil
}

// GetActiveFlightForDevice returns the most recently created flight for
// a tracker device, used by the separator on a device->flight cache
// miss (spec §4.4).
func (s *Store) GetActiveFlightForDevice(ctx context.Context, deviceID string) (*models.Flight, error) {
	var f models.Flight
	var firstFixJSON, lastFixJSON, stateJSON []byte
	err := s.replica.QueryRow(ctx, `
		SELECT flight_id, race_id, pilot_id, pilot_name, source, device_id, created_at,
		       first_fix, last_fix, total_points, flight_state
		FROM flights
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, deviceID).Scan(&f.ID, &f.RaceID, &f.PilotID, &f.PilotName, &f.Source, &f.DeviceID, &f.CreatedAt,
		&firstFixJSON, &lastFixJSON, &f.TotalPoints, &stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	decodeFlightJSON(&f, firstFixJSON, lastFixJSON, stateJSON)
	return &f, nil
}

func decodeFlightJSON(f *models.Flight, firstFixJSON, lastFixJSON, stateJSON []byte) {
	if len(firstFixJSON) > 0 {
		var fix models.Fix
		if json.Unmarshal(firstFixJSON, &fix) == nil {
			f.FirstFix = &fix
		}
	}
	if len(lastFixJSON) > 0 {
		var fix models.Fix
		if json.Unmarshal(lastFixJSON, &fix) == nil {
			f.LastFix = &fix
		}
	}
	if len(stateJSON) > 0 {
		var st models.FlightState
		if json.Unmarshal(stateJSON, &st) == nil {
			f.FlightState = &st
		}
	}
}

// CreateFlight inserts a new flight row, assigning a fresh UUID. It is
// idempotent on flight_id: a racing writer that loses the insert race
// just reuses the row the other writer created.
func (s *Store) CreateFlight(ctx context.Context, f models.Flight) error {
	_, err := s.primary.Exec(ctx, `
		INSERT INTO flights (flight_id, flight_uuid, race_id, pilot_id, pilot_name, source, device_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (flight_id) DO NOTHING
	`, f.ID, uuid.New(), f.RaceID, f.PilotID, f.PilotName, f.Source, f.DeviceID, f.CreatedAt)
	return err
}

// UpdateFlightState persists the separator's landing-detection rolling
// state so it survives process restarts.
func (s *Store) UpdateFlightState(ctx context.Context, flightID string, state models.FlightState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.primary.Exec(ctx, `UPDATE flights SET flight_state = $2 WHERE flight_id = $1`, flightID, blob)
	return err
}

// RecordFix applies the application-level equivalent of the original
// implementation's database triggers: first_fix is set only if unset,
// last_fix is overwritten unconditionally, total_points accumulates.
func (s *Store) RecordFix(ctx context.Context, flightID string, fix models.Fix, pointCount int) error {
	blob, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	_, err = s.primary.Exec(ctx, `
		UPDATE flights SET
			first_fix = COALESCE(first_fix, $2::jsonb),
			last_fix = $2::jsonb,
			total_points = total_points + $3
		WHERE flight_id = $1
	`, flightID, blob, pointCount)
	return err
}

// ListFlightsByPilot returns every flight recorded for a pilot within a
// race, newest first.
func (s *Store) ListFlightsByPilot(ctx context.Context, raceID, pilotID string) ([]models.Flight, error) {
	rows, err := s.replica.Query(ctx, `
		SELECT flight_id, race_id, pilot_id, pilot_name, source, device_id, created_at,
		       first_fix, last_fix, total_points, flight_state
		FROM flights
		WHERE race_id = $1 AND pilot_id = $2
		ORDER BY created_at DESC
	`, raceID, pilotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flights []models.Flight
	for rows.Next() {
		var f models.Flight
		var firstFixJSON, lastFixJSON, stateJSON []byte
		if err := rows.Scan(&f.ID, &f.RaceID, &f.PilotID, &f.PilotName, &f.Source, &f.DeviceID, &f.CreatedAt,
			&firstFixJSON, &lastFixJSON, &f.TotalPoints, &stateJSON); err != nil {
			return nil, err
		}
		decodeFlightJSON(&f, firstFixJSON, lastFixJSON, stateJSON)
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// DeleteFlightsByPilot removes every flight (and, via cascade, every
// track point) for a pilot within a race. Backs the
// delete-pilot-flights-async admin operation.
func (s *Store) DeleteFlightsByPilot(ctx context.Context, raceID, pilotID string) (int64, error) {
	tag, err := s.primary.Exec(ctx, `DELETE FROM flights WHERE race_id = $1 AND pilot_id = $2`, raceID, pilotID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteFlightByUUID removes a single flight (and its points) by its
// public flight_uuid, used by the tracks/fuuid-async operation.
func (s *Store) DeleteFlightByUUID(ctx context.Context, flightUUID string) (int64, error) {
	tag, err := s.primary.Exec(ctx, `DELETE FROM flights WHERE flight_uuid = $1`, flightUUID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteLiveFlightsCreatedBefore removes every live-source flight (and,
// via cascade, its track points) created before cutoff, backing the
// daily retention sweep.
func (s *Store) DeleteLiveFlightsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.primary.Exec(ctx,
		`DELETE FROM flights WHERE source = 'live' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
