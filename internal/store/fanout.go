package store

import (
	"context"
	"time"
)

// PilotPosition is one pilot's most recent known position as of a given
// instant, used by the fan-out tick to build delta_update payloads.
type PilotPosition struct {
	PilotID   string
	PilotName string
	Lat       float64
	Lon       float64
	Elevation *float64
	Timestamp time.Time
}

// LatestPositionsAsOf returns, for every pilot with a live flight in
// raceID, their most recent point at or before asOf (spec §4.6's
// delay_seconds gate). One row per pilot, picking the latest qualifying
// point per flight's pilot_id.
func (s *Store) LatestPositionsAsOf(ctx context.Context, raceID string, asOf time.Time) ([]PilotPosition, error) {
	rows, err := s.replica.Query(ctx, `
		SELECT DISTINCT ON (f.pilot_id)
			f.pilot_id, f.pilot_name, p.lat, p.lon, p.elevation, p.datetime
		FROM flights f
		JOIN live_track_points p ON p.flight_id = f.flight_id
		WHERE f.race_id = $1 AND p.datetime <= $2
		ORDER BY f.pilot_id, p.datetime DESC
	`, raceID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PilotPosition
	for rows.Next() {
		var p PilotPosition
		if err := rows.Scan(&p.PilotID, &p.PilotName, &p.Lat, &p.Lon, &p.Elevation, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
