package store

import (
	"context"
	"time"
)

// PilotSummary is one pilot's row in the GET /tracking/live/summary
// response, capped to the 100 most recently active pilots in a race.
type PilotSummary struct {
	PilotID      string
	PilotName    string
	FlightCount  int
	LastActivity *time.Time
}

// LiveSummary aggregates flight activity for a race, backing
// GET /tracking/live/summary (spec §6).
type LiveSummary struct {
	TotalFlights     int
	TotalPilots      int
	EarliestActivity *time.Time
	LatestActivity   *time.Time
	Pilots           []PilotSummary
}

// maxSummaryPilots caps the per-pilot breakdown, per spec §6 "capped at
// 100 pilots".
const maxSummaryPilots = 100

// LiveSummary returns the aggregate and per-pilot activity summary for
// a race, read from the replica pool since it's a hot, read-only query
// (spec §6: "must respond under 1 s").
func (s *Store) LiveSummary(ctx context.Context, raceID string) (LiveSummary, error) {
	var sum LiveSummary
	err := s.replica.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT pilot_id),
			MIN((first_fix->>'timestamp')::timestamptz),
			MAX((last_fix->>'timestamp')::timestamptz)
		FROM flights
		WHERE race_id = $1
	`, raceID).Scan(&sum.TotalFlights, &sum.TotalPilots, &sum.EarliestActivity, &sum.LatestActivity)
	if err != nil {
		return LiveSummary{}, err
	}

	rows, err := s.replica.Query(ctx, `
		SELECT pilot_id, pilot_name, COUNT(*), MAX((last_fix->>'timestamp')::timestamptz) AS last_activity
		FROM flights
		WHERE race_id = $1
		GROUP BY pilot_id, pilot_name
		ORDER BY last_activity DESC NULLS LAST
		LIMIT $2
	`, raceID, maxSummaryPilots)
	if err != nil {
		return LiveSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var p PilotSummary
		if err := rows.Scan(&p.PilotID, &p.PilotName, &p.FlightCount, &p.LastActivity); err != nil {
			return LiveSummary{}, err
		}
		sum.Pilots = append(sum.Pilots, p)
	}
	return sum, rows.Err()
}
