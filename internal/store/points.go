package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paraglide-live/trackcore/internal/models"
)

// pointsTable returns the table that backs a point's source.
func pointsTable(src models.Source) string {
	if src == models.SourceUpload {
		return "uploaded_track_points"
	}
	return "live_track_points"
}

// BulkInsertResult reports how many of a batch's rows were new versus
// already present (the `(flight_id, datetime, lat, lon)` uniqueness
// constraint makes re-delivery idempotent rather than an error).
type BulkInsertResult struct {
	Inserted int
	Ignored  int
}

// BulkInsertPoints writes a batch of points for one flight in a single
// pipelined round trip, using ON CONFLICT DO NOTHING so re-delivered
// points are silently absorbed (spec §4.3 idempotent writes).
func (s *Store) BulkInsertPoints(ctx context.Context, src models.Source, flightID string, points []models.TrackPoint) (BulkInsertResult, error) {
	if len(points) == 0 {
		return BulkInsertResult{}, nil
	}

	table := pointsTable(src)
	batch := &pgx.Batch{}
	query := fmt.Sprintf(`
		INSERT INTO %s (flight_id, lat, lon, elevation, datetime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flight_id, datetime, lat, lon) DO NOTHING
	`, table)

	for _, p := range points {
		batch.Queue(query, flightID, p.Lat, p.Lon, p.Elevation, p.Timestamp)
	}

	br := s.primary.SendBatch(ctx, batch)
	defer br.Close()

	var result BulkInsertResult
	for range points {
		tag, err := br.Exec()
		if err != nil {
			return result, fmt.Errorf("bulk insert point: %w", err)
		}
		if tag.RowsAffected() > 0 {
			result.Inserted++
		} else {
			result.Ignored++
		}
	}
	return result, nil
}

// PointsSince returns every point for a flight with datetime >= since,
// ordered chronologically. Used by the fan-out tick to build delta
// updates against the replica pool.
func (s *Store) PointsSince(ctx context.Context, src models.Source, flightID string, since, until time.Time) ([]models.TrackPoint, error) {
	table := pointsTable(src)
	query := fmt.Sprintf(`
		SELECT id, flight_id, lat, lon, elevation, datetime
		FROM %s
		WHERE flight_id = $1 AND datetime >= $2 AND datetime <= $3
		ORDER BY datetime
	`, table)

	rows, err := s.replica.Query(ctx, query, flightID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.TrackPoint
	for rows.Next() {
		var p models.TrackPoint
		if err := rows.Scan(&p.ID, &p.FlightID, &p.Lat, &p.Lon, &p.Elevation, &p.Timestamp); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// PointCount returns the number of points stored for a flight, used by
// retention sweeps and diagnostics.
func (s *Store) PointCount(ctx context.Context, src models.Source, flightID string) (int, error) {
	table := pointsTable(src)
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE flight_id = $1`, table)
	err := s.replica.QueryRow(ctx, query, flightID).Scan(&n)
	return n, err
}

// DeleteLivePointsOlderThan deletes live_track_points rows older than
// the cutoff, backing the retention sweep (spec §9 Open Question:
// retention sweep must not race the Writer pool's in-flight batches for
// the same flight — the sweep only ever deletes by cutoff timestamp, so
// it cannot remove a row a concurrent insert is about to create).
func (s *Store) DeleteLivePointsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.primary.Exec(ctx, `DELETE FROM live_track_points WHERE datetime < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
