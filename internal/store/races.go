package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/paraglide-live/trackcore/internal/models"
)

// GetRace retrieves a race by ID, returning ErrNotFound if it does not
// exist.
func (s *Store) GetRace(ctx context.Context, id string) (*models.Race, error) {
	var r models.Race
	err := s.replica.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, timezone, location, created_at
		FROM races WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.StartDate, &r.EndDate, &r.Timezone, &r.Location, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RaceExists is the fast FK-prevalidation check the Validator runs
// before handing a point off to the Writer (spec §4.2).
func (s *Store) RaceExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.replica.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM races WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// UpsertRace inserts or updates a race descriptor.
func (s *Store) UpsertRace(ctx context.Context, r models.Race) error {
	_, err := s.primary.Exec(ctx, `
		INSERT INTO races (id, name, start_date, end_date, timezone, location)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			timezone = EXCLUDED.timezone,
			location = EXCLUDED.location
	`, r.ID, r.Name, r.StartDate, r.EndDate, r.Timezone, r.Location)
	return err
}

// ListActiveRaces returns races whose [start_date, end_date] window
// contains now, used by the fan-out tier to decide which per-race Hubs
// should be running.
func (s *Store) ListActiveRaces(ctx context.Context) ([]models.Race, error) {
	rows, err := s.replica.Query(ctx, `
		SELECT id, name, start_date, end_date, timezone, location, created_at
		FROM races
		WHERE start_date <= NOW() AND end_date >= NOW()
		ORDER BY start_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var races []models.Race
	for rows.Next() {
		var r models.Race
		if err := rows.Scan(&r.ID, &r.Name, &r.StartDate, &r.EndDate, &r.Timezone, &r.Location, &r.CreatedAt); err != nil {
			return nil, err
		}
		races = append(races, r)
	}
	return races, rows.Err()
}
