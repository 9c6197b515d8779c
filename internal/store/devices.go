package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/paraglide-live/trackcore/internal/models"
)

// DeviceRegistration binds a physical tracker to the pilot and race it
// reports for, so the GPS TCP front-end can resolve a bare device_id
// into the identifiers the Flight separator needs.
type DeviceRegistration struct {
	DeviceID  string
	RaceID    string
	PilotID   string
	PilotName string
	Source    models.Source
}

// GetDeviceRegistration looks up a tracker's race/pilot binding. Returns
// ErrNotFound if the device has not been registered for any race.
func (s *Store) GetDeviceRegistration(ctx context.Context, deviceID string) (DeviceRegistration, error) {
	var reg DeviceRegistration
	reg.DeviceID = deviceID
	err := s.replica.QueryRow(ctx,
		`SELECT race_id, pilot_id, pilot_name, source FROM device_registrations WHERE device_id = $1`,
		deviceID,
	).Scan(&reg.RaceID, &reg.PilotID, &reg.PilotName, &reg.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeviceRegistration{}, ErrNotFound
	}
	if err != nil {
		return DeviceRegistration{}, err
	}
	return reg, nil
}

// UpsertDeviceRegistration creates or updates a device's race/pilot
// binding, e.g. when a pilot checks in a new tracker before a race.
func (s *Store) UpsertDeviceRegistration(ctx context.Context, reg DeviceRegistration) error {
	_, err := s.primary.Exec(ctx, `
		INSERT INTO device_registrations (device_id, race_id, pilot_id, pilot_name, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id) DO UPDATE SET
			race_id = EXCLUDED.race_id,
			pilot_id = EXCLUDED.pilot_id,
			pilot_name = EXCLUDED.pilot_name,
			source = EXCLUDED.source
	`, reg.DeviceID, reg.RaceID, reg.PilotID, reg.PilotName, reg.Source)
	return err
}
