package models

import "time"

// TrackPoint is one immutable time-series row: a single GPS fix belonging
// to a Flight.
type TrackPoint struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	FlightID   string    `json:"flight_id" db:"flight_id"`
	FlightUUID string    `json:"flight_uuid,omitempty" db:"flight_uuid"`
	Lat        float64   `json:"lat" db:"lat"`
	Lon        float64   `json:"lon" db:"lon"`
	Elevation  *float64  `json:"elevation,omitempty" db:"elevation"`
	Timestamp  time.Time `json:"datetime" db:"datetime"`

	// Optional tracker telemetry, carried through to the queue item but
	// not persisted as point columns.
	Battery *int     `json:"battery,omitempty"`
	Speed   *float64 `json:"speed,omitempty"`
	Heading *float64 `json:"heading,omitempty"`
}

// ValidShape reports whether the point's coordinates and timestamp are
// well-formed per the Validator's shape check (spec §4.2).
func (p TrackPoint) ValidShape() bool {
	if p.Lat < -90 || p.Lat > 90 {
		return false
	}
	if p.Lon < -180 || p.Lon > 180 {
		return false
	}
	if p.Timestamp.IsZero() {
		return false
	}
	return true
}
