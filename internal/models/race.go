// Trackcore - Paragliding competition live-tracking ingestion backbone
package models

import "time"

// Race is an immutable descriptor for one competition event.
type Race struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	Timezone  string    `json:"timezone" db:"timezone"` // IANA name, e.g. "Europe/Rome"
	Location  string    `json:"location" db:"location"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Loc returns the race's IANA *time.Location, falling back to UTC when the
// configured timezone is missing or cannot be loaded.
func (r Race) Loc() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
