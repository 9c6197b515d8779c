// Package validator runs the two pre-write checks the spec places
// between the Queue and the Writer: shape validation of each point and
// a foreign-key pre-check against the Store, so malformed or orphaned
// batches are routed to the DLQ without ever reaching a SQL statement
// the database would reject anyway (spec §4.2).
package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/paraglide-live/trackcore/internal/ingesterr"
	"github.com/paraglide-live/trackcore/internal/models"
)

// FlightChecker is the subset of store.Store the validator needs. A
// narrow interface keeps this package testable without a live
// PostgreSQL connection.
type FlightChecker interface {
	FlightExists(ctx context.Context, flightID string) (bool, error)
	RaceExists(ctx context.Context, raceID string) (bool, error)
}

// Validator runs shape and FK checks ahead of the Writer.
type Validator struct {
	store FlightChecker
}

// New builds a Validator backed by the given FlightChecker.
func New(store FlightChecker) *Validator {
	return &Validator{store: store}
}

// Result is the outcome of validating one QueueItem's points.
type Result struct {
	Valid   []models.QueuePoint
	Invalid int // points dropped for shape reasons
}

// ValidateShape filters item.Points to those passing TrackPoint.ValidShape,
// returning how many were dropped. This never touches the Store.
func (v *Validator) ValidateShape(item models.QueueItem) Result {
	res := Result{Valid: make([]models.QueuePoint, 0, len(item.Points))}
	for _, qp := range item.Points {
		// The queue wire format carries Datetime as an RFC 3339 string;
		// it is parsed here so ValidShape checks the timestamp as well
		// as the coordinates.
		ts, err := time.Parse(time.RFC3339, qp.Datetime)
		if err != nil {
			res.Invalid++
			continue
		}
		tp := models.TrackPoint{Lat: qp.Lat, Lon: qp.Lon, Timestamp: ts}
		if !tp.ValidShape() {
			res.Invalid++
			continue
		}
		res.Valid = append(res.Valid, qp)
	}
	return res
}

// CheckFlight verifies the flight_id referenced by a QueueItem exists,
// returning a PermanentError classified as foreign_key_missing when it
// does not, or a RetryableError when the existence check itself failed
// (a Store outage should not orphan otherwise-valid points).
func (v *Validator) CheckFlight(ctx context.Context, flightID string) error {
	exists, err := v.store.FlightExists(ctx, flightID)
	if err != nil {
		return ingesterr.Retryable(ingesterr.CategoryTransient, fmt.Errorf("check flight existence: %w", err))
	}
	if !exists {
		return ingesterr.Permanent(ingesterr.CategoryIntegrity, string(models.DLQReasonForeignKeyMissing), nil)
	}
	return nil
}

// CheckRace verifies a race_id exists, used before a new tracker flight
// is created for a race the Store has never heard of.
func (v *Validator) CheckRace(ctx context.Context, raceID string) error {
	exists, err := v.store.RaceExists(ctx, raceID)
	if err != nil {
		return ingesterr.Retryable(ingesterr.CategoryTransient, fmt.Errorf("check race existence: %w", err))
	}
	if !exists {
		return ingesterr.Permanent(ingesterr.CategoryIntegrity, string(models.DLQReasonForeignKeyMissing), nil)
	}
	return nil
}
