package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paraglide-live/trackcore/internal/ingesterr"
	"github.com/paraglide-live/trackcore/internal/models"
)

type fakeChecker struct {
	flights map[string]bool
	races   map[string]bool
	err     error
}

func (f *fakeChecker) FlightExists(_ context.Context, flightID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.flights[flightID], nil
}

func (f *fakeChecker) RaceExists(_ context.Context, raceID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.races[raceID], nil
}

func TestValidateShapeDropsInvalidPoints(t *testing.T) {
	v := New(&fakeChecker{})
	item := models.QueueItem{Points: []models.QueuePoint{
		{Lat: 45.0, Lon: 7.0, Datetime: "2026-08-02T10:00:00Z"},
		{Lat: 999, Lon: 7.0, Datetime: "2026-08-02T10:00:00Z"},
		{Lat: 45.0, Lon: -200, Datetime: "2026-08-02T10:00:00Z"},
	}}
	res := v.ValidateShape(item)
	require.Len(t, res.Valid, 1)
	require.Equal(t, 2, res.Invalid)
}

func TestCheckFlightMissingIsPermanent(t *testing.T) {
	v := New(&fakeChecker{flights: map[string]bool{}})
	err := v.CheckFlight(context.Background(), "ghost-flight")
	require.True(t, ingesterr.IsPermanent(err))
	require.Equal(t, ingesterr.CategoryIntegrity, ingesterr.CategoryOf(err))
}

func TestCheckFlightFound(t *testing.T) {
	v := New(&fakeChecker{flights: map[string]bool{"f1": true}})
	require.NoError(t, v.CheckFlight(context.Background(), "f1"))
}

func TestCheckFlightStoreErrorIsRetryable(t *testing.T) {
	v := New(&fakeChecker{err: errors.New("connection reset")})
	err := v.CheckFlight(context.Background(), "f1")
	require.True(t, ingesterr.IsRetryable(err))
}
