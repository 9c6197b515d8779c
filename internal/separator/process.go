package separator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paraglide-live/trackcore/internal/models"
	"github.com/paraglide-live/trackcore/internal/store"
)

// Store is the subset of store.Store the separator needs. Narrowed to
// an interface so the separation state machine can be unit tested
// without a live PostgreSQL connection.
type Store interface {
	GetActiveFlightForDevice(ctx context.Context, deviceID string) (*models.Flight, error)
	CreateFlight(ctx context.Context, f models.Flight) error
	UpdateFlightState(ctx context.Context, flightID string, state models.FlightState) error
}

// minLandingPoints mirrors the original implementation's default
// min_points for detect_landing.
const minLandingPoints = 5

// deviceState is the in-memory rolling state the separator keeps per
// device between Store round trips.
type deviceState struct {
	flightID      string
	raceID        string
	lastFixTime   time.Time
	landed        bool
	landedAt      time.Time
	landingWindow []Point // oldest first, trimmed to the landing-detection window
}

// Separator assigns incoming tracker points to flights, creating a new
// flight whenever the day-boundary, inactivity-gap, or
// landing-detection rules fire.
type Separator struct {
	store Store
	cfg   Config
	cache *deviceCache

	mu     sync.Mutex
	states map[string]*deviceState
}

// New builds a Separator backed by store, using cfg for its
// thresholds.
func New(store Store, cfg Config) *Separator {
	return &Separator{
		store:  store,
		cfg:    cfg,
		cache:  newDeviceCache(),
		states: make(map[string]*deviceState),
	}
}

// Resolve assigns flightID for one incoming point from deviceID,
// creating a new flight in the Store when the separation rules require
// one. now is injected so tests don't depend on wall-clock time.
func (s *Separator) Resolve(ctx context.Context, source models.Source, raceID, pilotID, pilotName, deviceID string, point Point, raceLoc *time.Location, now time.Time) (flightID string, isNew bool, err error) {
	st, err := s.loadState(ctx, deviceID, raceID)
	if err != nil {
		return "", false, fmt.Errorf("separator: load device state: %w", err)
	}

	var last *LastFlight
	if st != nil {
		last = &LastFlight{
			LastFixTime: st.lastFixTime,
			HasLastFix:  !st.lastFixTime.IsZero(),
			Landed:      st.landed,
			LandedAt:    st.landedAt,
		}
	}

	decision := ShouldCreateNewFlight(s.cfg, point, last, raceLoc)

	if decision.NewFlight {
		suffix := FlightIDSuffix(decision.Reason, decision.Instant, raceLoc)
		newID := models.BuildFlightID(source, pilotID, raceID, deviceID, suffix)
		if err := s.store.CreateFlight(ctx, models.Flight{
			ID:        newID,
			RaceID:    raceID,
			PilotID:   pilotID,
			PilotName: pilotName,
			Source:    source,
			DeviceID:  &deviceID,
			CreatedAt: now,
		}); err != nil {
			return "", false, fmt.Errorf("separator: create flight: %w", err)
		}

		st = &deviceState{flightID: newID, raceID: raceID}
		s.setState(deviceID, st)
		s.cache.Set(deviceID, newID)
	}

	// Out-of-order points are stored against the resolved flight but
	// never advance the rolling window or last-known timestamp: an
	// old, late-arriving fix must not make an airborne device look
	// landed, nor should it move the inactivity clock backwards.
	if st.lastFixTime.IsZero() || point.Timestamp.After(st.lastFixTime) {
		st.lastFixTime = point.Timestamp
		st.landingWindow = appendWindow(st.landingWindow, point, s.cfg.LandingWindow)

		landed, landedAt := DetectLanding(s.cfg, st.landingWindow, minLandingPoints)
		if landed && !st.landed {
			st.landed = true
			st.landedAt = landedAt
			if err := s.store.UpdateFlightState(ctx, st.flightID, models.FlightState{
				Landed:        true,
				LandedAt:      &landedAt,
				LastTimestamp: &st.lastFixTime,
			}); err != nil {
				return "", false, fmt.Errorf("separator: persist landed state: %w", err)
			}
		} else if !landed && st.landed {
			st.landed = false
		}
	}

	return st.flightID, decision.NewFlight, nil
}

// appendWindow appends p and drops entries older than window relative
// to the newest point.
func appendWindow(points []Point, p Point, window time.Duration) []Point {
	points = append(points, p)
	cutoff := p.Timestamp.Add(-window)
	i := 0
	for i < len(points) && points[i].Timestamp.Before(cutoff) {
		i++
	}
	return points[i:]
}

func (s *Separator) loadState(ctx context.Context, deviceID, raceID string) (*deviceState, error) {
	s.mu.Lock()
	st, ok := s.states[deviceID]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	if flightID, ok := s.cache.Get(deviceID); ok {
		st := &deviceState{flightID: flightID, raceID: raceID}
		s.setState(deviceID, st)
		return st, nil
	}

	flight, err := s.store.GetActiveFlightForDevice(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	st = &deviceState{flightID: flight.ID, raceID: flight.RaceID}
	if flight.LastFix != nil {
		st.lastFixTime = flight.LastFix.Timestamp
	}
	if flight.FlightState != nil {
		st.landed = flight.FlightState.Landed
		if flight.FlightState.LandedAt != nil {
			st.landedAt = *flight.FlightState.LandedAt
		}
	}
	s.setState(deviceID, st)
	s.cache.Set(deviceID, st.flightID)
	return st, nil
}

func (s *Separator) setState(deviceID string, st *deviceState) {
	s.mu.Lock()
	s.states[deviceID] = st
	s.mu.Unlock()
}
