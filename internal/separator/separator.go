// Package separator implements the flight-separation state machine for
// continuous tracking devices (Watch/TK905B, Flymaster): deciding when
// a stream of points from one device starts a new Flight versus
// extending the current one. Grounded on the original FlightSeparator
// (day-boundary / inactivity-gap / landing-detection cascade).
package separator

import (
	"time"
)

// Config externalises the four separation thresholds (spec §9 Open
// Question: landing-detection thresholds must be configurable, not
// hardcoded).
type Config struct {
	InactivityGap     time.Duration // default 3h
	LandingWindow     time.Duration // default 10m
	MinSpeedKMH       float64       // default 5
	MaxAltitudeVarM   float64       // default 10m
}

// DefaultConfig returns the original implementation's constants.
func DefaultConfig() Config {
	return Config{
		InactivityGap:   3 * time.Hour,
		LandingWindow:   10 * time.Minute,
		MinSpeedKMH:     5,
		MaxAltitudeVarM: 10,
	}
}

// Reason names why a new flight was (or wasn't) started.
type Reason string

const (
	ReasonNoPreviousFlight Reason = "no_previous_flight"
	ReasonNoLastFix        Reason = "no_last_fix"
	ReasonNewDay           Reason = "new_day"
	ReasonInactivity       Reason = "inactivity"
	ReasonLanded           Reason = "landed"
	ReasonContinue         Reason = "continue_existing"
)

// LastFlight is the subset of a prior Flight the decision needs.
type LastFlight struct {
	CreatedAt   time.Time
	LastFixTime time.Time
	HasLastFix  bool
	Landed      bool
	LandedAt    time.Time
}

// Point is the subset of an incoming fix the decision needs.
type Point struct {
	Timestamp time.Time
	Elevation *float64
	SpeedKMH  *float64
}

// Decision is the outcome of evaluating one incoming point against the
// device's last known flight. Instant is the timestamp FlightIDSuffix
// should format for a new flight: the incoming point's time for the
// day-boundary and inactivity rules, the landing instant for the
// post-landing re-launch rule.
type Decision struct {
	NewFlight bool
	Reason    Reason
	Instant   time.Time
}

// ShouldCreateNewFlight runs the day-boundary -> inactivity-gap ->
// landing-detection cascade, in that order, matching the original
// implementation's priority.
func ShouldCreateNewFlight(cfg Config, current Point, last *LastFlight, raceLoc *time.Location) Decision {
	if last == nil {
		return Decision{NewFlight: true, Reason: ReasonNoPreviousFlight, Instant: current.Timestamp}
	}
	if !last.HasLastFix {
		return Decision{NewFlight: true, Reason: ReasonNoLastFix, Instant: current.Timestamp}
	}

	lastLocal := last.LastFixTime.In(raceLoc)
	currentLocal := current.Timestamp.In(raceLoc)
	if lastLocal.Year() != currentLocal.Year() || lastLocal.YearDay() != currentLocal.YearDay() {
		return Decision{NewFlight: true, Reason: ReasonNewDay, Instant: current.Timestamp}
	}

	gap := current.Timestamp.Sub(last.LastFixTime)
	if gap >= cfg.InactivityGap {
		return Decision{NewFlight: true, Reason: ReasonInactivity, Instant: current.Timestamp}
	}

	if last.Landed {
		if current.SpeedKMH != nil && *current.SpeedKMH >= cfg.MinSpeedKMH {
			return Decision{NewFlight: true, Reason: ReasonLanded, Instant: last.LandedAt}
		}
	}

	return Decision{NewFlight: false, Reason: ReasonContinue}
}

// DetectLanding inspects the most recent window of points (oldest
// first) and reports whether the device has come to rest on the
// ground: average speed below MinSpeedKMH and altitude variation below
// MaxAltitudeVarM across the whole window.
func DetectLanding(cfg Config, window []Point, minPoints int) (landed bool, landingTime time.Time) {
	if len(window) < minPoints {
		return false, time.Time{}
	}

	var speedSum float64
	var speedN int
	var minAlt, maxAlt float64
	var altN int

	for _, p := range window {
		if p.SpeedKMH != nil {
			speedSum += *p.SpeedKMH
			speedN++
		}
		if p.Elevation != nil {
			if altN == 0 {
				minAlt, maxAlt = *p.Elevation, *p.Elevation
			} else {
				if *p.Elevation < minAlt {
					minAlt = *p.Elevation
				}
				if *p.Elevation > maxAlt {
					maxAlt = *p.Elevation
				}
			}
			altN++
		}
	}

	if speedN == 0 {
		return false, time.Time{}
	}
	avgSpeed := speedSum / float64(speedN)
	if avgSpeed >= cfg.MinSpeedKMH {
		return false, time.Time{}
	}
	if altN > 1 && (maxAlt-minAlt) >= cfg.MaxAltitudeVarM {
		return false, time.Time{}
	}

	return true, window[0].Timestamp
}

// FlightIDSuffix builds the suffix appended to a new tracker flight_id,
// distinguishing same-device flights created on the same day. instant is
// the Decision's Instant, formatted in the race's local timezone: the
// calendar date for a day-boundary split, the clock time for an
// inactivity split, and the landing clock time (prefixed "L") for a
// post-landing re-launch.
func FlightIDSuffix(reason Reason, instant time.Time, raceLoc *time.Location) string {
	local := instant.In(raceLoc)
	switch reason {
	case ReasonNewDay:
		return local.Format("20060102")
	case ReasonInactivity:
		return local.Format("1504")
	case ReasonLanded:
		return "L" + local.Format("1504")
	default:
		return local.Format("200601021504")
	}
}
