// Package gpstcp is the GPS tracker TCP front-end: a listener that
// accepts raw socket connections from Watch/TK905B and TK103 class
// devices, decodes their binary line protocols, and feeds normalized
// fixes into the flight separator and the live_points queue (spec
// §4.5). Decoders are grounded on the original Python protocol
// handlers.
package gpstcp

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	errNoMatch    = errors.New("gpstcp: frame did not match protocol pattern")
	errShortFrame = errors.New("gpstcp: frame has fewer fields than the command requires")
)

// Kind is the decoded message category, used to route a frame to the
// right downstream handling (location update vs housekeeping).
type Kind string

const (
	KindLocation      Kind = "location"
	KindBatchLocation Kind = "batch_location"
	KindHeartbeat     Kind = "heartbeat"
	KindAlarm         Kind = "alarm"
	KindLogin         Kind = "login"
	KindUnknown       Kind = "unknown"
)

// Fix is one normalized GPS fix extracted from a device frame.
type Fix struct {
	Lat       float64
	Lon       float64
	Elevation *float64
	Speed     *float64
	Heading   *float64
	Battery   *int
	Timestamp time.Time
	Valid     bool
}

// Message is the decoded result of one frame from a device, which may
// carry zero, one, or many fixes (UD3 batch frames carry many).
type Message struct {
	Protocol string // "watch" or "tk103"
	DeviceID string
	Kind     Kind
	AlarmType string
	Fixes    []Fix
	Raw      string
}

// watchAlarmTypes maps the Watch protocol's AL codes to names.
var watchAlarmTypes = map[string]string{
	"01": "sos",
	"02": "low_battery",
	"03": "offline",
	"04": "shock",
	"05": "fence_in",
	"06": "fence_out",
}

// tk103AlarmTypes maps TK103's BO* commands to names.
var tk103AlarmTypes = map[string]string{
	"BO01": "sos",
	"BO02": "power_cut",
	"BO03": "shock",
	"BO04": "fence_out",
	"BO05": "fence_in",
	"BO06": "overspeed",
	"BO07": "movement",
	"BO08": "low_battery",
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// parseNMEACoordinate parses NMEA DDMM.MMMM (latitude) or DDDMM.MMMM
// (longitude) format into decimal degrees.
func parseNMEACoordinate(s string, isLongitude bool) (float64, error) {
	degDigits := 2
	if isLongitude {
		if len(s) > 5 {
			degDigits = 3
		}
	}
	if len(s) <= degDigits {
		return 0, fmt.Errorf("coordinate %q too short", s)
	}
	degrees, err := strconv.ParseFloat(s[:degDigits], 64)
	if err != nil {
		return 0, fmt.Errorf("parse degrees: %w", err)
	}
	minutes, err := strconv.ParseFloat(s[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("parse minutes: %w", err)
	}
	return degrees + minutes/60.0, nil
}

func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
