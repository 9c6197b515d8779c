package gpstcp

import (
	"regexp"
	"strings"
	"time"
)

// tk103Pattern matches the TK103 parenthesised protocol:
// (IMEI,COMMAND,...), where the fields after COMMAND are optional.
var tk103Pattern = regexp.MustCompile(`^\((\d+),(BR\d+|BP\d+|BO\d+)(,.*)?\)$`)

// IsTK103Frame reports whether data looks like a TK103 frame.
func IsTK103Frame(data string) bool {
	return tk103Pattern.MatchString(data)
}

// DecodeTK103 parses one TK103 frame.
func DecodeTK103(data string) (*Message, error) {
	m := tk103Pattern.FindStringSubmatch(data)
	if m == nil {
		return nil, errNoMatch
	}
	deviceID := m[1]
	command := m[2]

	inner := strings.TrimSuffix(strings.TrimPrefix(data, "("), ")")
	fields := strings.Split(inner, ",")

	switch {
	case strings.HasPrefix(command, "BR"):
		return decodeTK103Location(deviceID, command, fields, data)
	case command == "BP05":
		return decodeTK103Login(deviceID, fields, data)
	case command == "BP00":
		return &Message{Protocol: "tk103", DeviceID: deviceID, Kind: KindHeartbeat, Raw: data}, nil
	case strings.HasPrefix(command, "BO"):
		return decodeTK103Alarm(deviceID, command, data)
	default:
		return &Message{Protocol: "tk103", DeviceID: deviceID, Kind: KindUnknown, Raw: data}, nil
	}
}

// decodeTK103Location parses a BR* record. Fields (after imei, command):
// date, HHMMSS, status, lat, N/S, lon, E/W, speed, heading[, altitude].
// Date is either DDMMYY or YYMMDD depending on the device's configuration;
// both are tried, preferring DDMMYY as the more common default.
func decodeTK103Location(deviceID, command string, fields []string, raw string) (*Message, error) {
	if len(fields) < 11 {
		return nil, errShortFrame
	}
	dateStr := fields[2]
	timeStr := fields[3]
	status := fields[4]
	latStr := fields[5]
	ns := fields[6]
	lonStr := fields[7]
	ew := fields[8]
	speedStr := fields[9]
	headingStr := fields[10]

	dt, err := parseTK103DateTime(dateStr, timeStr)
	if err != nil {
		return nil, err
	}

	lat, err := parseNMEACoordinate(latStr, false)
	if err != nil {
		return nil, err
	}
	if ns == "S" {
		lat = -lat
	}
	lon, err := parseNMEACoordinate(lonStr, true)
	if err != nil {
		return nil, err
	}
	if ew == "W" {
		lon = -lon
	}

	valid := status == "A" && validCoordinates(lat, lon)

	fix := Fix{Lat: lat, Lon: lon, Timestamp: dt, Valid: valid}
	fix.Speed = parseOptionalFloat(speedStr)
	fix.Heading = parseOptionalFloat(headingStr)
	if len(fields) > 11 {
		fix.Elevation = parseOptionalFloat(fields[11])
	}

	return &Message{Protocol: "tk103", DeviceID: deviceID, Kind: KindLocation, Fixes: []Fix{fix}, Raw: raw}, nil
}

// parseTK103DateTime tries the two layouts TK103 firmwares are known to
// emit: DDMMYY and YYMMDD, both followed by HHMMSS.
func parseTK103DateTime(dateStr, timeStr string) (time.Time, error) {
	combined := dateStr + timeStr
	if dt, err := time.Parse("020106150405", combined); err == nil {
		return dt, nil
	}
	return time.Parse("060102150405", combined)
}

func decodeTK103Login(deviceID string, fields []string, raw string) (*Message, error) {
	imei := deviceID
	if len(fields) > 2 && fields[2] != "" {
		imei = fields[2]
	}
	return &Message{Protocol: "tk103", DeviceID: imei, Kind: KindLogin, Raw: raw}, nil
}

func decodeTK103Alarm(deviceID, command, raw string) (*Message, error) {
	msg := &Message{Protocol: "tk103", DeviceID: deviceID, Kind: KindAlarm, Raw: raw}
	if name, ok := tk103AlarmTypes[command]; ok {
		msg.AlarmType = name
	} else {
		msg.AlarmType = "unknown_" + command
	}
	return msg, nil
}

// TK103Ack builds the "(IMEI,COMMAND)"-shaped acknowledgement TK103
// devices expect in response to a login or heartbeat frame.
func TK103Ack(deviceID, command string) string {
	return "(" + deviceID + "," + command + ")"
}
