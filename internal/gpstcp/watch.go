package gpstcp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// watchPattern matches the Watch/TK905B framed protocol:
// [3G|ZJ|SG * deviceID * 4-hex-length * payload]
var watchPattern = regexp.MustCompile(`^\[(3G|ZJ|SG)\*([0-9]+)\*([0-9A-Fa-f]{4})\*(.+)\]$`)

// IsWatchFrame reports whether data looks like a Watch/TK905B frame.
func IsWatchFrame(data string) bool {
	return watchPattern.MatchString(data)
}

// DecodeWatch parses one Watch/TK905B frame.
func DecodeWatch(data string) (*Message, error) {
	m := watchPattern.FindStringSubmatch(data)
	if m == nil {
		return nil, errNoMatch
	}
	deviceID := m[2]
	parts := strings.Split(m[4], ",")
	if len(parts) == 0 {
		return nil, errNoMatch
	}
	command := parts[0]

	switch command {
	case "UD2", "UD", "UD_LBS", "UD_WIFI":
		return decodeWatchLocation(deviceID, parts, data)
	case "UD3":
		return decodeWatchBatch(deviceID, parts, data)
	case "LK", "HEART":
		return decodeWatchHeartbeat(deviceID, parts, data)
	case "AL":
		return decodeWatchAlarm(deviceID, parts, data)
	default:
		return &Message{Protocol: "watch", DeviceID: deviceID, Kind: KindUnknown, Raw: data}, nil
	}
}

func decodeWatchLocation(deviceID string, parts []string, raw string) (*Message, error) {
	if len(parts) < 8 {
		return nil, errShortFrame
	}
	dt, err := time.Parse("020106150405", parts[1]+parts[2])
	if err != nil {
		return nil, err
	}
	valid := parts[3] == "A"

	lat, err := parseNMEACoordinate(parts[4], false)
	if err != nil {
		return nil, err
	}
	if parts[5] == "S" {
		lat = -lat
	}
	lon, err := parseNMEACoordinate(parts[6], true)
	if err != nil {
		return nil, err
	}
	if parts[7] == "W" {
		lon = -lon
	}
	if !validCoordinates(lat, lon) {
		valid = false
	}

	fix := Fix{Lat: lat, Lon: lon, Timestamp: dt, Valid: valid}
	if len(parts) > 8 {
		fix.Speed = parseOptionalFloat(parts[8])
	}
	if len(parts) > 9 {
		fix.Heading = parseOptionalFloat(parts[9])
	}
	if len(parts) > 10 {
		fix.Elevation = parseOptionalFloat(parts[10])
	}
	if len(parts) > 13 {
		fix.Battery = parseOptionalInt(parts[13])
	}

	return &Message{Protocol: "watch", DeviceID: deviceID, Kind: KindLocation, Fixes: []Fix{fix}, Raw: raw}, nil
}

// decodeWatchBatch parses a UD3 frame: "UD3,COUNT,REC1;REC2;...", each
// record "DDMMYY,HHMMSS,STATUS,LAT,N/S,LON,E/W,SPEED,HEADING,ALT[,SATS,GSM,BATTERY]".
func decodeWatchBatch(deviceID string, parts []string, raw string) (*Message, error) {
	if len(parts) < 3 {
		return nil, errShortFrame
	}
	batchData := strings.Join(parts[2:], ",")
	records := strings.Split(batchData, ";")

	fixes := make([]Fix, 0, len(records))
	for _, recordStr := range records {
		record := strings.Split(recordStr, ",")
		if len(record) < 10 {
			continue
		}
		dt, err := time.Parse("020106150405", record[0]+record[1])
		if err != nil {
			continue
		}
		valid := record[2] == "A"

		lat, err := parseNMEACoordinate(record[3], false)
		if err != nil {
			continue
		}
		if record[4] == "S" {
			lat = -lat
		}
		lon, err := parseNMEACoordinate(record[5], true)
		if err != nil {
			continue
		}
		if record[6] == "W" {
			lon = -lon
		}
		if !validCoordinates(lat, lon) {
			continue
		}

		fix := Fix{Lat: lat, Lon: lon, Timestamp: dt, Valid: valid}
		fix.Speed = parseOptionalFloat(record[7])
		fix.Heading = parseOptionalFloat(record[8])
		fix.Elevation = parseOptionalFloat(record[9])
		if len(record) > 12 {
			fix.Battery = parseOptionalInt(record[12])
		}
		fixes = append(fixes, fix)
	}

	return &Message{Protocol: "watch", DeviceID: deviceID, Kind: KindBatchLocation, Fixes: fixes, Raw: raw}, nil
}

func decodeWatchHeartbeat(deviceID string, parts []string, raw string) (*Message, error) {
	msg := &Message{Protocol: "watch", DeviceID: deviceID, Kind: KindHeartbeat, Raw: raw}
	return msg, nil
}

func decodeWatchAlarm(deviceID string, parts []string, raw string) (*Message, error) {
	msg := &Message{Protocol: "watch", DeviceID: deviceID, Kind: KindAlarm, Raw: raw}
	if len(parts) > 1 {
		if name, ok := watchAlarmTypes[parts[1]]; ok {
			msg.AlarmType = name
		} else {
			msg.AlarmType = "unknown_" + parts[1]
		}
	}
	return msg, nil
}

// WatchAck builds the "[ID*LEN*OK]"-shaped acknowledgement the device
// expects after a location or heartbeat frame.
func WatchAck(deviceID string) string {
	body := "OK"
	return "[" + deviceID + "*" + strconv.FormatInt(int64(len(body)), 16) + "*" + body + "]"
}
