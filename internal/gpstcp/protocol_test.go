package gpstcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNMEACoordinateLatitude(t *testing.T) {
	v, err := parseNMEACoordinate("4530.1234", false)
	require.NoError(t, err)
	require.InDelta(t, 45.502056, v, 1e-5)
}

func TestParseNMEACoordinateLongitudeThreeDigitDegrees(t *testing.T) {
	v, err := parseNMEACoordinate("00730.5000", true)
	require.NoError(t, err)
	require.InDelta(t, 7.508333, v, 1e-5)
}

func TestParseNMEACoordinateTooShort(t *testing.T) {
	_, err := parseNMEACoordinate("45", false)
	require.Error(t, err)
}

func TestParseOptionalFloatEmptyIsNil(t *testing.T) {
	require.Nil(t, parseOptionalFloat(""))
	require.Nil(t, parseOptionalFloat("not-a-number"))
	v := parseOptionalFloat("12.5")
	require.NotNil(t, v)
	require.InDelta(t, 12.5, *v, 1e-9)
}

func TestDecodeWatchLocation(t *testing.T) {
	frame := "[3G*1234567890*003C*UD2,020126,103000,A,4530.1234,N,00730.5000,E,15.5,90,1200,0,0,0,85]"
	msg, err := DecodeWatch(frame)
	require.NoError(t, err)
	require.Equal(t, KindLocation, msg.Kind)
	require.Equal(t, "1234567890", msg.DeviceID)
	require.Len(t, msg.Fixes, 1)
	require.True(t, msg.Fixes[0].Valid)
	require.InDelta(t, 45.502056, msg.Fixes[0].Lat, 1e-5)
	require.InDelta(t, 7.508333, msg.Fixes[0].Lon, 1e-5)
}

func TestDecodeWatchLocationSouthWest(t *testing.T) {
	frame := "[3G*1234567890*003C*UD2,020126,103000,A,4530.1234,S,00730.5000,W,15.5,90,1200,0,0,0,85]"
	msg, err := DecodeWatch(frame)
	require.NoError(t, err)
	require.Less(t, msg.Fixes[0].Lat, 0.0)
	require.Less(t, msg.Fixes[0].Lon, 0.0)
}

func TestDecodeWatchBatchLocation(t *testing.T) {
	records := "020126,103000,A,4530.1234,N,00730.5000,E,15.5,90,1200;020126,103010,A,4530.2000,N,00730.6000,E,12,85,1210"
	frame := "[3G*1234567890*0050*UD3,2," + records + "]"
	msg, err := DecodeWatch(frame)
	require.NoError(t, err)
	require.Equal(t, KindBatchLocation, msg.Kind)
	require.Len(t, msg.Fixes, 2)
}

func TestDecodeWatchHeartbeat(t *testing.T) {
	frame := "[3G*1234567890*0010*LK,100,90,85]"
	msg, err := DecodeWatch(frame)
	require.NoError(t, err)
	require.Equal(t, KindHeartbeat, msg.Kind)
}

func TestDecodeWatchAlarm(t *testing.T) {
	frame := "[3G*1234567890*0010*AL,01]"
	msg, err := DecodeWatch(frame)
	require.NoError(t, err)
	require.Equal(t, KindAlarm, msg.Kind)
	require.Equal(t, "sos", msg.AlarmType)
}

func TestDecodeWatchRejectsUnmatchedFrame(t *testing.T) {
	_, err := DecodeWatch("not a watch frame")
	require.Error(t, err)
}

func TestDecodeTK103Location(t *testing.T) {
	frame := "(135790246811,BR00,020126,103000,A,4530.1234,N,00730.5000,E,015,090)"
	msg, err := DecodeTK103(frame)
	require.NoError(t, err)
	require.Equal(t, KindLocation, msg.Kind)
	require.Equal(t, "135790246811", msg.DeviceID)
	require.Len(t, msg.Fixes, 1)
	require.True(t, msg.Fixes[0].Valid)
}

func TestDecodeTK103Login(t *testing.T) {
	frame := "(135790246811,BP05,135790246811,V1.0)"
	msg, err := DecodeTK103(frame)
	require.NoError(t, err)
	require.Equal(t, KindLogin, msg.Kind)
	require.Equal(t, "135790246811", msg.DeviceID)
}

func TestDecodeTK103Heartbeat(t *testing.T) {
	frame := "(135790246811,BP00)"
	msg, err := DecodeTK103(frame)
	require.NoError(t, err)
	require.Equal(t, KindHeartbeat, msg.Kind)
}

func TestDecodeTK103Alarm(t *testing.T) {
	frame := "(135790246811,BO01,020126,103000)"
	msg, err := DecodeTK103(frame)
	require.NoError(t, err)
	require.Equal(t, KindAlarm, msg.Kind)
	require.Equal(t, "sos", msg.AlarmType)
}

func TestDecodeTK103RejectsUnmatchedFrame(t *testing.T) {
	_, err := DecodeTK103("not a tk103 frame")
	require.Error(t, err)
}

func TestIsWatchFrameAndIsTK103FrameAreExclusive(t *testing.T) {
	watch := "[3G*1234567890*0010*LK,100,90,85]"
	tk103 := "(135790246811,BP00)"
	require.True(t, IsWatchFrame(watch))
	require.False(t, IsTK103Frame(watch))
	require.True(t, IsTK103Frame(tk103))
	require.False(t, IsWatchFrame(tk103))
}
