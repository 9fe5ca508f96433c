package firehose

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bbw200-gateway/internal/ble"
)

func TestFormatRecord(t *testing.T) {
	r := ble.SensorReading{
		TemperatureCelsius: 15,
		HumidityPercent:    60,
		BatteryPercent:     80,
		Timestamp:          time.Date(2024, 3, 9, 7, 5, 1, 500, time.FixedZone("CET", 3600)),
	}
	require.Equal(t, "2024-03-09T06:05:01Z,15.0,60,80\n", string(FormatRecord(r)))
}

func TestParseRecord_RoundTrip(t *testing.T) {
	ts := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	readings := []ble.SensorReading{
		{TemperatureCelsius: 15.0, HumidityPercent: 60, BatteryPercent: 80, Timestamp: ts},
		{TemperatureCelsius: 25.8, HumidityPercent: 0, BatteryPercent: 100, Timestamp: ts},
		{TemperatureCelsius: 0.1, HumidityPercent: 255, BatteryPercent: 255, Timestamp: ts},
		{TemperatureCelsius: 6553.5, HumidityPercent: 99, BatteryPercent: 1, Timestamp: ts},
	}

	for _, want := range readings {
		got, err := ParseRecord(FormatRecord(want))
		require.NoError(t, err)
		require.InDelta(t, want.TemperatureCelsius, got.TemperatureCelsius, 0.05)
		require.Equal(t, want.HumidityPercent, got.HumidityPercent)
		require.Equal(t, want.BatteryPercent, got.BatteryPercent)
		require.True(t, want.Timestamp.Equal(got.Timestamp))
	}
}

func TestParseRecord_FromDecodedPayload(t *testing.T) {
	r, err := ble.Decode([]byte{0, 0, 0x00, 0x96, 0, 0x3C, 0, 0, 0, 0, 0x50})
	require.NoError(t, err)
	r.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got, err := ParseRecord(FormatRecord(r))
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestParseRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "no newline", in: "2025-01-01T00:00:00Z,1.0,2,3"},
		{name: "too few fields", in: "2025-01-01T00:00:00Z,1.0,2\n"},
		{name: "too many fields", in: "2025-01-01T00:00:00Z,1.0,2,3,4\n"},
		{name: "bad time", in: "yesterday,1.0,2,3\n"},
		{name: "bad temperature", in: "2025-01-01T00:00:00Z,warm,2,3\n"},
		{name: "bad humidity", in: "2025-01-01T00:00:00Z,1.0,-2,3\n"},
		{name: "bad battery", in: "2025-01-01T00:00:00Z,1.0,2,70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tt.in))
			require.True(t, errors.Is(err, ErrMalformedRecord), "err = %v", err)
		})
	}
}
