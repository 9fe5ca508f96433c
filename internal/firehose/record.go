package firehose

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bbw200-gateway/internal/ble"
)

// RecordTimeLayout sorts lexically in time order.
const RecordTimeLayout = "2006-01-02T15:04:05Z"

var ErrMalformedRecord = errors.New("malformed ingestion record")

// FormatRecord renders r as "timestamp,temperature,humidity,battery\n".
func FormatRecord(r ble.SensorReading) []byte {
	return fmt.Appendf(nil, "%s,%.1f,%d,%d\n",
		r.Timestamp.UTC().Format(RecordTimeLayout),
		r.TemperatureCelsius,
		r.HumidityPercent,
		r.BatteryPercent,
	)
}

// ParseRecord is the inverse of FormatRecord.
func ParseRecord(b []byte) (ble.SensorReading, error) {
	line, ok := bytes.CutSuffix(b, []byte("\n"))
	if !ok {
		return ble.SensorReading{}, fmt.Errorf("%w: missing newline", ErrMalformedRecord)
	}
	fields := strings.Split(string(line), ",")
	if len(fields) != 4 {
		return ble.SensorReading{}, fmt.Errorf("%w: got %d fields, want 4", ErrMalformedRecord, len(fields))
	}

	ts, err := time.Parse(RecordTimeLayout, fields[0])
	if err != nil {
		return ble.SensorReading{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRecord, err)
	}
	temp, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ble.SensorReading{}, fmt.Errorf("%w: temperature: %v", ErrMalformedRecord, err)
	}
	hum, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return ble.SensorReading{}, fmt.Errorf("%w: humidity: %v", ErrMalformedRecord, err)
	}
	bat, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return ble.SensorReading{}, fmt.Errorf("%w: battery: %v", ErrMalformedRecord, err)
	}

	return ble.SensorReading{
		TemperatureCelsius: temp,
		HumidityPercent:    uint16(hum),
		BatteryPercent:     uint16(bat),
		Timestamp:          ts,
	}, nil
}
