package ble

import (
	"errors"
	"fmt"
	"time"
)

// BBW200-A1 manufacturer payload. The layout is undocumented upstream; the
// offsets below were worked out empirically from captured broadcasts:
//
//	[2] temperature high byte  \ uint16 big-endian, tenths of a degree C
//	[3] temperature low byte   /
//	[5] relative humidity, percent
//	[10] battery, percent
//
// Temperature has no sign bit in this scheme, so values below 0 °C cannot be
// represented. An older firmware revision sent shorter payloads; those are
// rejected rather than decoded as zeros.
const (
	tempHighOffset = 2
	tempLowOffset  = 3
	humidityOffset = 5
	batteryOffset  = 10

	// MinPayloadLen is the shortest payload that holds every field.
	MinPayloadLen = batteryOffset + 1
)

// ErrInsufficientData is returned when a payload is shorter than MinPayloadLen.
var ErrInsufficientData = errors.New("insufficient payload data")

// SensorReading is one decoded measurement.
type SensorReading struct {
	TemperatureCelsius float64
	HumidityPercent    uint16
	BatteryPercent     uint16
	// Timestamp is the capture instant in UTC. Decode leaves it zero.
	Timestamp time.Time
}

// Decode parses a manufacturer payload. It has no side effects and depends
// only on bytes 2, 3, 5 and 10.
func Decode(payload []byte) (SensorReading, error) {
	if len(payload) < MinPayloadLen {
		return SensorReading{}, fmt.Errorf("%w: got %d bytes, need %d", ErrInsufficientData, len(payload), MinPayloadLen)
	}

	tempRaw := uint16(payload[tempHighOffset])<<8 | uint16(payload[tempLowOffset])
	return SensorReading{
		TemperatureCelsius: float64(tempRaw) / 10.0,
		HumidityPercent:    uint16(payload[humidityOffset]),
		BatteryPercent:     uint16(payload[batteryOffset]),
	}, nil
}

func (r SensorReading) TemperatureText() string {
	return fmt.Sprintf("%.1f °C", r.TemperatureCelsius)
}

func (r SensorReading) HumidityText() string {
	return fmt.Sprintf("%d%%", r.HumidityPercent)
}

func (r SensorReading) BatteryText() string {
	return fmt.Sprintf("Battery: %d%%", r.BatteryPercent)
}
