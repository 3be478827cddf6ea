package smartmeter

import (
	"errors"
	"strings"
)

// wellKnownNames maps common OBIS codes to display names.
var wellKnownNames = map[string]string{
	"1-0:1.8.0*255":  "Consumption",
	"1-0:2.8.0*255":  "Generation",
	"1-0:1.8.1*255":  "Consumption Tariff 1",
	"1-0:1.8.2*255":  "Consumption Tariff 2",
	"1-0:16.7.0*255": "Power",
	"1-0:32.7.0*255": "Voltage L1",
	"1-0:52.7.0*255": "Voltage L2",
	"1-0:72.7.0*255": "Voltage L3",
}

// Sensor is an address of interest together with its display name.
//
// Sensor is immutable after creation via [NewSensor]. The meter does not
// filter by sensors: every address in a telegram is stored. Sensors only
// describe which addresses the surrounding application wants to surface.
type Sensor struct {
	address string
	name    string
}

// Address returns the OBIS code the sensor reads.
func (s Sensor) Address() string {
	return s.address
}

// Name returns the display name. Well-known OBIS codes get a descriptive
// default (e.g. "Consumption"); other codes default to "unknown".
func (s Sensor) Name() string {
	return s.name
}

// sensorConfig holds mutable state during sensor construction.
type sensorConfig struct {
	name string
}

// SensorOption configures a [Sensor] during construction.
type SensorOption func(*sensorConfig) error

// WithName overrides the sensor's display name.
//
// Returns an error if the name is empty or only whitespace.
func WithName(name string) SensorOption {
	return func(cfg *sensorConfig) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("sensor name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// NewSensor creates a [Sensor] for address.
//
// Example:
//
//	s, err := smartmeter.NewSensor("1-0:1.8.0*255", smartmeter.WithName("Grid import"))
//
// Returns an error if the address is empty or contains line breaks or
// parentheses, which can never appear in a telegram address.
func NewSensor(address string, opts ...SensorOption) (Sensor, error) {
	if address == "" {
		return Sensor{}, errors.New("sensor address cannot be empty")
	}
	if strings.ContainsAny(address, "()\r\n") {
		return Sensor{}, errors.New("sensor address cannot contain parentheses or line breaks")
	}

	cfg := &sensorConfig{name: defaultSensorName(address)}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Sensor{}, err
		}
	}

	return Sensor{address: address, name: cfg.name}, nil
}

func defaultSensorName(address string) string {
	if name, ok := wellKnownNames[address]; ok {
		return name
	}
	return "unknown"
}
