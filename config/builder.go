package config

import (
	"fmt"
	"log/slog"

	"github.com/jpalmerr/smartmeter"
	"github.com/jpalmerr/smartmeter/internal/publish"
)

// BuildOptions converts parsed configuration into SDK options for [smartmeter.New].
func BuildOptions(cfg *Config, logger *slog.Logger) ([]smartmeter.Option, error) {
	sensors, err := BuildSensors(cfg)
	if err != nil {
		return nil, err
	}

	opts := []smartmeter.Option{
		smartmeter.WithSensors(sensors...),
		smartmeter.WithMaxFrameSize(cfg.MaxFrameSize),
	}
	if logger != nil {
		opts = append(opts, smartmeter.WithLogger(logger))
	}
	return opts, nil
}

// BuildSensors converts the sensors section into SDK sensors.
func BuildSensors(cfg *Config) ([]smartmeter.Sensor, error) {
	sensors := make([]smartmeter.Sensor, 0, len(cfg.Sensors))
	for i, sc := range cfg.Sensors {
		var opts []smartmeter.SensorOption
		if sc.Name != "" {
			opts = append(opts, smartmeter.WithName(sc.Name))
		}
		s, err := smartmeter.NewSensor(sc.Address, opts...)
		if err != nil {
			return nil, fmt.Errorf("sensors[%d]: %w", i, err)
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

// BuildSource returns the transport the meter reads from: the TCP bridge if
// configured, otherwise the serial device.
func BuildSource(cfg *Config) smartmeter.Source {
	if cfg.TCP != "" {
		return smartmeter.TCPSource(cfg.TCP)
	}

	s := cfg.Serial
	if s == nil {
		s = &SerialConfig{Device: defaultDevice, BaudRate: defaultBaudRate}
	}

	var opts []smartmeter.SerialOption
	if s.DataBits != 0 {
		opts = append(opts, smartmeter.WithDataBits(s.DataBits))
	}
	if s.Parity != "" {
		opts = append(opts, smartmeter.WithParity(s.Parity))
	}
	if s.StopBits != 0 {
		opts = append(opts, smartmeter.WithStopBits(s.StopBits))
	}
	return smartmeter.SerialSource(s.Device, s.BaudRate, opts...)
}

// BuildBackoff returns the reconnect backoff. Zero values keep the SDK defaults.
func BuildBackoff(cfg *Config) smartmeter.Backoff {
	return smartmeter.Backoff{
		Min: cfg.Reconnect.Min.Duration(),
		Max: cfg.Reconnect.Max.Duration(),
	}
}

// BuildPublisher connects the configured broker and returns a publisher fed
// by an update listener on m. It returns nil, nil, nil when messaging is
// disabled.
//
// The caller starts the publisher and, on shutdown, stops it before closing
// the client.
func BuildPublisher(cfg *Config, m *smartmeter.Meter, logger *slog.Logger) (*publish.Publisher, *publish.Client, error) {
	mc := cfg.Messaging
	if mc.Backend == "" {
		return nil, nil, nil
	}

	client := publish.NewClient(publish.Config{
		Backend: mc.Backend,
		MQTT: publish.MQTTConfig{
			Broker:   mc.MQTT.Broker,
			Port:     mc.MQTT.Port,
			ClientID: mc.MQTT.ClientID,
		},
		Kafka: publish.KafkaConfig{Brokers: mc.Kafka.Brokers},
	})
	if err := client.Connect(); err != nil {
		return nil, nil, fmt.Errorf("messaging: %w", err)
	}

	pub := publish.NewPublisher(client, mc.Topic, publish.DefaultQueueSize, logger)
	m.AddUpdateListener(func() {
		// skip the registration replay before any telegram arrived
		if m.Stats().Frames == 0 {
			return
		}
		pub.Enqueue(m.DeviceName(), SensorReadings(m))
	})

	return pub, client, nil
}

// SensorReadings snapshots the configured sensors of m for publishing.
// Sensors the meter has not reported yet carry a null value.
func SensorReadings(m *smartmeter.Meter) []publish.Reading {
	sensors := m.Sensors()
	out := make([]publish.Reading, len(sensors))
	for i, s := range sensors {
		out[i] = publish.Reading{Address: s.Address(), Name: s.Name()}
		if r, ok := m.Reading(s.Address()); ok {
			value, unit, at := r.Value, r.Unit, r.UpdatedAt
			out[i].Value = &value
			out[i].Unit = &unit
			out[i].UpdatedAt = &at
		}
	}
	return out
}
