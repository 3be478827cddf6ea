// Package config provides YAML configuration parsing for the smartmeter binary.
//
// This package enables running the meter as a standalone service with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Basement Meter
//	port: 8080
//
//	serial:
//	  device: ${METER_DEVICE:-/dev/ttyUSB0}
//	  baud_rate: 9600
//
//	sensors:
//	  - "1-0:1.8.0*255"
//	  - address: "1-0:16.7.0*255"
//	    name: Power
//
//	messaging:
//	  backend: mqtt
//	  topic: home/meter
//	  mqtt:
//	    broker: localhost
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 8080
	defaultDevice       = "/dev/ttyUSB0"
	defaultBaudRate     = 9600
	defaultMaxFrameSize = 16 * 1024
	defaultMQTTPort     = 1883
	defaultMQTTClientID = "smartmeter"
	defaultTopic        = "smartmeter/readings"

	// minMaxFrameSize keeps the frame bound above any real telegram header.
	minMaxFrameSize = 64
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Smart Meter" if not set.
	Title string `yaml:"title"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Serial configures a local read head. Used when TCP is empty.
	Serial *SerialConfig `yaml:"serial"`

	// TCP is the host:port of a serial-over-TCP bridge (e.g. ser2net).
	// Mutually exclusive with Serial.
	TCP string `yaml:"tcp"`

	// Reconnect bounds the delay between reconnect attempts.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// MaxFrameSize bounds the telegram reassembly buffer in bytes.
	// Defaults to 16384.
	MaxFrameSize int `yaml:"max_frame_size"`

	// Sensors lists the addresses surfaced by the API and publisher.
	Sensors []SensorConfig `yaml:"sensors"`

	// Messaging optionally publishes readings to a broker.
	Messaging MessagingConfig `yaml:"messaging"`
}

// SerialConfig describes the serial line settings.
type SerialConfig struct {
	// Device is the serial device path. Supports ${VAR} substitution.
	Device string `yaml:"device"`

	// BaudRate defaults to 9600.
	BaudRate int `yaml:"baud_rate"`

	// DataBits is 7 or 8. Defaults to 8.
	DataBits int `yaml:"data_bits"`

	// Parity is none, even or odd. Defaults to none.
	Parity string `yaml:"parity"`

	// StopBits is 1 or 2. Defaults to 1.
	StopBits int `yaml:"stop_bits"`
}

// ReconnectConfig bounds the exponential reconnect backoff.
type ReconnectConfig struct {
	Min Duration `yaml:"min"`
	Max Duration `yaml:"max"`
}

// SensorConfig names an address of interest.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	- "1-0:1.8.0*255"
//
// Structured object:
//
//	- address: "1-0:1.8.0*255"
//	  name: Grid import
type SensorConfig struct {
	Address string
	Name    string
}

// MessagingConfig selects an optional broker for published readings.
type MessagingConfig struct {
	// Backend is "mqtt", "kafka" or empty (disabled).
	Backend string `yaml:"backend"`

	// Topic receives one message per telegram. Defaults to "smartmeter/readings".
	Topic string `yaml:"topic"`

	MQTT  MQTTConfig  `yaml:"mqtt"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// MQTTConfig addresses an MQTT broker.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig addresses a Kafka cluster.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for SensorConfig.
func (s *SensorConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Address)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Address string `yaml:"address"`
			Name    string `yaml:"name"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		s.Address = raw.Address
		s.Name = raw.Name
		return nil
	}

	return fmt.Errorf("sensor must be a string or object, got %v", node.Kind)
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the serial device, the TCP address
// and broker addresses. Defaults are applied for Port (8080), the serial
// device (/dev/ttyUSB0 at 9600 baud, when no TCP bridge is set), MaxFrameSize
// (16 KiB) and the messaging topic.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = defaultMaxFrameSize
	}
	if c.Serial == nil && c.TCP == "" {
		c.Serial = &SerialConfig{}
	}
	if c.Serial != nil {
		if c.Serial.Device == "" {
			c.Serial.Device = defaultDevice
		}
		if c.Serial.BaudRate == 0 {
			c.Serial.BaudRate = defaultBaudRate
		}
	}
	if c.Messaging.Backend != "" && c.Messaging.Topic == "" {
		c.Messaging.Topic = defaultTopic
	}
	if c.Messaging.Backend == "mqtt" {
		if c.Messaging.MQTT.Port == 0 {
			c.Messaging.MQTT.Port = defaultMQTTPort
		}
		if c.Messaging.MQTT.ClientID == "" {
			c.Messaging.MQTT.ClientID = defaultMQTTClientID
		}
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if c.Serial != nil && c.TCP != "" {
		return errors.New("serial and tcp are mutually exclusive")
	}

	if c.Serial != nil {
		if err := c.Serial.expandAndValidate(); err != nil {
			return err
		}
	}

	if c.TCP != "" {
		expanded, err := expandEnvVars(c.TCP)
		if err != nil {
			return fmt.Errorf("tcp: %w", err)
		}
		if _, _, err := net.SplitHostPort(expanded); err != nil {
			return fmt.Errorf("tcp: invalid address %q: %w", expanded, err)
		}
		c.TCP = expanded
	}

	if c.Reconnect.Min < 0 || c.Reconnect.Max < 0 {
		return errors.New("reconnect: durations cannot be negative")
	}
	if c.Reconnect.Min != 0 && c.Reconnect.Max != 0 && c.Reconnect.Max < c.Reconnect.Min {
		return fmt.Errorf("reconnect: max (%s) must not be below min (%s)",
			c.Reconnect.Max.Duration(), c.Reconnect.Min.Duration())
	}

	if c.MaxFrameSize < minMaxFrameSize {
		return fmt.Errorf("max_frame_size must be at least %d, got %d", minMaxFrameSize, c.MaxFrameSize)
	}

	if len(c.Sensors) == 0 {
		return errors.New("at least one sensor must be defined")
	}
	seen := make(map[string]int, len(c.Sensors))
	for i, s := range c.Sensors {
		if strings.TrimSpace(s.Address) == "" {
			return fmt.Errorf("sensors[%d]: address is required", i)
		}
		if strings.ContainsAny(s.Address, "()\r\n") {
			return fmt.Errorf("sensors[%d] (%s): address cannot contain parentheses or line breaks", i, s.Address)
		}
		if j, dup := seen[s.Address]; dup {
			return fmt.Errorf("sensors[%d] (%s): duplicate of sensors[%d]", i, s.Address, j)
		}
		seen[s.Address] = i
	}

	return c.Messaging.expandAndValidate()
}

func (s *SerialConfig) expandAndValidate() error {
	expanded, err := expandEnvVars(s.Device)
	if err != nil {
		return fmt.Errorf("serial: device: %w", err)
	}
	s.Device = expanded

	if s.BaudRate < 0 {
		return fmt.Errorf("serial: baud_rate cannot be negative, got %d", s.BaudRate)
	}
	if s.DataBits != 0 && s.DataBits != 7 && s.DataBits != 8 {
		return fmt.Errorf("serial: data_bits must be 7 or 8, got %d", s.DataBits)
	}
	switch strings.ToLower(s.Parity) {
	case "", "none", "even", "odd":
	default:
		return fmt.Errorf("serial: parity must be none, even or odd, got %q", s.Parity)
	}
	if s.StopBits != 0 && s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("serial: stop_bits must be 1 or 2, got %d", s.StopBits)
	}
	return nil
}

func (m *MessagingConfig) expandAndValidate() error {
	switch m.Backend {
	case "":
		return nil
	case "mqtt":
		if m.MQTT.Broker == "" {
			return errors.New("messaging: mqtt.broker is required")
		}
		expanded, err := expandEnvVars(m.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("messaging: mqtt.broker: %w", err)
		}
		m.MQTT.Broker = expanded
		if m.MQTT.Port < 1 || m.MQTT.Port > 65535 {
			return fmt.Errorf("messaging: mqtt.port must be between 1 and 65535, got %d", m.MQTT.Port)
		}
	case "kafka":
		if len(m.Kafka.Brokers) == 0 {
			return errors.New("messaging: kafka.brokers requires at least one broker")
		}
		for i, b := range m.Kafka.Brokers {
			expanded, err := expandEnvVars(b)
			if err != nil {
				return fmt.Errorf("messaging: kafka.brokers[%d]: %w", i, err)
			}
			m.Kafka.Brokers[i] = expanded
		}
	default:
		return fmt.Errorf("messaging: backend must be mqtt or kafka, got %q", m.Backend)
	}
	return nil
}
