package smartmeter

import (
	"errors"
	"log/slog"
)

// meterConfig holds mutable state during Meter construction.
type meterConfig struct {
	sensors            []Sensor
	logger             *slog.Logger
	maxFrameSize       int
	updateListeners    []func()
	disconnectHandlers []func(*DisconnectError)
}

// Option is a function that configures a [Meter] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithSensor], [WithSensors], [WithAddresses],
// [WithLogger], [WithMaxFrameSize], [WithUpdateListener], [WithDisconnectHandler].
type Option func(*meterConfig) error

// WithSensor adds a single [Sensor] to the list of addresses of interest.
//
// Can be called multiple times. Sensors are reported by
// [Meter.ListConfiguredAddresses] in the order they were added.
func WithSensor(s Sensor) Option {
	return func(cfg *meterConfig) error {
		cfg.sensors = append(cfg.sensors, s)
		return nil
	}
}

// WithSensors adds multiple [Sensor] values.
//
// Equivalent to calling [WithSensor] multiple times.
func WithSensors(sensors ...Sensor) Option {
	return func(cfg *meterConfig) error {
		cfg.sensors = append(cfg.sensors, sensors...)
		return nil
	}
}

// WithAddresses adds sensors for the given OBIS addresses with default names.
//
// Example:
//
//	m, err := smartmeter.New(
//	    smartmeter.WithAddresses("1-0:1.8.0*255", "1-0:2.8.0*255"),
//	)
//
// Returns an error if any address is invalid (see [NewSensor]).
func WithAddresses(addresses ...string) Option {
	return func(cfg *meterConfig) error {
		for _, addr := range addresses {
			s, err := NewSensor(addr)
			if err != nil {
				return err
			}
			cfg.sensors = append(cfg.sensors, s)
		}
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Meter instance.
//
// If not specified, [slog.Default] is used. Malformed telegram lines are
// logged at debug level; observer panics at error level.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *meterConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMaxFrameSize bounds the telegram reassembly buffer in bytes.
//
// Bytes that accumulate beyond the limit without an end marker are dropped
// and the meter waits for the next start marker. Defaults to 16 KiB.
//
// Returns an error if n is below 64.
func WithMaxFrameSize(n int) Option {
	return func(cfg *meterConfig) error {
		if n < 64 {
			return errors.New("max frame size must be at least 64 bytes")
		}
		cfg.maxFrameSize = n
		return nil
	}
}

// WithUpdateListener registers a listener at construction time.
//
// Same semantics as [Meter.AddUpdateListener]: the listener is invoked once
// immediately during [New], then after every applied telegram.
//
// Nil listeners are silently ignored.
func WithUpdateListener(fn func()) Option {
	return func(cfg *meterConfig) error {
		if fn == nil {
			return nil
		}
		cfg.updateListeners = append(cfg.updateListeners, fn)
		return nil
	}
}

// WithDisconnectHandler registers a function called when the transport
// reports a disconnect.
//
// Handlers run synchronously on the transport goroutine in registration
// order and must not block. The meter never stops anything on its own; use
// the handler to decide.
//
// Nil handlers are silently ignored.
func WithDisconnectHandler(fn func(*DisconnectError)) Option {
	return func(cfg *meterConfig) error {
		if fn == nil {
			return nil
		}
		cfg.disconnectHandlers = append(cfg.disconnectHandlers, fn)
		return nil
	}
}
