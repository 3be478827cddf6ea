package smartmeter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/smartmeter/internal/framer"
	"github.com/jpalmerr/smartmeter/internal/notify"
	"github.com/jpalmerr/smartmeter/internal/store"
	"github.com/jpalmerr/smartmeter/internal/telegram"
	"github.com/jpalmerr/smartmeter/internal/transport"
)

// defaultDeviceName is reported until the first telegram identifies the meter.
const defaultDeviceName = "smartmeter"

// Meter turns a D0 byte stream into a table of latest readings.
//
// Meter is the receiving end of a transport: feed it with [Meter.OnConnect],
// [Meter.OnBytes] and [Meter.OnDisconnect] (or let [Meter.Run] /
// [Meter.Supervise] do it). Every completed telegram is parsed, applied to
// the value table as one unit, and then announced to update listeners.
//
// The typical lifecycle is:
//
//	m, err := smartmeter.New(smartmeter.WithAddresses("1-0:1.8.0*255"))
//	if err != nil {
//	    slog.Error("failed to create meter", "error", err)
//	    os.Exit(1)
//	}
//
//	m.AddUpdateListener(func() {
//	    v, unit, ok := m.GetValue("1-0:1.8.0*255")
//	    if ok {
//	        fmt.Println(v, unit)
//	    }
//	})
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Supervise(ctx, smartmeter.SerialSource("/dev/ttyUSB0", 9600), smartmeter.Backoff{})
//
// Concurrency: there is exactly one write path. OnBytes runs the whole
// per-telegram pipeline (parse, apply, notify) before returning, so telegram
// N is visible and announced before any byte of telegram N+1 is processed.
// Read methods may be called from any goroutine.
type Meter struct {
	sensors            []Sensor
	logger             *slog.Logger
	disconnectHandlers []func(*DisconnectError)

	writeMu sync.Mutex // guards framer; serializes the write path
	framer  *framer.Framer
	store   *store.MemoryStore
	hub     *notify.Hub

	deviceName  atomic.Value // string
	lastFrameAt atomic.Int64 // unix nanos
	connected   atomic.Bool
	connects    atomic.Uint64
	disconnects atomic.Uint64
	bytes       atomic.Uint64
	frames      atomic.Uint64
	discarded   atomic.Uint64
	measured    atomic.Uint64
	malformed   atomic.Uint64
	skipped     atomic.Uint64
}

// New creates a new [Meter] with the given options.
//
// Sensors are optional; the meter stores every address it receives and the
// sensor list only feeds [Meter.ListConfiguredAddresses]. Listeners passed
// via [WithUpdateListener] are invoked once during New.
//
// Returns an error if any option is invalid or a sensor address is
// configured twice.
func New(opts ...Option) (*Meter, error) {
	cfg := &meterConfig{
		maxFrameSize: framer.DefaultMaxSize,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(cfg.sensors))
	for _, s := range cfg.sensors {
		if s.address == "" {
			return nil, fmt.Errorf("sensor address cannot be empty (use NewSensor)")
		}
		if seen[s.address] {
			return nil, fmt.Errorf("duplicate sensor address: %q", s.address)
		}
		seen[s.address] = true
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Meter{
		sensors:            cfg.sensors,
		logger:             logger,
		disconnectHandlers: cfg.disconnectHandlers,
		framer:             framer.New(cfg.maxFrameSize),
		store:              store.NewMemoryStore(),
		hub:                notify.NewHub(logger),
	}
	m.deviceName.Store(defaultDeviceName)

	for _, fn := range cfg.updateListeners {
		m.hub.Register(fn)
	}

	return m, nil
}

// OnConnect records that the transport link is up.
func (m *Meter) OnConnect() {
	m.connected.Store(true)
	m.connects.Add(1)
	m.logger.Debug("meter link connected")
}

// OnBytes consumes one chunk from the transport.
//
// For every telegram the chunk completes, OnBytes parses all lines, applies
// the resulting measurements to the value table and notifies listeners,
// all before returning. Malformed lines are logged at debug level and
// skipped; nothing in the chunk can make OnBytes fail.
//
// The chunk is not retained after OnBytes returns.
func (m *Meter) OnBytes(chunk []byte) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.bytes.Add(uint64(len(chunk)))
	frames := m.framer.Feed(chunk)
	m.discarded.Store(m.framer.Stats().Discarded)

	for _, f := range frames {
		m.applyFrame(f)
	}
}

// applyFrame runs parse, apply and notify for one completed telegram.
func (m *Meter) applyFrame(f framer.Frame) {
	text := f.Text()
	res := telegram.ParseFrame(text)

	for _, err := range res.Malformed {
		m.logger.Debug("skipping malformed telegram line", "error", err)
	}
	if id := telegram.Identification(text); id != "" {
		m.deviceName.Store(id)
	}

	m.store.Apply(res.Measurements)

	m.frames.Add(1)
	m.measured.Add(uint64(len(res.Measurements)))
	m.malformed.Add(uint64(len(res.Malformed)))
	m.skipped.Add(uint64(res.Skipped))
	m.lastFrameAt.Store(time.Now().UnixNano())

	m.logger.Debug("telegram applied",
		"measurements", len(res.Measurements),
		"malformed", len(res.Malformed),
		"headless", f.Headless,
	)

	m.hub.NotifyAll()
}

// OnDisconnect records that the transport link went away and delivers a
// [DisconnectError] to every handler registered with [WithDisconnectHandler].
//
// Buffered partial telegram data is kept: if the link comes back mid-telegram
// the next start marker discards it as usual.
func (m *Meter) OnDisconnect(reason error) {
	m.connected.Store(false)
	m.disconnects.Add(1)

	evt := &DisconnectError{Reason: reason, At: time.Now()}
	m.logger.Info("meter link disconnected", "reason", reason)

	for _, fn := range m.disconnectHandlers {
		m.invokeDisconnectSafe(fn, evt)
	}
}

// invokeDisconnectSafe calls a disconnect handler with panic recovery.
// Panics are logged but do not propagate into the transport.
func (m *Meter) invokeDisconnectSafe(fn func(*DisconnectError), evt *DisconnectError) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("disconnect handler panicked", "panic", r)
		}
	}()
	fn(evt)
}

// GetValue returns the latest value and unit for address.
//
// ok is false (and value, unit are zero) if the address has never appeared
// in a telegram.
func (m *Meter) GetValue(address string) (value float64, unit string, ok bool) {
	v, ok := m.store.Get(address)
	if !ok {
		return 0, "", false
	}
	return v.Value, v.Unit, true
}

// Reading returns the latest [Reading] for address.
func (m *Meter) Reading(address string) (Reading, bool) {
	v, ok := m.store.Get(address)
	if !ok {
		return Reading{}, false
	}
	return storeValueToReading(v), true
}

// Readings returns every stored reading, sorted by address.
//
// Readings are not filtered by the configured sensors.
func (m *Meter) Readings() []Reading {
	values := m.store.GetAll()
	out := make([]Reading, len(values))
	for i, v := range values {
		out[i] = storeValueToReading(v)
	}
	return out
}

// ListConfiguredAddresses returns the sensor addresses in configuration order.
//
// The returned slice is a copy.
func (m *Meter) ListConfiguredAddresses() []string {
	out := make([]string, len(m.sensors))
	for i, s := range m.sensors {
		out[i] = s.address
	}
	return out
}

// Sensors returns a copy of the configured sensors.
func (m *Meter) Sensors() []Sensor {
	cp := make([]Sensor, len(m.sensors))
	copy(cp, m.sensors)
	return cp
}

// AddUpdateListener registers fn and invokes it once immediately.
//
// Afterwards fn is called, in registration order with other listeners,
// every time a telegram has been applied. Listeners run on the transport
// goroutine and must not block; a panicking listener is logged and the
// remaining listeners still run.
//
// Nil listeners are silently ignored.
func (m *Meter) AddUpdateListener(fn func()) {
	m.hub.Register(fn)
}

// DeviceName returns the identification line of the most recent telegram,
// or "smartmeter" until one has been received.
func (m *Meter) DeviceName() string {
	return m.deviceName.Load().(string)
}

// Stats returns a snapshot of the meter counters.
func (m *Meter) Stats() Stats {
	s := Stats{
		Connected:        m.connected.Load(),
		Connects:         m.connects.Load(),
		Disconnects:      m.disconnects.Load(),
		BytesReceived:    m.bytes.Load(),
		Frames:           m.frames.Load(),
		FramesDiscarded:  m.discarded.Load(),
		Measurements:     m.measured.Load(),
		MalformedValues:  m.malformed.Load(),
		SkippedLines:     m.skipped.Load(),
		ObserverFailures: m.hub.Failures(),
	}
	if ns := m.lastFrameAt.Load(); ns != 0 {
		s.LastFrameAt = time.Unix(0, ns)
	}
	return s
}

// Run connects to src once and feeds it into the meter until ctx is
// cancelled or the link drops.
//
// Returns nil on cancellation, a [*DisconnectError] if an established link
// was lost, or the open error if the source could not be opened. Run does
// not retry; see [Meter.Supervise].
func (m *Meter) Run(ctx context.Context, src Source) error {
	before := m.connects.Load()

	err := transport.Pump(ctx, src, m, 0)
	if err == nil {
		return nil
	}
	if m.connects.Load() > before {
		return &DisconnectError{Reason: err, At: time.Now()}
	}
	return fmt.Errorf("smartmeter: %w", err)
}

// Supervise keeps src connected until ctx is cancelled, reconnecting with
// exponential backoff after every disconnect. Supervise blocks and always
// returns nil once ctx is done.
func (m *Meter) Supervise(ctx context.Context, src Source, backoff Backoff) error {
	sup := transport.NewSupervisor(src, m, backoff, m.logger)
	sup.Start(ctx)
	<-ctx.Done()
	sup.Stop()
	return nil
}

// storeValueToReading converts a store value to the public type.
func storeValueToReading(v store.Value) Reading {
	return Reading{
		Address:   v.Address,
		Value:     v.Value,
		Unit:      v.Unit,
		UpdatedAt: v.UpdatedAt,
	}
}
