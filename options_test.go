package smartmeter

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_Valid(t *testing.T) {
	m, err := New(WithAddresses("1-0:1.8.0*255"), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m == nil {
		t.Fatal("New() returned nil")
	}
}

func TestNew_NoSensors(t *testing.T) {
	m, err := New(WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() without sensors error = %v", err)
	}
	if got := m.ListConfiguredAddresses(); len(got) != 0 {
		t.Errorf("ListConfiguredAddresses() = %v, want empty", got)
	}
}

func TestNew_DuplicateAddresses(t *testing.T) {
	_, err := New(WithAddresses("1-0:1.8.0*255", "1-0:2.8.0*255", "1-0:1.8.0*255"))
	if err == nil {
		t.Fatal("New() should reject duplicate addresses")
	}
	if !strings.Contains(err.Error(), "duplicate sensor address") {
		t.Errorf("error = %v, want duplicate sensor address", err)
	}
}

func TestNew_DuplicateAddresses_AcrossOptions(t *testing.T) {
	s, _ := NewSensor("1-0:1.8.0*255", WithName("Import"))

	_, err := New(WithSensor(s), WithAddresses("1-0:1.8.0*255"))
	if err == nil {
		t.Fatal("New() should reject duplicate addresses across options")
	}
}

func TestNew_ZeroValueSensor(t *testing.T) {
	_, err := New(WithSensor(Sensor{}))
	if err == nil {
		t.Fatal("New() should reject a zero-value Sensor")
	}
}

func TestNew_Defaults(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.DeviceName() != "smartmeter" {
		t.Errorf("DeviceName() = %q, want smartmeter", m.DeviceName())
	}
	if m.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
	if got := m.Stats(); got.Frames != 0 || got.Connected {
		t.Errorf("Stats() = %+v, want zero", got)
	}
}

func TestWithSensor(t *testing.T) {
	s, err := NewSensor("1-0:16.7.0*255", WithName("Power"))
	if err != nil {
		t.Fatalf("NewSensor() error = %v", err)
	}

	m, err := New(WithSensor(s))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sensors := m.Sensors()
	if len(sensors) != 1 || sensors[0].Name() != "Power" {
		t.Errorf("Sensors() = %+v", sensors)
	}
}

func TestWithSensors(t *testing.T) {
	a, _ := NewSensor("A")
	b, _ := NewSensor("B")

	m, err := New(WithSensors(a, b))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := m.ListConfiguredAddresses()
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("ListConfiguredAddresses() = %v, want [A B]", got)
	}
}

func TestWithAddresses_Invalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"paren", "1-0:1.8.0(255"},
		{"newline", "1-0:1.8.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(WithAddresses(tt.addr)); err == nil {
				t.Errorf("New(WithAddresses(%q)) should return error", tt.addr)
			}
		})
	}
}

func TestListConfiguredAddresses_Immutability(t *testing.T) {
	m, _ := New(WithAddresses("A", "B"))

	got := m.ListConfiguredAddresses()
	got[0] = "modified"

	if m.ListConfiguredAddresses()[0] != "A" {
		t.Error("modifying returned slice should not affect the meter")
	}
}

func TestSensors_Immutability(t *testing.T) {
	m, _ := New(WithAddresses("A", "B"))

	sensors := m.Sensors()
	sensors[0] = Sensor{}

	if m.Sensors()[0].Address() != "A" {
		t.Error("modifying returned slice should not affect the meter")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := New(WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.OnBytes([]byte("/X\r\n1(abc*V)\r\n!"))

	if !strings.Contains(buf.String(), "skipping malformed telegram line") {
		t.Errorf("expected malformed line to be logged, got: %s", buf.String())
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := New(WithLogger(nil))
	if err == nil {
		t.Error("New(WithLogger(nil)) should return error")
	}
}

func TestWithMaxFrameSize(t *testing.T) {
	m, err := New(WithMaxFrameSize(64), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.OnBytes([]byte("/" + strings.Repeat("x", 100)))

	if got := m.Stats().FramesDiscarded; got != 1 {
		t.Errorf("FramesDiscarded = %d, want 1 after overflow", got)
	}

	// the truncated telegram's tail is dropped rather than applied headless
	m.OnBytes([]byte("1-0:1.8.0*255(9.9*kWh)\r\n!\r\n"))
	if _, _, ok := m.GetValue("1-0:1.8.0*255"); ok {
		t.Error("tail of an oversized telegram should not be applied")
	}
	if got := m.Stats().Frames; got != 0 {
		t.Errorf("Frames = %d, want 0", got)
	}

	// the next telegram is unaffected
	m.OnBytes([]byte("/X\r\nA(1*V)\r\n!"))
	if v, _, ok := m.GetValue("A"); !ok || v != 1 {
		t.Errorf("GetValue(A) = %v, %v; want 1, true", v, ok)
	}
}

func TestWithMaxFrameSize_Invalid(t *testing.T) {
	for _, n := range []int{-1, 0, 63} {
		if _, err := New(WithMaxFrameSize(n)); err == nil {
			t.Errorf("New(WithMaxFrameSize(%d)) should return error", n)
		}
	}
}

func TestWithUpdateListener_Nil(t *testing.T) {
	if _, err := New(WithUpdateListener(nil)); err != nil {
		t.Errorf("New(WithUpdateListener(nil)) error = %v", err)
	}
}

func TestWithDisconnectHandler_Nil(t *testing.T) {
	m, err := New(WithDisconnectHandler(nil), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// must not panic
	m.OnDisconnect(io.EOF)
}
