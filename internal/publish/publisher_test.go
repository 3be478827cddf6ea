package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type message struct {
	topic, key string
	payload    []byte
}

// fakeSender records published messages. If block is non-nil, Publish waits
// on it before recording.
type fakeSender struct {
	mu    sync.Mutex
	msgs  []message
	err   error
	block chan struct{}
}

func (f *fakeSender) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, message{topic, key, append([]byte(nil), payload...)})
	return nil
}

func (f *fakeSender) messages() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.msgs...)
}

func ptr[T any](v T) *T { return &v }

func TestPublisher_SendsEnvelope(t *testing.T) {
	sender := &fakeSender{}
	p := NewPublisher(sender, "smartmeter/readings", 0, testLogger())
	p.Start(context.Background())

	readings := []Reading{
		{Address: "1-0:1.8.0*255", Name: "Consumption", Value: ptr(123.456), Unit: ptr("kWh")},
		{Address: "1-0:2.8.0*255", Name: "Generation"},
	}
	if !p.Enqueue("ESY5Q3DA1024", readings) {
		t.Fatal("Enqueue() = false")
	}
	p.Stop()

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "smartmeter/readings" || msgs[0].key != "ESY5Q3DA1024" {
		t.Errorf("topic = %q, key = %q", msgs[0].topic, msgs[0].key)
	}

	env, err := DecodeEnvelope(msgs[0].payload)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.MsgID == "" || env.Device != "ESY5Q3DA1024" {
		t.Errorf("env = %+v", env)
	}
	if len(env.Readings) != 2 || *env.Readings[0].Value != 123.456 {
		t.Errorf("readings = %+v", env.Readings)
	}
	if env.Readings[1].Value != nil {
		t.Error("unreported sensor should publish a null value")
	}

	if s := p.Stats(); s.Sent != 1 || s.Failed != 0 || s.Dropped != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestPublisher_StopDrainsQueue(t *testing.T) {
	sender := &fakeSender{}
	p := NewPublisher(sender, "t", 10, testLogger())
	p.Start(context.Background())

	for i := 0; i < 5; i++ {
		p.Enqueue("dev", nil)
	}
	p.Stop()

	if got := len(sender.messages()); got != 5 {
		t.Errorf("sent %d messages, want 5", got)
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	p := NewPublisher(sender, "t", 2, testLogger())
	p.Start(context.Background())

	// the first snapshot is taken by the worker and blocks in Publish;
	// wait until the queue is empty again before filling it
	p.Enqueue("dev", nil)
	deadline := time.Now().Add(time.Second)
	for len(p.queue) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	accepted := 0
	for i := 0; i < 5; i++ {
		if p.Enqueue("dev", nil) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2", accepted)
	}
	if got := p.Stats().Dropped; got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}

	close(sender.block)
	p.Stop()

	if got := p.Stats().Sent; got != 3 {
		t.Errorf("Sent = %d, want 3", got)
	}
}

func TestPublisher_SendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("broker down")}
	p := NewPublisher(sender, "t", 0, testLogger())
	p.Start(context.Background())

	p.Enqueue("dev", nil)
	p.Stop()

	if s := p.Stats(); s.Failed != 1 || s.Sent != 0 {
		t.Errorf("Stats() = %+v, want 1 failed", s)
	}
}

func TestPublisher_EnqueueAfterStop(t *testing.T) {
	p := NewPublisher(&fakeSender{}, "t", 0, testLogger())
	p.Start(context.Background())
	p.Stop()

	// must not panic on the closed queue
	if p.Enqueue("dev", nil) {
		t.Error("Enqueue() after Stop should return false")
	}
}

func TestPublisher_StopBeforeStart(t *testing.T) {
	p := NewPublisher(&fakeSender{}, "t", 0, testLogger())

	// this must not panic
	p.Stop()
	p.Stop()

	// start after stop is a no-op
	p.Start(context.Background())
	if p.Enqueue("dev", nil) {
		t.Error("Enqueue() should be rejected once stopped")
	}
}

func TestNewPublisher_NilLogger(t *testing.T) {
	p := NewPublisher(&fakeSender{}, "t", 0, nil)
	if p.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if cap(p.queue) != DefaultQueueSize {
		t.Errorf("queue capacity = %d, want %d", cap(p.queue), DefaultQueueSize)
	}
}

func TestDecodeEnvelope_UnknownType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"msg_type":"order_request"}`))
	if err == nil || !strings.Contains(err.Error(), "unknown msg_type") {
		t.Errorf("DecodeEnvelope() error = %v", err)
	}
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("{")); err == nil {
		t.Error("DecodeEnvelope() should fail on invalid JSON")
	}
}

func TestClient_NotConnected(t *testing.T) {
	for _, backend := range []string{BackendMQTT, BackendKafka} {
		c := NewClient(Config{Backend: backend})
		err := c.Publish(context.Background(), "t", "k", []byte("x"))
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s: Publish() error = %v, want ErrNotConnected", backend, err)
		}
		if c.IsConnected() {
			t.Errorf("%s: IsConnected() = true before Connect", backend)
		}
	}
}

func TestClient_UnknownBackend(t *testing.T) {
	c := NewClient(Config{Backend: "amqp"})
	if err := c.Connect(); err == nil {
		t.Error("Connect() should reject an unknown backend")
	}
}

func TestClient_KafkaRequiresBrokers(t *testing.T) {
	c := NewClient(Config{Backend: BackendKafka})
	if err := c.Connect(); err == nil {
		t.Error("Connect() should require at least one broker")
	}
}

func TestClient_KafkaConnectIsLazy(t *testing.T) {
	c := NewClient(Config{Backend: BackendKafka, Kafka: KafkaConfig{Brokers: []string{"127.0.0.1:1"}}})
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if c.String() != "kafka:[127.0.0.1:1]" {
		t.Errorf("String() = %q", c.String())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}
