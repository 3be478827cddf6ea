package publish

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultQueueSize bounds the snapshots waiting to be sent.
	DefaultQueueSize = 64

	// publishTimeout bounds a single send so a dead broker cannot stall
	// the queue forever.
	publishTimeout = 10 * time.Second
)

// Sender delivers an encoded message. [*Client] implements it.
type Sender interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Stats counts publisher activity.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Publisher sends reading snapshots on a background goroutine.
//
// Enqueue never blocks, so it is safe to call from a meter update listener.
// When the queue is full the snapshot is dropped; the next one supersedes it
// anyway.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Publisher struct {
	sender Sender
	topic  string
	queue  chan *Envelope
	logger *slog.Logger

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPublisher creates a [Publisher] that sends to topic.
//
// A queueSize <= 0 uses [DefaultQueueSize]. If logger is nil, slog.Default()
// is used. The publisher must be started with [Publisher.Start].
func NewPublisher(sender Sender, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		sender: sender,
		topic:  topic,
		queue:  make(chan *Envelope, queueSize),
		logger: logger,
	}
}

// Start begins sending in a background goroutine.
//
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop sends what is already queued, then stops the background goroutine.
// Stop blocks until it has exited. It is safe to call Stop multiple times.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if !started {
		return
	}
	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

// Enqueue queues a snapshot for sending. It returns false if the snapshot
// was dropped because the queue is full or the publisher is stopped.
func (p *Publisher) Enqueue(device string, readings []Reading) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.queue <- NewEnvelope(device, readings):
		return true
	default:
		p.dropped.Add(1)
		p.logger.Debug("publish queue full, dropping snapshot", "topic", p.topic)
		return false
	}
}

// Stats returns a snapshot of the publisher counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:    p.sent.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
	}
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	for env := range p.queue {
		p.send(ctx, env)
	}
}

func (p *Publisher) send(ctx context.Context, env *Envelope) {
	data, err := env.Encode()
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to encode readings", "msg_id", env.MsgID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.sender.Publish(ctx, p.topic, env.Device, data); err != nil {
		p.failed.Add(1)
		p.logger.Warn("publish failed", "topic", p.topic, "msg_id", env.MsgID, "error", err)
		return
	}
	p.sent.Add(1)
	p.logger.Debug("readings published", "topic", p.topic, "msg_id", env.MsgID, "readings", len(env.Readings))
}
