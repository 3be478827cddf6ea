package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Backoff bounds the delay between reconnect attempts. The delay starts at
// Min, doubles after every failed attempt, is capped at Max and resets once a
// connection has been established.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

func (b Backoff) normalize() Backoff {
	if b.Min <= 0 {
		b.Min = defaultMinBackoff
	}
	if b.Max < b.Min {
		b.Max = defaultMaxBackoff
		if b.Max < b.Min {
			b.Max = b.Min
		}
	}
	return b
}

func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Supervisor keeps a source connected, re-opening it after every disconnect.
//
// Every connection is delivered to the handler as its own
// OnConnect/OnBytes/OnDisconnect sequence, so the handler decides what a
// disconnect means; the supervisor only decides when to try again.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Supervisor struct {
	src       Opener
	handler   Handler
	backoff   Backoff
	chunkSize int
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) bool

	attempts atomic.Uint64
	sessions atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSupervisor creates a [Supervisor] for src delivering to h.
//
// The supervisor must be started with [Supervisor.Start] and stopped with
// [Supervisor.Stop].
func NewSupervisor(src Opener, h Handler, backoff Backoff, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		src:       src,
		handler:   h,
		backoff:   backoff.normalize(),
		chunkSize: DefaultChunkSize,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Start begins the connect loop in a background goroutine.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op. If ctx is nil, context.Background() is used.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()
}

// Stop cancels the connect loop and waits for the current connection to be
// closed. Stop is idempotent and safe to call before Start.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Attempts returns how many times the source has been opened or tried.
func (s *Supervisor) Attempts() uint64 {
	return s.attempts.Load()
}

// Sessions returns how many connections have been established.
func (s *Supervisor) Sessions() uint64 {
	return s.sessions.Load()
}

func (s *Supervisor) loop(ctx context.Context) {
	delay := s.backoff.Min

	for {
		s.attempts.Add(1)
		before := s.sessions.Load()

		err := Pump(ctx, s.src, &sessionCounter{Handler: s.handler, n: &s.sessions}, s.chunkSize)
		if ctx.Err() != nil {
			return
		}

		if s.sessions.Load() > before {
			delay = s.backoff.Min
		}
		s.logger.Warn("meter source lost, reconnecting",
			"source", s.src.String(),
			"error", err,
			"retry_in", delay.String(),
		)

		if !s.sleep(ctx, delay) {
			return
		}
		delay = s.backoff.next(delay)
	}
}

// sessionCounter counts established connections on their way to the handler.
type sessionCounter struct {
	Handler
	n *atomic.Uint64
}

func (c *sessionCounter) OnConnect() {
	c.n.Add(1)
	c.Handler.OnConnect()
}

// sleepCtx waits for d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
