package notify

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Observer is notified after each frame has been applied to the value store.
type Observer func()

// Hub holds observers in registration order and invokes them synchronously.
//
// Hub is safe for concurrent use. Observers may register further observers
// from inside a notification; the new observer is replayed immediately and
// joins from the next NotifyAll on.
type Hub struct {
	mu        sync.Mutex
	observers []Observer
	failures  atomic.Uint64
	logger    *slog.Logger
}

// NewHub creates an empty [Hub]. A nil logger uses [slog.Default].
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger}
}

// Register appends obs and invokes it once before returning.
//
// The replay runs on the caller's goroutine. Nil observers are ignored.
func (h *Hub) Register(obs Observer) {
	if obs == nil {
		return
	}

	h.mu.Lock()
	h.observers = append(h.observers, obs)
	index := len(h.observers) - 1
	h.mu.Unlock()

	h.invoke(obs, index, "register")
}

// NotifyAll invokes every registered observer in registration order.
//
// It returns the number of observers that panicked.
func (h *Hub) NotifyAll() int {
	h.mu.Lock()
	snapshot := make([]Observer, len(h.observers))
	copy(snapshot, h.observers)
	h.mu.Unlock()

	failed := 0
	for i, obs := range snapshot {
		if !h.invoke(obs, i, "notify") {
			failed++
		}
	}

	h.logger.Debug("notified observers", "count", len(snapshot), "failed", failed)
	return failed
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Failures returns the total number of observer panics recovered so far.
func (h *Hub) Failures() uint64 {
	return h.failures.Load()
}

// invoke calls obs with panic recovery.
// Panics are logged with a correlation ID and stack trace but do not propagate.
func (h *Hub) invoke(obs Observer, index int, phase string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.failures.Add(1)
			h.logger.Error("observer panicked",
				"correlation_id", uuid.NewString(),
				"observer", index,
				"phase", phase,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	obs()
	return true
}
