package store

import (
	"sort"
	"sync"
	"time"

	"github.com/jpalmerr/smartmeter/internal/telegram"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Values are keyed by address, with new values
// replacing previous ones. Entries are never removed.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the ingest path.
type MemoryStore struct {
	mu          sync.RWMutex
	values      map[string]Value
	subscribers map[chan Value]struct{}
	subMu       sync.RWMutex
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:      make(map[string]Value),
		subscribers: make(map[chan Value]struct{}),
		now:         time.Now,
	}
}

// Get returns the latest [Value] stored for address.
func (m *MemoryStore) Get(address string) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[address]
	return v, ok
}

// Apply stores one frame's measurements and notifies all subscribers.
//
// All writes happen under a single lock, so a concurrent reader sees either
// none or all of the frame. Subscribers receive one [Value] per distinct
// address, carrying the last measurement for it, in order of first
// appearance within the frame.
func (m *MemoryStore) Apply(measurements []telegram.Measurement) {
	if len(measurements) == 0 {
		return
	}

	at := m.now()
	order := make([]string, 0, len(measurements))
	applied := make(map[string]Value, len(measurements))

	m.mu.Lock()
	for _, ms := range measurements {
		v := Value{Address: ms.Address, Value: ms.Value, Unit: ms.Unit, UpdatedAt: at}
		if _, seen := applied[ms.Address]; !seen {
			order = append(order, ms.Address)
		}
		applied[ms.Address] = v
		m.values[ms.Address] = v
	}
	m.mu.Unlock()

	for _, addr := range order {
		m.notifySubscribers(applied[addr])
	}
}

// GetAll returns a snapshot of all currently stored values, sorted by address.
//
// The returned slice is a copy; modifications do not affect the store.
func (m *MemoryStore) GetAll() []Value {
	m.mu.RLock()
	results := make([]Value, 0, len(m.values))
	for _, v := range m.values {
		results = append(results, v)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Address < results[j].Address
	})
	return results
}

// Len returns the number of distinct addresses stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 values. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Value {
	ch := make(chan Value, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Value) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the value to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(v Value) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- v:
		default:
			// subscriber is slow, drop the value
		}
	}
}
