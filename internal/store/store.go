package store

import (
	"time"

	"github.com/jpalmerr/smartmeter/internal/telegram"
)

// Value represents the latest reading of one address in storage.
//
// Value is the storage representation of a measurement, optimized for JSON
// serialization (used by the REST API and SSE).
type Value struct {
	// Address is the OBIS code the reading belongs to.
	Address string `json:"address"`

	// Value is the numeric reading as sent by the meter.
	Value float64 `json:"value"`

	// Unit is the unit text as sent by the meter, e.g. "kWh". May be empty.
	Unit string `json:"unit"`

	// UpdatedAt is the time the frame carrying this reading was applied.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for storing and subscribing to meter values.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Get returns the latest value for address. The bool is false for an
	// address that was never written.
	Get(address string) (Value, bool)

	// Apply writes all measurements of one frame, then notifies subscribers.
	// Later measurements for the same address override earlier ones.
	Apply(measurements []telegram.Measurement)

	// GetAll returns all stored values sorted by address.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []Value

	// Subscribe returns a channel that receives applied values.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Value

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Value)
}
