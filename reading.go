package smartmeter

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransportDisconnected is matched by every [DisconnectError].
var ErrTransportDisconnected = errors.New("smartmeter: transport disconnected")

// Reading is the latest known value of one meter address.
//
// Reading is a snapshot; it does not change when later telegrams arrive.
type Reading struct {
	// Address is the OBIS code, e.g. "1-0:1.8.0*255".
	Address string `json:"address"`

	// Value is the numeric reading exactly as parsed from the telegram.
	Value float64 `json:"value"`

	// Unit is the unit text sent by the meter, e.g. "kWh". May be empty.
	Unit string `json:"unit"`

	// UpdatedAt is when the telegram carrying this reading was applied.
	UpdatedAt time.Time `json:"updated_at"`
}

// String returns "address=value unit".
func (r Reading) String() string {
	if r.Unit == "" {
		return fmt.Sprintf("%s=%g", r.Address, r.Value)
	}
	return fmt.Sprintf("%s=%g %s", r.Address, r.Value, r.Unit)
}

// DisconnectError is delivered to disconnect handlers when the transport
// reports that the meter link went away.
//
// The meter itself takes no action beyond recording the event; the owner
// decides whether to reconnect, alert, or shut down.
type DisconnectError struct {
	// Reason is the error reported by the transport. It is context.Canceled
	// when the owner closed the link on purpose.
	Reason error

	// At is when the disconnect was observed.
	At time.Time
}

func (e *DisconnectError) Error() string {
	if e.Reason == nil {
		return ErrTransportDisconnected.Error()
	}
	return fmt.Sprintf("%s: %v", ErrTransportDisconnected, e.Reason)
}

// Is reports ErrTransportDisconnected as a match so callers can use errors.Is.
func (e *DisconnectError) Is(target error) bool {
	return target == ErrTransportDisconnected
}

func (e *DisconnectError) Unwrap() error {
	return e.Reason
}

// Stats counts meter activity since construction.
type Stats struct {
	Connected        bool      `json:"connected"`
	Connects         uint64    `json:"connects"`
	Disconnects      uint64    `json:"disconnects"`
	BytesReceived    uint64    `json:"bytes_received"`
	Frames           uint64    `json:"frames"`
	FramesDiscarded  uint64    `json:"frames_discarded"`
	Measurements     uint64    `json:"measurements"`
	MalformedValues  uint64    `json:"malformed_values"`
	SkippedLines     uint64    `json:"skipped_lines"`
	ObserverFailures uint64    `json:"observer_failures"`
	LastFrameAt      time.Time `json:"last_frame_at,omitzero"`
}
